package track

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/util"
)

// Derived grouping keys
const (
	GroupDecade       = "Decade"
	GroupPlayCount    = "PlayCount"
	GroupRating       = "Rating"
	GroupPersistentID = "PersistentID"
	GroupTotalMinutes = "TotalMinutes"
)

// Group labels that do not come from an attribute value
const (
	AllGroup = "All"
	NoValue  = "No Value"
)

// GroupSeparator joins the keys of a multi-level grouping
const GroupSeparator = " - "

var derivedGroups = []string{GroupDecade, GroupPlayCount, GroupRating, GroupPersistentID, GroupTotalMinutes}

// ValidGroups lists every grouping key: the static attributes followed by
// the derived keys.
func ValidGroups() []string {
	return append(slices.Clone(attr.Static), derivedGroups...)
}

// IsValidGroup reports whether spec names a known grouping key
func IsValidGroup(spec string) bool {
	return attr.IsStatic(spec) || slices.Contains(derivedGroups, spec)
}

var (
	warnedMu sync.Mutex
	warned   = map[string]bool{}
)

func warnUnknownGroup(spec string) {
	warnedMu.Lock()
	defer warnedMu.Unlock()
	if !warned[spec] {
		warned[spec] = true
		util.ErrorLog("Grouping by %s is not implemented, using %q", spec, NoValue)
	}
}

// GroupingKey returns the bucket label of the snapshot for the given specs.
// No specs gives AllGroup; several are joined with GroupSeparator.
func (s *Snapshot) GroupingKey(specs ...string) string {
	if len(specs) == 0 {
		return AllGroup
	}

	keys := make([]string, len(specs))
	for i, spec := range specs {
		keys[i] = s.groupKey(spec)
	}
	return strings.Join(keys, GroupSeparator)
}

func (s *Snapshot) groupKey(spec string) string {
	if attr.IsStatic(spec) {
		if v, ok := s.StaticAttribute(spec).AsString(); ok {
			return v
		}
		return NoValue
	}

	switch spec {
	case GroupDecade:
		if year, ok := s.StaticAttribute(attr.Year).AsInt(); ok {
			return strconv.FormatInt(year/10*10, 10)
		}

	case GroupPlayCount:
		if pc, ok := s.PlayCount(); ok {
			return strconv.FormatInt(pc, 10)
		}

	case GroupRating:
		if r, ok := s.Rating(); ok {
			return strconv.FormatFloat(float64(r)/20, 'f', -1, 64)
		}

	case GroupPersistentID:
		return s.id

	case GroupTotalMinutes:
		if ms, ok := s.StaticAttribute(attr.TotalTime).AsInt(); ok {
			return strconv.FormatInt(int64(math.Round(float64(ms)/60000)), 10)
		}

	default:
		warnUnknownGroup(spec)
	}

	return NoValue
}
