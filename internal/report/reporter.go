// Package report answers analytical questions against the stored history:
// grouped property deltas between two points in time, the merged change log,
// and the audit trail of update runs.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/util"
)

// Property is a numeric value that can be aggregated over a group
type Property int

const (
	PropPlayCount Property = iota
	PropRating
	PropPlayTime
)

var propertyNames = []string{"PlayCount", "Rating", "PlayTime"}

func (p Property) String() string {
	if int(p) < 0 || int(p) >= len(propertyNames) {
		return fmt.Sprintf("Property(%d)", int(p))
	}
	return propertyNames[p]
}

// ParseProperty resolves a property name, ignoring case
func ParseProperty(name string) (Property, error) {
	for i, n := range propertyNames {
		if strings.EqualFold(n, name) {
			return Property(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of %s)", util.ErrUnknownProperty, name, strings.Join(propertyNames, ", "))
}

// MissingMetadata is shown in the log for ids without a Meta row
const MissingMetadata = "Missing Metadata"

// Group is a set of snapshots sharing a grouping key
type Group struct {
	Name    string
	Members []*track.Snapshot
}

// Count returns the number of members
func (g *Group) Count() int {
	return len(g.Members)
}

// Value aggregates prop over the members as they were just before at
func (g *Group) Value(prop Property, at time.Time) float64 {
	t := at.Unix()

	switch prop {
	case PropRating:
		if len(g.Members) == 0 {
			return 0
		}
		var sum int64
		for _, s := range g.Members {
			r, ok := s.RatingAt(t)
			if !ok {
				r = attr.DefaultRating
			}
			sum += r
		}
		return float64(sum) / 20 / float64(len(g.Members))

	case PropPlayTime:
		var ms int64
		for _, s := range g.Members {
			pc, ok := s.PlayCountAt(t)
			if !ok {
				continue
			}
			total, ok := s.StaticAttribute(attr.TotalTime).AsInt()
			if !ok {
				continue
			}
			ms += pc * total
		}
		return float64(ms) / 1000 / 60

	default:
		var sum int64
		for _, s := range g.Members {
			if pc, ok := s.PlayCountAt(t); ok {
				sum += pc
			}
		}
		return float64(sum)
	}
}

// Sample is the value of a group at one point in time
type Sample struct {
	At    time.Time
	Value float64
}

// Samples returns n evenly spaced values of prop from from to to, both
// included. A single sample is taken at to.
func (g *Group) Samples(prop Property, from, to time.Time, n int) []Sample {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []Sample{{At: to, Value: g.Value(prop, to)}}
	}

	step := to.Sub(from) / time.Duration(n-1)
	samples := make([]Sample, n)
	for i := range samples {
		at := from.Add(step * time.Duration(i))
		if i == n-1 {
			at = to
		}
		samples[i] = Sample{At: at, Value: g.Value(prop, at)}
	}
	return samples
}

// Reporter holds every snapshot of a store, loaded once
type Reporter struct {
	snapshots []*track.Snapshot
	byID      map[string]*track.Snapshot
	logs      map[attr.Metric][]store.ChangeEntry
}

// loaded replays change logs that were already read
type loaded struct {
	meta []store.MetaRow
	logs map[attr.Metric][]store.ChangeEntry
}

func (l *loaded) GetMeta() ([]store.MetaRow, error) { return l.meta, nil }

func (l *loaded) GetChangeLog(m attr.Metric) ([]store.ChangeEntry, error) {
	return l.logs[m], nil
}

// New loads the Meta table and both change logs from src
func New(src track.Source) (*Reporter, error) {
	meta, err := src.GetMeta()
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	logs := make(map[attr.Metric][]store.ChangeEntry, len(attr.Metrics))
	for _, m := range attr.Metrics {
		entries, err := src.GetChangeLog(m)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s log: %w", m, err)
		}
		logs[m] = entries
	}

	byID, err := track.Load(&loaded{meta: meta, logs: logs})
	if err != nil {
		return nil, err
	}

	snapshots := make([]*track.Snapshot, 0, len(byID))
	for _, s := range byID {
		snapshots = append(snapshots, s)
	}
	slices.SortFunc(snapshots, func(a, b *track.Snapshot) int {
		return strings.Compare(a.PersistentID(), b.PersistentID())
	})

	util.DebugLog("Loaded %d snapshots, %d play count and %d rating events",
		len(snapshots), len(logs[attr.PlayCount]), len(logs[attr.Rating]))

	return &Reporter{snapshots: snapshots, byID: byID, logs: logs}, nil
}

// Snapshots returns every loaded snapshot ordered by persistent id
func (r *Reporter) Snapshots() []*track.Snapshot {
	return r.snapshots
}

// Groups partitions the snapshots by their grouping key. Groups appear in the
// order their first member was seen.
func (r *Reporter) Groups(groupBy []string) []*Group {
	index := make(map[string]*Group)
	var groups []*Group

	for _, s := range r.snapshots {
		key := s.GroupingKey(groupBy...)
		g, ok := index[key]
		if !ok {
			g = &Group{Name: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.Members = append(g.Members, s)
	}
	return groups
}

// Options selects what Report computes
type Options struct {
	GroupBy    []string
	SortBy     Property
	From       time.Time
	To         time.Time
	ShowCounts bool
	Reverse    bool
	Limit      int
}

// Row is one ranked group
type Row struct {
	Label string
	Name  string
	Count int
	From  float64
	To    float64
	Delta float64
}

// Report ranks groups by the change of opts.SortBy between From and To,
// largest first unless Reverse is set
func (r *Reporter) Report(opts Options) ([]Row, error) {
	if opts.SortBy < PropPlayCount || opts.SortBy > PropPlayTime {
		return nil, fmt.Errorf("%w: %s", util.ErrUnknownProperty, opts.SortBy)
	}
	if opts.To.Before(opts.From) {
		return nil, fmt.Errorf("%w: window ends (%s) before it starts (%s)",
			util.ErrInvalidConfig, opts.To.Format(time.DateOnly), opts.From.Format(time.DateOnly))
	}
	groups := r.Groups(opts.GroupBy)
	rows := make([]Row, len(groups))
	for i, g := range groups {
		from := g.Value(opts.SortBy, opts.From)
		to := g.Value(opts.SortBy, opts.To)

		label := g.Name
		if opts.ShowCounts {
			label = fmt.Sprintf("%s (%d)", g.Name, g.Count())
		}
		rows[i] = Row{
			Label: label,
			Name:  g.Name,
			Count: g.Count(),
			From:  from,
			To:    to,
			Delta: to - from,
		}
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		if opts.Reverse {
			return cmp.Compare(a.Delta, b.Delta)
		}
		return cmp.Compare(b.Delta, a.Delta)
	})

	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

// LogEntry is one change-log row resolved to its item title
type LogEntry struct {
	Time         time.Time
	Metric       attr.Metric
	PersistentID string
	Title        string
	Value        int64
}

// Log returns the merged play count and rating logs, most recent first.
// A limit of zero or less returns every entry.
func (r *Reporter) Log(limit int) []LogEntry {
	var entries []LogEntry
	for _, m := range attr.Metrics {
		for _, e := range r.logs[m] {
			title := MissingMetadata
			if s, ok := r.byID[e.PersistentID]; ok {
				title = s.Title()
				if title == "" {
					title = e.PersistentID
				}
			}
			entries = append(entries, LogEntry{
				Time:         time.Unix(e.Date, 0),
				Metric:       m,
				PersistentID: e.PersistentID,
				Title:        title,
				Value:        e.Value,
			})
		}
	}

	slices.SortStableFunc(entries, func(a, b LogEntry) int {
		return b.Time.Compare(a.Time)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
