// Package attr defines the fixed attribute layout of a tracked media item
// and the value types shared by the store and the snapshot model.
package attr

import (
	"fmt"

	"github.com/franz/music-ledger/internal/util"
)

// Static attribute names in Meta column order
const (
	AlbumTitle = "AlbumTitle"
	ArtistName = "ArtistName"
	BitRate    = "BitRate"
	FileSize   = "FileSize"
	Genre      = "Genre"
	Kind       = "Kind"
	SampleRate = "SampleRate"
	Title      = "Title"
	TotalTime  = "TotalTime"
	Year       = "Year"
)

// PersistentIDColumn is the key column shared by all tables
const PersistentIDColumn = "PersistentID"

// Static is the ordered list of latest-value attributes stored in Meta.
var Static = []string{
	AlbumTitle,
	ArtistName,
	BitRate,
	FileSize,
	Genre,
	Kind,
	SampleRate,
	Title,
	TotalTime,
	Year,
}

var integerColumns = map[string]bool{
	BitRate:    true,
	FileSize:   true,
	SampleRate: true,
	TotalTime:  true,
	Year:       true,
}

var staticIndex = func() map[string]int {
	m := make(map[string]int, len(Static))
	for i, name := range Static {
		m[name] = i
	}
	return m
}()

// Index returns the Meta position of a static attribute
func Index(name string) (int, bool) {
	i, ok := staticIndex[name]
	return i, ok
}

// IsStatic reports whether name is part of the Meta layout
func IsStatic(name string) bool {
	_, ok := staticIndex[name]
	return ok
}

// IsIntegerColumn reports whether a static attribute is stored as INTEGER
func IsIntegerColumn(name string) bool {
	return integerColumns[name]
}

// Metric is one of the append-only numeric series
type Metric int

const (
	PlayCount Metric = iota
	Rating
)

// Metrics lists the tracked series in a stable order
var Metrics = []Metric{PlayCount, Rating}

// Defaults applied by consumers when no observation exists
const (
	DefaultPlayCount int64 = 0
	DefaultRating    int64 = 50
	MaxRating        int64 = 100
)

// String returns the column name of the metric
func (m Metric) String() string {
	switch m {
	case PlayCount:
		return "PlayCount"
	case Rating:
		return "Rating"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// Table returns the change-log table holding the metric
func (m Metric) Table() string {
	return m.String() + "s"
}

// Default returns the value assumed when the metric was never observed
func (m Metric) Default() int64 {
	if m == Rating {
		return DefaultRating
	}
	return DefaultPlayCount
}

// ParseMetric maps a column name to a Metric
func ParseMetric(name string) (Metric, error) {
	for _, m := range Metrics {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", util.ErrUnknownProperty, name)
}
