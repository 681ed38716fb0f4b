package track

import (
	"slices"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/store"
)

// Entry is one observation in a snapshot's history
type Entry struct {
	Date  int64
	Value int64
}

// Snapshot is the in-memory history of one item: its latest static
// attributes and both change logs, most recent entry first.
// Snapshots are immutable; the With* methods return modified copies.
type Snapshot struct {
	id      string
	meta    []attr.Value
	history [2][]Entry // indexed by attr.Metric
}

// NewSnapshot joins a Meta row with its change-log entries. Entries may come
// in any order; among equal timestamps the later one in the input counts as
// more recent.
func NewSnapshot(row store.MetaRow, playCounts, ratings []store.ChangeEntry) *Snapshot {
	s := &Snapshot{id: row.PersistentID, meta: make([]attr.Value, len(attr.Static))}
	copy(s.meta, row.Values)
	s.history[attr.PlayCount] = sortEntries(playCounts)
	s.history[attr.Rating] = sortEntries(ratings)
	return s
}

func sortEntries(log []store.ChangeEntry) []Entry {
	entries := make([]Entry, len(log))
	// Reverse first so the stable sort keeps later-loaded rows ahead on ties
	for i, e := range log {
		entries[len(log)-1-i] = Entry{Date: e.Date, Value: e.Value}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Date > b.Date:
			return -1
		case a.Date < b.Date:
			return 1
		}
		return 0
	})
	return entries
}

// PersistentID returns the item id
func (s *Snapshot) PersistentID() string { return s.id }

// StaticAttribute returns the latest stored value of a Meta column
func (s *Snapshot) StaticAttribute(name string) attr.Value {
	i, ok := attr.Index(name)
	if !ok {
		return attr.Absent()
	}
	return s.meta[i]
}

// Title returns the stored title, or "" when none is known
func (s *Snapshot) Title() string {
	title, _ := s.StaticAttribute(attr.Title).AsString()
	return title
}

// MetaRow returns the stored attributes as a Meta row
func (s *Snapshot) MetaRow() store.MetaRow {
	row := store.NewMetaRow(s.id)
	copy(row.Values, s.meta)
	return row
}

// Latest returns the most recent recorded value of a metric
func (s *Snapshot) Latest(m attr.Metric) (int64, bool) {
	h := s.history[m]
	if len(h) == 0 {
		return 0, false
	}
	return h[0].Value, true
}

// PlayCount returns the most recent recorded play count
func (s *Snapshot) PlayCount() (int64, bool) { return s.Latest(attr.PlayCount) }

// Rating returns the most recent recorded rating
func (s *Snapshot) Rating() (int64, bool) { return s.Latest(attr.Rating) }

// ValueAt returns the value of the last entry recorded strictly before t.
// It reports false when no such entry exists.
func (s *Snapshot) ValueAt(m attr.Metric, t int64) (int64, bool) {
	for _, e := range s.history[m] {
		if e.Date < t {
			return e.Value, true
		}
	}
	return 0, false
}

// PlayCountAt returns the play count as of time t
func (s *Snapshot) PlayCountAt(t int64) (int64, bool) { return s.ValueAt(attr.PlayCount, t) }

// RatingAt returns the rating as of time t
func (s *Snapshot) RatingAt(t int64) (int64, bool) { return s.ValueAt(attr.Rating, t) }

// History returns a copy of a metric's entries, most recent first
func (s *Snapshot) History(m attr.Metric) []Entry {
	return slices.Clone(s.history[m])
}

// WithAttribute returns a copy with one static attribute replaced
func (s *Snapshot) WithAttribute(name string, v attr.Value) *Snapshot {
	i, ok := attr.Index(name)
	if !ok {
		return s
	}
	c := *s
	c.meta = slices.Clone(s.meta)
	c.meta[i] = v
	return &c
}

// WithChange returns a copy with one more entry for a metric. The entry
// counts as later than any existing entry with the same timestamp.
func (s *Snapshot) WithChange(m attr.Metric, at, value int64) *Snapshot {
	c := *s
	i := slices.IndexFunc(s.history[m], func(e Entry) bool { return e.Date <= at })
	if i < 0 {
		i = len(s.history[m])
	}
	c.history[m] = slices.Insert(slices.Clone(s.history[m]), i, Entry{Date: at, Value: value})
	return &c
}

var _ Track = (*Snapshot)(nil)
