// Package library reads the current state of a media library. Each source
// yields one Item per media file or export record; the updater compares
// these observations against the stored history.
package library

import (
	"context"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/track"
)

// Source enumerates the items of a media library
type Source interface {
	// Name describes the source for logs
	Name() string

	// Tracks returns every item in a stable order
	Tracks(ctx context.Context) ([]track.Track, error)
}

// Item is one observed media item
type Item struct {
	id     string
	values []attr.Value

	playCount    int64
	hasPlayCount bool
	rating       int64
	hasRating    bool

	// Path is the file the item was read from, if any
	Path string
}

// NewItem returns an item with no attributes or metrics
func NewItem(id string) *Item {
	return &Item{id: id, values: make([]attr.Value, len(attr.Static))}
}

// PersistentID returns the item id
func (it *Item) PersistentID() string { return it.id }

// StaticAttribute returns an observed attribute value
func (it *Item) StaticAttribute(name string) attr.Value {
	i, ok := attr.Index(name)
	if !ok {
		return attr.Absent()
	}
	return it.values[i]
}

// PlayCount returns the observed play count
func (it *Item) PlayCount() (int64, bool) { return it.playCount, it.hasPlayCount }

// Rating returns the observed rating on the 0-100 scale
func (it *Item) Rating() (int64, bool) { return it.rating, it.hasRating }

// Set records an attribute; unknown names are ignored
func (it *Item) Set(name string, v attr.Value) *Item {
	if i, ok := attr.Index(name); ok {
		it.values[i] = attr.Coerce(name, v)
	}
	return it
}

// SetText records a text attribute, treating "" as absent
func (it *Item) SetText(name, s string) *Item {
	if s == "" {
		return it.Set(name, attr.Absent())
	}
	return it.Set(name, attr.Text(s))
}

// SetPlayCount records the observed play count
func (it *Item) SetPlayCount(n int64) *Item {
	it.playCount, it.hasPlayCount = n, true
	return it
}

// SetRating records the observed rating, clamped to 0-100
func (it *Item) SetRating(n int64) *Item {
	it.rating, it.hasRating = min(max(n, 0), attr.MaxRating), true
	return it
}

var _ track.Track = (*Item)(nil)
