// Package update records the current state of a media library into the
// history store. Static attributes overwrite Meta in place; play counts and
// ratings append to their change logs only when the value differs from the
// last recorded one.
package update

import (
	"context"
	"fmt"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/library"
	"github.com/franz/music-ledger/internal/report"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/util"
)

// Gateway is the part of the store the updater writes through.
// *store.Store satisfies it.
type Gateway interface {
	track.Source
	SetMeta(row store.MetaRow) (int64, error)
	SetMetaAttribute(id, name string, v attr.Value) (int64, error)
	AppendChange(m attr.Metric, id string, at int64, value int64) (int64, error)
	Commit() error
}

// Config holds updater configuration
type Config struct {
	Store  Gateway
	Clock  util.Clock
	Events *report.EventLogger

	// Progress is called after each item of Run, if set
	Progress func(done, total int)
}

// Updater compares observed items against the stored history
type Updater struct {
	store     Gateway
	clock     util.Clock
	events    *report.EventLogger
	progress  func(done, total int)
	snapshots map[string]*track.Snapshot
}

// Result counts the rows written by a run
type Result struct {
	Tracks            int
	MetaCreated       int
	MetaFieldsUpdated int
	PlayCountEvents   int
	RatingEvents      int
	Errors            []error
}

// RowsChanged returns the total number of rows written
func (r *Result) RowsChanged() int {
	return r.MetaCreated + r.MetaFieldsUpdated + r.PlayCountEvents + r.RatingEvents
}

// Counters returns the result as named counts for the audit log
func (r *Result) Counters() map[string]int {
	return map[string]int{
		"tracks":              r.Tracks,
		"meta_created":        r.MetaCreated,
		"meta_fields_updated": r.MetaFieldsUpdated,
		"play_count_events":   r.PlayCountEvents,
		"rating_events":       r.RatingEvents,
		"errors":              len(r.Errors),
	}
}

// New creates an updater and loads the stored history once
func New(cfg *Config) (*Updater, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: updater needs a store", util.ErrInvalidConfig)
	}
	if cfg.Clock == nil {
		cfg.Clock = util.SystemClock{}
	}

	snapshots, err := track.Load(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return &Updater{
		store:     cfg.Store,
		clock:     cfg.Clock,
		events:    cfg.Events,
		progress:  cfg.Progress,
		snapshots: snapshots,
	}, nil
}

// Snapshot returns the current in-memory history of an item
func (u *Updater) Snapshot(id string) (*track.Snapshot, bool) {
	s, ok := u.snapshots[id]
	return s, ok
}

func describe(t track.Track, id string) string {
	if title, ok := t.StaticAttribute(attr.Title).AsString(); ok && title != "" {
		return title
	}
	return id
}

// UpdateMeta inserts the item's Meta row, or writes each static attribute
// that differs from the stored one. It returns the number of rows written.
func (u *Updater) UpdateMeta(t track.Track) (int, error) {
	n, _, err := u.updateMeta(t)
	return n, err
}

func (u *Updater) updateMeta(t track.Track) (n int, created bool, err error) {
	id, err := attr.ParsePersistentID(t.PersistentID())
	if err != nil {
		return 0, false, err
	}
	label := describe(t, id)

	snap, ok := u.snapshots[id]
	if !ok {
		row := store.NewMetaRow(id)
		for i, name := range attr.Static {
			row.Values[i] = attr.Coerce(name, t.StaticAttribute(name))
		}

		rows, err := u.store.SetMeta(row)
		if err != nil {
			return 0, false, fmt.Errorf("failed to create metadata for %s: %w", id, err)
		}

		u.snapshots[id] = track.NewSnapshot(row, nil, nil)
		util.InfoLog("%s - Created Metadata", label)
		u.events.LogMetaCreate(u.clock.Now(), id, label)
		return int(rows), true, nil
	}

	changed := 0
	for _, name := range attr.Static {
		old := snap.StaticAttribute(name)
		current := attr.Coerce(name, t.StaticAttribute(name))
		if old.Equal(current) {
			continue
		}

		rows, err := u.store.SetMetaAttribute(id, name, current)
		if err != nil {
			u.snapshots[id] = snap
			return changed, false, fmt.Errorf("failed to update %s of %s: %w", name, id, err)
		}
		changed += int(rows)

		snap = snap.WithAttribute(name, current)
		util.InfoLog("%s - Updated %s: %s -> %s", label, name, old, current)

		var oldStr *string
		if s, ok := old.AsString(); ok {
			oldStr = &s
		}
		u.events.LogMetaUpdate(u.clock.Now(), id, label, name, oldStr, current.String())
	}

	u.snapshots[id] = snap
	return changed, false, nil
}

// UpdatePlayCount appends the observed play count if it differs from the
// last recorded one
func (u *Updater) UpdatePlayCount(t track.Track) (int, error) {
	return u.updateMetric(t, attr.PlayCount, t.PlayCount)
}

// UpdateRating appends the observed rating if it differs from the last
// recorded one
func (u *Updater) UpdateRating(t track.Track) (int, error) {
	return u.updateMetric(t, attr.Rating, t.Rating)
}

func (u *Updater) updateMetric(t track.Track, m attr.Metric, observe func() (int64, bool)) (int, error) {
	id, err := attr.ParsePersistentID(t.PersistentID())
	if err != nil {
		return 0, err
	}

	snap, ok := u.snapshots[id]
	if !ok {
		// Change logs are only kept for items with metadata
		util.DebugLog("%s - No metadata, %s not recorded", id, m)
		return 0, nil
	}

	// An absent observation means the source's documented default
	current, ok := observe()
	if !ok {
		current = m.Default()
	}

	last, hasLast := snap.Latest(m)
	if hasLast && last == current {
		return 0, nil
	}

	at := u.clock.Now().Unix()
	n, err := u.store.AppendChange(m, id, at, current)
	if err != nil {
		return 0, fmt.Errorf("failed to record %s of %s: %w", m, id, err)
	}
	if n == 0 {
		// The change log already holds this value
		util.DebugLog("%s - %s %d already recorded", id, m, current)
		return 0, nil
	}

	u.snapshots[id] = snap.WithChange(m, at, current)

	label := describe(t, id)
	var prev *int64
	if hasLast {
		util.InfoLog("%s - Updated %s: %d -> %d", label, m, last, current)
		prev = &last
	} else {
		util.InfoLog("%s - First %s: %d", label, m, current)
	}
	u.events.LogChange(u.clock.Now(), id, label, m.String(), prev, current)

	return int(n), nil
}

// UpdateTrack runs all three updates for one item and adds the written rows
// to result
func (u *Updater) UpdateTrack(t track.Track, result *Result) error {
	n, created, err := u.updateMeta(t)
	if err != nil {
		return err
	}
	if created {
		result.MetaCreated += n
	} else {
		result.MetaFieldsUpdated += n
	}

	n, err = u.UpdatePlayCount(t)
	if err != nil {
		return err
	}
	result.PlayCountEvents += n

	n, err = u.UpdateRating(t)
	if err != nil {
		return err
	}
	result.RatingEvents += n

	return nil
}

// Run observes every item of the source. Errors on one item are logged and
// collected without stopping the run; cancellation stops between items.
func (u *Updater) Run(ctx context.Context, src library.Source) (*Result, error) {
	items, err := src.Tracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}

	util.InfoLog("Updating history from %s (%d items)", src.Name(), len(items))
	u.events.LogRunStart(u.clock.Now(), src.Name())

	result := &Result{}
	for i, t := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := u.UpdateTrack(t, result); err != nil {
			util.ErrorLog("%s: %v", t.PersistentID(), err)
			u.events.LogError(u.clock.Now(), t.PersistentID(), err)
			result.Errors = append(result.Errors, err)
		}
		result.Tracks++

		if u.progress != nil {
			u.progress(i+1, len(items))
		}
	}

	u.events.LogRunEnd(u.clock.Now(), result.Counters())
	return result, nil
}

// Commit persists the writes made so far
func (u *Updater) Commit() error {
	return u.store.Commit()
}
