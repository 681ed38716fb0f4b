// Package track models tracked media items: the capability interface shared
// by live sources and stored history, and the immutable Snapshot that
// reconstructs an item's attribute values at any point in time.
package track

import (
	"fmt"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/util"
)

// Track is the read-only view of one media item. Every value may be absent,
// depending on what the underlying source knows.
type Track interface {
	PersistentID() string
	StaticAttribute(name string) attr.Value
	PlayCount() (int64, bool)
	Rating() (int64, bool)
}

// Source provides the stored history snapshots are built from.
// *store.Store satisfies it.
type Source interface {
	GetMeta() ([]store.MetaRow, error)
	GetChangeLog(m attr.Metric) ([]store.ChangeEntry, error)
}

// Load builds one snapshot per Meta row. Change-log rows for ids without a
// Meta row are not attached to any snapshot.
func Load(src Source) (map[string]*Snapshot, error) {
	meta, err := src.GetMeta()
	if err != nil {
		return nil, err
	}

	logs := make(map[attr.Metric]map[string][]store.ChangeEntry, len(attr.Metrics))
	for _, m := range attr.Metrics {
		entries, err := src.GetChangeLog(m)
		if err != nil {
			return nil, err
		}
		byID := make(map[string][]store.ChangeEntry)
		for _, e := range entries {
			byID[e.PersistentID] = append(byID[e.PersistentID], e)
		}
		logs[m] = byID
	}

	snapshots := make(map[string]*Snapshot, len(meta))
	for _, row := range meta {
		if _, dup := snapshots[row.PersistentID]; dup {
			return nil, fmt.Errorf("duplicate meta row for %s", row.PersistentID)
		}
		snapshots[row.PersistentID] = NewSnapshot(row,
			logs[attr.PlayCount][row.PersistentID],
			logs[attr.Rating][row.PersistentID])
	}

	for _, m := range attr.Metrics {
		orphans := 0
		for id := range logs[m] {
			if _, ok := snapshots[id]; !ok {
				orphans++
			}
		}
		if orphans > 0 {
			util.WarnLog("%d id(s) in %s have no metadata", orphans, m.Table())
		}
	}

	util.DebugLog("Loaded %d snapshot(s)", len(snapshots))
	return snapshots, nil
}
