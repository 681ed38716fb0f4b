package update

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/library"
	"github.com/franz/music-ledger/internal/report"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/util"
)

func TestMain(m *testing.M) {
	util.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// session opens the store, hands a fresh updater to fn and closes the store
func session(t *testing.T, path string, mode store.Mode, clock util.Clock, fn func(u *Updater)) {
	t.Helper()

	s, err := store.Open(path, &store.OpenOptions{Mode: mode})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	u, err := New(&Config{Store: s, Clock: clock})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	fn(u)
}

func loadReporter(t *testing.T, path string) *report.Reporter {
	t.Helper()

	s, err := store.Open(path, &store.OpenOptions{Mode: store.DryRun})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	r, err := report.New(s)
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	return r
}

func mustRows(t *testing.T, what string, n int, err error, expected int) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", what, err)
	}
	if n != expected {
		t.Errorf("%s: expected %d rows changed, got %d", what, expected, n)
	}
}

func TestUpdaterSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Minute)

	item := library.NewItem("00000000000000A1").
		SetText(attr.Title, "Mock Song").
		SetText(attr.ArtistName, "Mock Artist").
		Set(attr.Year, attr.Integer(1999)).
		Set(attr.SampleRate, attr.Integer(44100))

	// Nothing is recorded for an item without metadata
	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		n, err := u.UpdatePlayCount(item)
		mustRows(t, "UpdatePlayCount", n, err, 0)
		n, err = u.UpdateRating(item)
		mustRows(t, "UpdateRating", n, err, 0)
	})

	// Absent play count and rating are first seen as their defaults
	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		n, err := u.UpdateMeta(item)
		mustRows(t, "UpdateMeta", n, err, 1)
		n, err = u.UpdateRating(item)
		mustRows(t, "UpdateRating", n, err, 1)
		n, err = u.UpdatePlayCount(item)
		mustRows(t, "UpdatePlayCount", n, err, 1)
	})

	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		n, err := u.UpdateMeta(item)
		mustRows(t, "UpdateMeta", n, err, 0)
		n, err = u.UpdateRating(item)
		mustRows(t, "UpdateRating", n, err, 0)
		n, err = u.UpdatePlayCount(item)
		mustRows(t, "UpdatePlayCount", n, err, 0)
	})

	item.SetPlayCount(7).SetRating(20)
	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		n, err := u.UpdateMeta(item)
		mustRows(t, "UpdateMeta", n, err, 0)
		n, err = u.UpdatePlayCount(item)
		mustRows(t, "UpdatePlayCount", n, err, 1)
		n, err = u.UpdateRating(item)
		mustRows(t, "UpdateRating", n, err, 1)
	})

	item.Set(attr.Year, attr.Integer(8000)).Set(attr.SampleRate, attr.Integer(9000))
	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		n, err := u.UpdateMeta(item)
		mustRows(t, "UpdateMeta", n, err, 2)
		n, err = u.UpdateRating(item)
		mustRows(t, "UpdateRating", n, err, 0)
		n, err = u.UpdatePlayCount(item)
		mustRows(t, "UpdatePlayCount", n, err, 0)

		snap, ok := u.Snapshot("00000000000000A1")
		if !ok {
			t.Fatal("expected a snapshot after the update")
		}
		if year, _ := snap.StaticAttribute(attr.Year).AsInt(); year != 8000 {
			t.Errorf("expected snapshot year 8000, got %d", year)
		}
	})

	log := loadReporter(t, path).Log(10)
	want := []int64{20, 7, 0, 50}
	if len(log) != len(want) {
		t.Fatalf("expected %d log entries, got %d", len(want), len(log))
	}
	for i, v := range want {
		if log[i].Value != v {
			t.Errorf("log[%d]: expected %d, got %d", i, v, log[i].Value)
		}
		if log[i].Title != "Mock Song" {
			t.Errorf("log[%d]: expected title, got %q", i, log[i].Title)
		}
	}
}

func randomItems(n int) []track.Track {
	items := make([]track.Track, n)
	for i := range items {
		items[i] = library.NewItem(attr.FormatPersistentID(uint64(0x1000+i))).
			SetText(attr.Title, fmt.Sprintf("Track %d", i)).
			SetText(attr.Genre, []string{"Rock", "Jazz", ""}[i%3]).
			Set(attr.TotalTime, attr.Integer(int64(180000+i*1000))).
			SetPlayCount(int64(i * 3)).
			SetRating(int64(i%6) * 20)
	}
	return items
}

func TestUpdaterInitializationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Second)
	lib := randomItems(11)

	for pass, expected := range []int{3 * len(lib), 0} {
		session(t, path, store.ReadWrite, clock, func(u *Updater) {
			result := &Result{}
			for _, item := range lib {
				if err := u.UpdateTrack(item, result); err != nil {
					t.Fatalf("UpdateTrack failed: %v", err)
				}
			}
			if result.RowsChanged() != expected {
				t.Errorf("pass %d: expected %d rows changed, got %d", pass+1, expected, result.RowsChanged())
			}
		})
	}

	if n := len(loadReporter(t, path).Log(100)); n != 2*len(lib) {
		t.Errorf("expected %d log entries, got %d", 2*len(lib), n)
	}
}

func TestUpdaterPlayCountDelta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Hour)
	t0 := clock.Peek()

	item := library.NewItem("00000000000000A1").SetText(attr.Title, "A1").SetPlayCount(0)

	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		if _, err := u.UpdateMeta(item); err != nil {
			t.Fatalf("UpdateMeta failed: %v", err)
		}
		n, err := u.UpdatePlayCount(item)
		mustRows(t, "first observation", n, err, 1)
		n, err = u.UpdatePlayCount(item)
		mustRows(t, "unchanged observation", n, err, 0)
	})

	item.SetPlayCount(5)
	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		n, err := u.UpdatePlayCount(item)
		mustRows(t, "later observation", n, err, 1)
	})

	rows, err := loadReporter(t, path).Report(report.Options{
		GroupBy: []string{track.GroupPersistentID},
		SortBy:  report.PropPlayCount,
		From:    t0,
		To:      clock.Peek(),
	})
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "00000000000000A1" || rows[0].Delta != 5 {
		t.Errorf("expected delta 5 for A1, got %+v", rows)
	}
}

func TestUpdaterChangeOnlyLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Minute)
	item := library.NewItem("00000000000000B2").SetPlayCount(3).SetRating(60)

	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		if _, err := u.UpdateMeta(item); err != nil {
			t.Fatalf("UpdateMeta failed: %v", err)
		}

		total := 0
		for i := 0; i < 5; i++ {
			n, err := u.UpdateRating(item)
			if err != nil {
				t.Fatalf("UpdateRating failed: %v", err)
			}
			total += n
		}
		if total != 1 {
			t.Errorf("expected one rating row for five identical observations, got %d", total)
		}

		// Ratings may return to an earlier value
		for _, r := range []int64{80, 60} {
			item.SetRating(r)
			n, err := u.UpdateRating(item)
			mustRows(t, "UpdateRating", n, err, 1)
		}
	})

	s, err := store.Open(path, &store.OpenOptions{Mode: store.DryRun})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()
	if n, _ := s.CountRows(store.RatingsTable); n != 3 {
		t.Errorf("expected 3 rating rows, got %d", n)
	}
}

func TestUpdaterLogLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Minute)
	item := library.NewItem("00000000000000C3").SetText(attr.Title, "C3")

	session(t, path, store.ReadWrite, clock, func(u *Updater) {
		if _, err := u.UpdateMeta(item); err != nil {
			t.Fatalf("UpdateMeta failed: %v", err)
		}
		for _, step := range []func(){
			func() { item.SetPlayCount(1); u.UpdatePlayCount(item) },
			func() { item.SetPlayCount(2); u.UpdatePlayCount(item) },
			func() { item.SetRating(80); u.UpdateRating(item) },
			func() { item.SetPlayCount(3); u.UpdatePlayCount(item) },
		} {
			step()
		}
	})

	log := loadReporter(t, path).Log(2)
	if len(log) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(log))
	}
	if log[0].Metric != attr.PlayCount || log[0].Value != 3 {
		t.Errorf("expected play count 3 first, got %s %d", log[0].Metric, log[0].Value)
	}
	if log[1].Metric != attr.Rating || log[1].Value != 80 {
		t.Errorf("expected rating 80 second, got %s %d", log[1].Metric, log[1].Value)
	}
	if !log[0].Time.After(log[1].Time) {
		t.Error("expected most recent entry first")
	}
}

func TestUpdaterDryRunDiscardsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Minute)
	lib := randomItems(3)

	session(t, path, store.DryRun, clock, func(u *Updater) {
		result := &Result{}
		for _, item := range lib {
			if err := u.UpdateTrack(item, result); err != nil {
				t.Fatalf("UpdateTrack failed: %v", err)
			}
		}
		if result.RowsChanged() != 9 {
			t.Errorf("expected 9 rows changed in the session, got %d", result.RowsChanged())
		}
	})

	if n := len(loadReporter(t, path).Snapshots()); n != 0 {
		t.Errorf("expected no metadata after a dry run, got %d rows", n)
	}
}

// sliceSource serves a fixed list of items
type sliceSource struct {
	items []track.Track
}

func (s *sliceSource) Name() string { return "test" }

func (s *sliceSource) Tracks(ctx context.Context) ([]track.Track, error) {
	return s.items, nil
}

func TestRunIsolatesItemErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := util.NewStepClock(epoch, time.Minute)

	items := randomItems(2)
	items = append(items[:1], append([]track.Track{library.NewItem("not-an-id")}, items[1:]...)...)

	var progress []int
	s, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	u, err := New(&Config{
		Store:    s,
		Clock:    clock,
		Progress: func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := u.Run(context.Background(), &sliceSource{items: items})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Tracks != 3 {
		t.Errorf("expected 3 tracks seen, got %d", result.Tracks)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], util.ErrInvalidID) {
		t.Errorf("expected one invalid id error, got %v", result.Errors)
	}
	if result.MetaCreated != 2 || result.PlayCountEvents != 2 || result.RatingEvents != 2 {
		t.Errorf("unexpected counters: %+v", result.Counters())
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("expected progress after every item, got %v", progress)
	}
}

func TestRunCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	u, err := New(&Config{Store: s})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := u.Run(ctx, &sliceSource{items: randomItems(4)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Tracks != 0 {
		t.Errorf("expected no tracks processed, got %+v", result)
	}
}

func TestRunWritesEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	events, err := report.NewEventLogger(filepath.Join(dir, "events"), report.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	s, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	u, err := New(&Config{Store: s, Clock: util.NewStepClock(epoch, time.Second), Events: events})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := u.Run(context.Background(), &sliceSource{items: randomItems(2)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	events.Close()

	file, err := os.Open(events.Path())
	if err != nil {
		t.Fatalf("Failed to open event log: %v", err)
	}
	defer file.Close()

	counts := map[report.EventType]int{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e report.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid event line: %v", err)
		}
		counts[e.Event]++
	}

	expected := map[report.EventType]int{
		report.EventRunStart:   1,
		report.EventMetaCreate: 2,
		report.EventChange:     4,
		report.EventRunEnd:     1,
	}
	for typ, n := range expected {
		if counts[typ] != n {
			t.Errorf("expected %d %s events, got %d", n, typ, counts[typ])
		}
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(&Config{}); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
