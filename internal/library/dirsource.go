package library

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhowden/tag"
	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/util"
	"golang.org/x/text/unicode/norm"
)

// AudioExtensions are the default supported audio file extensions
var AudioExtensions = []string{
	".mp3",
	".flac",
	".m4a",
	".aac",
	".ogg",
	".opus",
	".wav",
	".aiff",
	".aif",
	".wma",
	".ape",
	".wv",  // WavPack
	".mpc", // Musepack
}

// DirSource reads items from audio files under a directory
type DirSource struct {
	root        string
	extensions  map[string]bool
	concurrency int
	probe       bool
}

// DirConfig holds directory source configuration
type DirConfig struct {
	Root           string
	AdditionalExts []string
	Concurrency    int

	// Probe runs ffprobe for bit rate, sample rate and duration when it is
	// installed
	Probe bool
}

// NewDirSource creates a directory source
func NewDirSource(cfg *DirConfig) *DirSource {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	// Build extension map (case-insensitive)
	extMap := make(map[string]bool)
	for _, ext := range AudioExtensions {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range cfg.AdditionalExts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}

	probe := cfg.Probe
	if probe && !CheckFFprobeAvailable() {
		util.WarnLog("ffprobe not found, BitRate/SampleRate/TotalTime will be absent")
		probe = false
	}

	return &DirSource{
		root:        cfg.Root,
		extensions:  extMap,
		concurrency: cfg.Concurrency,
		probe:       probe,
	}
}

// Name describes the source
func (d *DirSource) Name() string {
	return "directory " + d.root
}

// Tracks walks the root and reads every audio file. Files that cannot be
// read are logged and skipped. Items are ordered by path.
func (d *DirSource) Tracks(ctx context.Context) ([]track.Track, error) {
	util.InfoLog("Scanning %s", d.root)

	var paths []string
	walkErr := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil // Continue walking
		}

		if entry.IsDir() || !d.isAudioFile(path) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk error: %w", walkErr)
	}

	items := make([]*Item, len(paths))
	var failed atomic.Int64

	jobs := make(chan int, d.concurrency*2)
	var wg sync.WaitGroup
	for range d.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item, err := d.readFile(ctx, paths[i])
				if err != nil {
					util.WarnLog("Skipping %s: %v", paths[i], err)
					failed.Add(1)
					continue
				}
				items[i] = item
			}
		}()
	}

	start := time.Now()
feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]track.Track, 0, len(items))
	seen := make(map[string]string, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if prev, dup := seen[item.id]; dup {
			util.WarnLog("Skipping %s: id %s already used by %s", item.Path, item.id, prev)
			continue
		}
		seen[item.id] = item.Path
		result = append(result, item)
	}

	util.SuccessLog("Scan complete: %d files read, %d skipped in %s",
		len(result), failed.Load(), time.Since(start).Round(time.Millisecond))

	return result, nil
}

// PersistentIDForPath derives a stable id from a path relative to the root
func PersistentIDForPath(rel string) string {
	sum := sha1.Sum([]byte(filepath.ToSlash(rel)))
	return attr.FormatPersistentID(binary.BigEndian.Uint64(sum[:8]))
}

func (d *DirSource) readFile(ctx context.Context, path string) (*Item, error) {
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve relative path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	item := NewItem(PersistentIDForPath(rel))
	item.Path = path
	item.Set(attr.FileSize, attr.Integer(info.Size()))

	if err := readTags(path, item); err != nil {
		util.DebugLog("No tags in %s: %v", path, err)
		item.SetText(attr.Kind, kindForExtension(path))
	}
	applyFilenameHints(item, rel)

	if d.probe {
		probe, err := RunFFprobe(ctx, path)
		if err != nil {
			util.DebugLog("ffprobe failed for %s: %v", path, err)
		} else {
			props := probe.Properties()
			setPositive(item, attr.BitRate, props.BitRateKbps)
			setPositive(item, attr.SampleRate, props.SampleRateHz)
			setPositive(item, attr.TotalTime, props.DurationMs)
		}
	}

	return item, nil
}

func readTags(path string, item *Item) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}

	item.SetText(attr.Title, cleanString(m.Title()))
	item.SetText(attr.ArtistName, cleanString(m.Artist()))
	item.SetText(attr.AlbumTitle, cleanString(m.Album()))
	item.SetText(attr.Genre, cleanString(m.Genre()))
	item.SetText(attr.Kind, fmt.Sprintf("%s audio file", m.FileType()))
	if m.Year() > 0 {
		item.Set(attr.Year, attr.Integer(int64(m.Year())))
	}

	// ID3v2 popularimeter carries rating and play count
	if raw, ok := m.Raw()["POPM"].([]byte); ok {
		popm, err := ParsePOPM(raw)
		if err != nil {
			util.DebugLog("Ignoring POPM frame in %s: %v", path, err)
			return nil
		}
		if r, ok := popm.Rating100(); ok {
			item.SetRating(r)
		}
		if popm.HasCounter {
			item.SetPlayCount(popm.Counter)
		}
	}

	return nil
}

func setPositive(item *Item, name string, n int64) {
	if n > 0 {
		item.Set(name, attr.Integer(n))
	}
}

// cleanString performs basic string cleaning (Unicode, trim, collapse)
func cleanString(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func kindForExtension(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return strings.ToUpper(ext) + " audio file"
}

// isAudioFile checks if a file has a supported audio extension
func (d *DirSource) isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return d.extensions[ext]
}

var _ Source = (*DirSource)(nil)
