package library

import (
	"context"
	"fmt"
	"os"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/track"
	"github.com/franz/music-ledger/internal/util"
	"github.com/goccy/go-json"
)

// ExportRecord is one track in a JSON library export. Missing fields are
// absent observations.
type ExportRecord struct {
	PersistentID string  `json:"persistent_id"`
	AlbumTitle   *string `json:"album_title,omitempty"`
	ArtistName   *string `json:"artist_name,omitempty"`
	BitRate      *int64  `json:"bit_rate,omitempty"`
	FileSize     *int64  `json:"file_size,omitempty"`
	Genre        *string `json:"genre,omitempty"`
	Kind         *string `json:"kind,omitempty"`
	SampleRate   *int64  `json:"sample_rate,omitempty"`
	Title        *string `json:"title,omitempty"`
	TotalTime    *int64  `json:"total_time,omitempty"`
	Year         *int64  `json:"year,omitempty"`
	PlayCount    *int64  `json:"play_count,omitempty"`
	Rating       *int64  `json:"rating,omitempty"`
}

// ExportSource reads items from a JSON array of ExportRecord
type ExportSource struct {
	path string
}

// NewExportSource creates a source for the export file at path
func NewExportSource(path string) *ExportSource {
	return &ExportSource{path: path}
}

// Name describes the source
func (e *ExportSource) Name() string {
	return "export " + e.path
}

// Tracks decodes the export. Records with an invalid or repeated id are
// logged and skipped.
func (e *ExportSource) Tracks(ctx context.Context) ([]track.Track, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	items, err := DecodeExport(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.path, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	util.InfoLog("Read %d track(s) from %s", len(items), e.path)
	return items, nil
}

// DecodeExport converts export JSON into items
func DecodeExport(data []byte) ([]track.Track, error) {
	var records []ExportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	result := make([]track.Track, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		id, err := attr.ParsePersistentID(rec.PersistentID)
		if err != nil {
			util.WarnLog("Skipping export record %d: %v", i, err)
			continue
		}
		if seen[id] {
			util.WarnLog("Skipping export record %d: duplicate id %s", i, id)
			continue
		}
		seen[id] = true
		result = append(result, rec.item(id))
	}

	return result, nil
}

func (rec *ExportRecord) item(id string) *Item {
	item := NewItem(id)

	texts := map[string]*string{
		attr.AlbumTitle: rec.AlbumTitle,
		attr.ArtistName: rec.ArtistName,
		attr.Genre:      rec.Genre,
		attr.Kind:       rec.Kind,
		attr.Title:      rec.Title,
	}
	for name, s := range texts {
		if s != nil {
			item.Set(name, attr.Text(cleanString(*s)))
		}
	}

	ints := map[string]*int64{
		attr.BitRate:    rec.BitRate,
		attr.FileSize:   rec.FileSize,
		attr.SampleRate: rec.SampleRate,
		attr.TotalTime:  rec.TotalTime,
		attr.Year:       rec.Year,
	}
	for name, n := range ints {
		if n != nil {
			item.Set(name, attr.Integer(*n))
		}
	}

	if rec.PlayCount != nil {
		item.SetPlayCount(*rec.PlayCount)
	}
	if rec.Rating != nil {
		item.SetRating(*rec.Rating)
	}

	return item
}

// EncodeExport renders tracks in the export format
func EncodeExport(tracks []track.Track) ([]byte, error) {
	records := make([]ExportRecord, 0, len(tracks))
	for _, t := range tracks {
		rec := ExportRecord{PersistentID: t.PersistentID()}
		rec.AlbumTitle = textPtr(t, attr.AlbumTitle)
		rec.ArtistName = textPtr(t, attr.ArtistName)
		rec.Genre = textPtr(t, attr.Genre)
		rec.Kind = textPtr(t, attr.Kind)
		rec.Title = textPtr(t, attr.Title)
		rec.BitRate = intPtr(t, attr.BitRate)
		rec.FileSize = intPtr(t, attr.FileSize)
		rec.SampleRate = intPtr(t, attr.SampleRate)
		rec.TotalTime = intPtr(t, attr.TotalTime)
		rec.Year = intPtr(t, attr.Year)
		if n, ok := t.PlayCount(); ok {
			rec.PlayCount = &n
		}
		if n, ok := t.Rating(); ok {
			rec.Rating = &n
		}
		records = append(records, rec)
	}

	return json.MarshalIndent(records, "", "  ")
}

func textPtr(t track.Track, name string) *string {
	if s, ok := t.StaticAttribute(name).AsString(); ok {
		return &s
	}
	return nil
}

func intPtr(t track.Track, name string) *int64 {
	if n, ok := t.StaticAttribute(name).AsInt(); ok {
		return &n
	}
	return nil
}

var _ Source = (*ExportSource)(nil)
