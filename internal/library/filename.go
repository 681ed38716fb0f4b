package library

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/franz/music-ledger/internal/attr"
)

// FilenameHints holds metadata guessed from a file's name and folders
type FilenameHints struct {
	Artist     string
	Album      string
	Title      string
	Track      int
	Year       int
	Confidence float64 // 0.0-1.0 how confident we are in the parse
}

var filenamePatterns = []struct {
	re         *regexp.Regexp
	parse      func(*FilenameHints, []string)
	confidence float64
}{
	{
		// "01 - Artist - Title"
		re: regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+?)\s*[-_.]\s*(.+)$`),
		parse: func(h *FilenameHints, m []string) {
			h.Track, _ = strconv.Atoi(m[1])
			h.Artist = strings.TrimSpace(m[2])
			h.Title = strings.TrimSpace(m[3])
		},
		confidence: 0.8,
	},
	{
		// "01 - Title"
		re: regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+)$`),
		parse: func(h *FilenameHints, m []string) {
			h.Track, _ = strconv.Atoi(m[1])
			h.Title = strings.TrimSpace(m[2])
		},
		confidence: 0.7,
	},
	{
		// "Artist - Title"
		re: regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`),
		parse: func(h *FilenameHints, m []string) {
			h.Artist = strings.TrimSpace(m[1])
			h.Title = strings.TrimSpace(m[2])
		},
		confidence: 0.5,
	},
}

var (
	discFolder = regexp.MustCompile(`^(?i)(disc|cd|disk)\s*\d+$`)
	yearPrefix = regexp.MustCompile(`^(\d{4})\s*[-_.]\s*(.+)$`)
	yearSuffix = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`)
)

// ParseFilename guesses metadata from a path relative to the library root.
// Folders are read as Artist/Album[/Disc N]/file.
func ParseFilename(rel string) *FilenameHints {
	base := filepath.Base(rel)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	hints := &FilenameHints{Confidence: 0.2}
	for _, p := range filenamePatterns {
		if m := p.re.FindStringSubmatch(name); m != nil {
			p.parse(hints, m)
			hints.Confidence = p.confidence
			break
		}
	}
	if hints.Title == "" {
		hints.Title = name
	}
	if hints.Track > 0 {
		hints.Confidence = min(hints.Confidence+0.15, 1.0)
	}

	hints.inferFromFolders(filepath.Dir(rel))
	return hints
}

func (h *FilenameHints) inferFromFolders(dir string) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	if len(parts) < 2 {
		return
	}

	album, artist := parts[len(parts)-1], parts[len(parts)-2]
	if discFolder.MatchString(album) {
		if len(parts) < 3 {
			return
		}
		album, artist = parts[len(parts)-2], parts[len(parts)-3]
	}

	if m := yearPrefix.FindStringSubmatch(album); m != nil {
		h.Year, _ = strconv.Atoi(m[1])
		album = m[2]
	} else if m := yearSuffix.FindStringSubmatch(album); m != nil {
		album = m[1]
		h.Year, _ = strconv.Atoi(m[2])
	}

	h.Album = strings.TrimSpace(album)
	if h.Artist == "" {
		h.Artist = artist
	}
}

// applyFilenameHints fills attributes the tags left absent. The title is
// always filled so that every item has a name.
func applyFilenameHints(item *Item, rel string) {
	hints := ParseFilename(rel)

	fill := func(name, value string) {
		if value != "" && item.StaticAttribute(name).IsAbsent() {
			item.SetText(name, cleanString(value))
		}
	}

	fill(attr.Title, hints.Title)
	fill(attr.AlbumTitle, hints.Album)
	if hints.Confidence >= 0.5 {
		fill(attr.ArtistName, hints.Artist)
	}
	if hints.Year > 0 && item.StaticAttribute(attr.Year).IsAbsent() {
		item.Set(attr.Year, attr.Integer(int64(hints.Year)))
	}
}
