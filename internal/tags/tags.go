// Package tags reads embedded metadata from audio files into catalog
// changesets. It never writes to the files.
package tags

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"github.com/llehouerou/beatbank/internal/catalog"
)

// Audio file extensions.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
	ExtWAV  = ".wav"
)

// IsMusicFile reports whether path has a supported audio file extension.
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3, ExtFLAC, ExtOPUS, ExtOGG, ExtOGA, ExtM4A, ExtMP4, ExtWAV:
		return true
	}
	return false
}

// fields is the subset of tag metadata the catalog stores.
type fields struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Composer string
	Lyricist string
	Comment  string
	Year     int
	Track    int
}

// Read reads embedded tags from the file at path and returns them as a
// changeset with the ID left zero. Empty tags stay nil so applying the
// changeset never blanks a field. CoverArt is set to a cover image found
// next to the file, when there is one.
func Read(path string) (catalog.TrackChangeset, error) {
	f, err := readFields(path)
	if err != nil {
		return catalog.TrackChangeset{}, err
	}

	cs := f.changeset()
	if art := FolderArt(path); art != "" {
		cs.CoverArt = &art
	}
	return cs, nil
}

func readFields(path string) (*fields, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		if strings.ToLower(filepath.Ext(path)) == ExtMP3 {
			// dhowden/tag has issues with some UTF-16 encoded ID3 tags
			return readMP3WithID3v2(path)
		}
		if f, tlErr := readWithTaglib(path); tlErr == nil {
			return f, nil
		}
		return nil, err
	}

	track, _ := m.Track()
	f := &fields{
		Title:    m.Title(),
		Artist:   m.Artist(),
		Album:    m.Album(),
		Genre:    m.Genre(),
		Composer: m.Composer(),
		Comment:  m.Comment(),
		Year:     m.Year(),
		Track:    track,
	}

	raw := m.Raw()
	switch m.Format() {
	case tag.VORBIS:
		f.Lyricist = rawString(raw, "lyricist")
	case tag.ID3v2_3, tag.ID3v2_4:
		f.Lyricist = rawString(raw, "TEXT")
	case tag.ID3v2_2:
		f.Lyricist = rawString(raw, "TXT")
	}

	return f, nil
}

func rawString(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func (f *fields) changeset() catalog.TrackChangeset {
	return catalog.TrackChangeset{
		Title:       optString(f.Title),
		Artist:      optString(f.Artist),
		Album:       optString(f.Album),
		Genre:       optString(f.Genre),
		Composer:    optString(f.Composer),
		Lyricist:    optString(f.Lyricist),
		Comments:    optString(f.Comment),
		Year:        optInt(f.Year),
		TrackNumber: optInt(f.Track),
	}
}

// optString returns nil for blank values. Control characters some taggers
// leave behind are stripped.
func optString(s string) *string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optInt(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// parseNumber parses a track number string like "5" or "5/10".
func parseNumber(s string) int {
	if s == "" {
		return 0
	}
	num, _, _ := strings.Cut(s, "/")
	n, _ := strconv.Atoi(strings.TrimSpace(num))
	return n
}

// parseYear reads the year from a date like "2024" or "2024-03-09".
func parseYear(s string) int {
	if len(s) < 4 {
		return 0
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return year
}
