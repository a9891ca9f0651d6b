// Package scanner contains the library synchronization engine: the metadata
// normalizer, the tag extractor, the synchronizer driving the entity graph,
// and the snapshot/cover producers on top of the cache layer.
package scanner

import (
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// RawTags is the tag data read from one audio file. Fields maps lowercased
// tag names to values. A nil *RawTags means analysis was skipped or failed;
// only filename/path fallbacks apply then.
type RawTags struct {
	Fields      map[string]string
	Picture     []byte
	PictureMime string
}

// Metadata is the canonical field set the normalizer derives for one file.
type Metadata struct {
	Artist      string
	AlbumArtist string
	Title       string
	Album       string
	Genre       string
	GenreFound  bool // analysis ran; empty Genre then means "no genre tag"
	TrackNumber int  // 0 when absent
	DiscNumber  int
	Year        int // 0 when absent
	Picture     []byte
	PictureMime string
}

// Tag names that carry the album artist, in lookup order.
var albumArtistTags = []string{"band", "albumartist", "album artist", "album_artist"}

// Leading "<digits><separator>" prefix of a track file name.
var trackPrefixRe = regexp.MustCompile(`^(\d+)\s*[-_.]?\s+|^(\d+)[-_.]\s*`)

// Normalize derives canonical metadata from raw tags plus the file's name
// and location. It is pure: same inputs, same output, no I/O. Each field
// falls back independently through its chain; the first non-empty value wins.
func Normalize(raw *RawTags, fileName, filePath, libraryRoot string) Metadata {
	var meta Metadata

	tagValue := func(name string) string {
		if raw == nil {
			return ""
		}
		return strings.TrimSpace(raw.Fields[name])
	}
	groupValue := func(names []string) string {
		for _, name := range names {
			if v := tagValue(name); v != "" {
				return v
			}
		}
		return ""
	}

	parent := path.Dir(filePath)
	grandparent := path.Dir(parent)
	root := path.Clean(libraryRoot)

	// Artist and album artist converge whenever only one of them is tagged.
	tagArtist := tagValue("artist")
	tagAlbumArtist := groupValue(albumArtistTags)

	meta.Artist = tagArtist
	if meta.Artist == "" {
		meta.Artist = tagAlbumArtist
	}
	if meta.Artist == "" && grandparent != root && grandparent != "." && grandparent != "/" {
		meta.Artist = path.Base(grandparent)
	}
	meta.AlbumArtist = tagAlbumArtist
	if meta.AlbumArtist == "" {
		meta.AlbumArtist = meta.Artist
	}

	meta.Title = tagValue("title")
	if meta.Title == "" {
		meta.Title = titleFromFileName(fileName)
	}

	meta.Album = tagValue("album")
	if meta.Album == "" && parent != root && parent != "." && parent != "/" {
		meta.Album = path.Base(parent)
	}

	meta.TrackNumber = parseOrdinal(tagValue("tracknumber"), tagValue("track"))
	if meta.TrackNumber == 0 {
		meta.TrackNumber = trackNumberFromFileName(fileName)
	}

	meta.DiscNumber = parseOrdinal(tagValue("discnumber"), tagValue("disc"))
	if meta.DiscNumber == 0 {
		meta.DiscNumber = 1
	}

	meta.Year = parseYear(tagValue("year"), tagValue("date"))

	if raw != nil {
		meta.Genre = tagValue("genre")
		meta.GenreFound = true
		meta.Picture = raw.Picture
		meta.PictureMime = raw.PictureMime
	}

	return meta
}

// titleFromFileName strips the track-number prefix and the extension from a
// file name, leaving the free-text portion.
func titleFromFileName(fileName string) string {
	name := strings.TrimSuffix(fileName, path.Ext(fileName))
	stripped := trackPrefixRe.ReplaceAllString(name, "")
	if stripped != "" {
		return stripped
	}
	return name
}

// trackNumberFromFileName parses the numeric prefix of a file name, or 0.
func trackNumberFromFileName(fileName string) int {
	m := trackPrefixRe.FindStringSubmatch(fileName)
	if m == nil {
		return 0
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	return clampOrdinal(digits)
}

// parseOrdinal resolves a track/disc number from its tag variants. "N/M"
// forms yield the numerator. Non-positive and non-numeric values are absent.
func parseOrdinal(values ...string) int {
	for _, v := range values {
		if v == "" {
			continue
		}
		if i := strings.Index(v, "/"); i >= 0 {
			v = v[:i]
		}
		if n := clampOrdinal(strings.TrimSpace(v)); n > 0 {
			return n
		}
	}
	return 0
}

// parseYear resolves a year from a numeric tag or the leading four digits of
// an ISO-style date (yyyy-mm-dd...).
func parseYear(values ...string) int {
	for _, v := range values {
		if v == "" {
			continue
		}
		if n := clampOrdinal(v); n > 0 {
			return n
		}
		if len(v) >= 4 {
			if n := clampOrdinal(v[:4]); n > 0 {
				return n
			}
		}
	}
	return 0
}

// clampOrdinal parses a positive integer bounded to the signed-32-bit range.
// Anything non-positive or non-numeric is treated as absent, not as zero.
func clampOrdinal(s string) int {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
