package scanner

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// ReadTags parses the tags of an audio file. Any parser error or panic is
// returned as an error; callers degrade to "no tag data" and rely on the
// filename/path fallbacks instead of aborting their batch.
func ReadTags(data []byte) (raw *RawTags, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("tag parser panicked: %v", r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	fields := map[string]string{
		"artist":      m.Artist(),
		"albumartist": m.AlbumArtist(),
		"title":       m.Title(),
		"album":       m.Album(),
		"genre":       m.Genre(),
	}
	if year := m.Year(); year > 0 {
		fields["year"] = strconv.Itoa(year)
	}
	if track, total := m.Track(); track > 0 {
		if total > 0 {
			fields["track"] = fmt.Sprintf("%d/%d", track, total)
		} else {
			fields["track"] = strconv.Itoa(track)
		}
	}
	if disc, total := m.Disc(); disc > 0 {
		if total > 0 {
			fields["disc"] = fmt.Sprintf("%d/%d", disc, total)
		} else {
			fields["disc"] = strconv.Itoa(disc)
		}
	}

	// Formats disagree on where the album artist lives; carry the known
	// variants through so the normalizer's tag group can pick them up.
	for key, val := range m.Raw() {
		lower := strings.ToLower(key)
		switch lower {
		case "band", "album artist", "album_artist", "tpe2":
			if s, ok := val.(string); ok && s != "" {
				if lower == "tpe2" {
					lower = "band"
				}
				if fields[lower] == "" {
					fields[lower] = s
				}
			}
		}
	}

	raw = &RawTags{Fields: fields}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		raw.Picture = pic.Data
		raw.PictureMime = pic.MIMEType
	}
	return raw, nil
}
