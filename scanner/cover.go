package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"net/http"
	"sync"

	_ "image/gif"

	"melodex/cache"
	"melodex/filestore"
	"melodex/logger"
	"melodex/repository"
)

// CoverKind selects which entity a cover request targets.
type CoverKind string

const (
	CoverAlbum  CoverKind = "album"
	CoverArtist CoverKind = "artist"
)

// CoverProducer resolves cover art for albums and artists, scales it, and
// caches the result through the coherency layer. When no real artwork is
// resolvable it falls back to a generated placeholder, which is never cached
// so the next request after art appears picks it up.
type CoverProducer struct {
	repos *repository.Repositories
	files filestore.FileStore
	cache *cache.Coordinator
}

// NewCoverProducer creates a cover producer.
func NewCoverProducer(repos *repository.Repositories, files filestore.FileStore, cache *cache.Coordinator) *CoverProducer {
	return &CoverProducer{repos: repos, files: files, cache: cache}
}

// Get returns cover image bytes and their mime type. size > 0 bounds the
// longer image edge; 0 returns the original.
func (p *CoverProducer) Get(ctx context.Context, userID int64, kind CoverKind, id uint, size int) ([]byte, string, error) {
	var key string
	switch kind {
	case CoverAlbum:
		key = albumCoverKey(id, size)
	case CoverArtist:
		key = artistCoverKey(id, size)
	default:
		return nil, "", fmt.Errorf("unknown cover kind %q", kind)
	}

	if data, found, err := p.cache.Get(ctx, userID, key); err != nil {
		return nil, "", err
	} else if found {
		return data, http.DetectContentType(data), nil
	}

	data, mimeType := p.resolve(ctx, kind, id)
	if data == nil {
		ph, phMime := placeholderCover()
		return ph, phMime, nil
	}

	if size > 0 {
		if scaled, scaledMime, ok := scaleCover(data, size); ok {
			data, mimeType = scaled, scaledMime
		}
	}

	if err := p.cache.Put(ctx, userID, key, data); err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

// resolve fetches the raw artwork bytes for an entity, either from an image
// file or from art embedded in an audio file.
func (p *CoverProducer) resolve(ctx context.Context, kind CoverKind, id uint) ([]byte, string) {
	var coverFileID *string
	switch kind {
	case CoverAlbum:
		album, err := p.repos.Albums.GetByID(id)
		if err != nil || album == nil {
			return nil, ""
		}
		coverFileID = album.CoverFileID
	case CoverArtist:
		artist, err := p.repos.Artists.GetByID(id)
		if err != nil || artist == nil {
			return nil, ""
		}
		coverFileID = artist.CoverFileID
	}
	if coverFileID == nil {
		return nil, ""
	}

	file, err := p.files.GetByID(ctx, *coverFileID)
	if err != nil || file == nil {
		return nil, ""
	}
	data, err := p.files.ReadAll(ctx, file.ID)
	if err != nil || len(data) == 0 {
		return nil, ""
	}

	if filestore.IsImage(file.Mime) {
		return data, file.Mime
	}

	raw, err := ReadTags(data)
	if err != nil || raw == nil || len(raw.Picture) == 0 {
		return nil, ""
	}
	return raw.Picture, raw.PictureMime
}

// scaleCover downscales artwork so its longer edge is at most maxDim.
// Undecodable or already-small images pass through unchanged.
func scaleCover(data []byte, maxDim int) ([]byte, string, bool) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug("cover not decodable, serving original", logger.ErrorField(err))
		return nil, "", false
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return nil, "", false
	}

	var newW, newH int
	if w >= h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		srcY := bounds.Min.Y + y*h/newH
		for x := 0; x < newW; x++ {
			dst.Set(x, y, src.At(bounds.Min.X+x*w/newW, srcY))
		}
	}

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", false
		}
		return buf.Bytes(), "image/png", true
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", false
	}
	return buf.Bytes(), "image/jpeg", true
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// placeholderCover returns the generated fallback artwork. Built once per
// process and never mutated afterwards.
func placeholderCover() ([]byte, string) {
	placeholderOnce.Do(func() {
		const dim = 256
		img := image.NewRGBA(image.Rect(0, 0, dim, dim))
		bg := color.RGBA{R: 0x2e, G: 0x33, B: 0x40, A: 0xff}
		fg := color.RGBA{R: 0x8a, G: 0x93, B: 0xa6, A: 0xff}
		draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

		// A rough eighth note: stem plus note head.
		for y := 64; y < 176; y++ {
			for x := 148; x < 160; x++ {
				img.Set(x, y, fg)
			}
		}
		for y := 160; y < 196; y++ {
			for x := 104; x < 160; x++ {
				dx, dy := x-132, y-178
				if dx*dx+dy*dy <= 28*28 {
					img.Set(x, y, fg)
				}
			}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			panic(err) // cannot fail for an in-memory RGBA
		}
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG, "image/png"
}
