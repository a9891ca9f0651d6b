package scanner

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCoverPlaceholderForMissingArt(t *testing.T) {
	env := newTestEnv()
	covers := NewCoverProducer(env.repos, env.files, env.coord)

	data, mimeType, err := covers.Get(context.Background(), 1, CoverAlbum, 99, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mimeType != "image/png" || len(data) == 0 {
		t.Fatalf("placeholder = %d bytes %q, want png", len(data), mimeType)
	}
	if env.ledger.has(1, albumCoverKey(99, 0)) {
		t.Fatal("placeholders must never be cached")
	}
}

func TestCoverFromImageFileIsCached(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	covers := NewCoverProducer(env.repos, env.files, env.coord)

	artist, _ := env.repos.Artists.FindOrCreate(1, "A")
	album, _ := env.repos.Albums.FindOrCreate(1, "AL", artist.ID)
	art := makePNG(t, 100, 50)
	f := env.files.Put("/music/A/AL/cover.png", "image/png", art)
	if err := env.repos.Albums.SetCoverFile(album.ID, &f.ID); err != nil {
		t.Fatal(err)
	}

	data, mimeType, err := covers.Get(ctx, 1, CoverAlbum, album.ID, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mimeType != "image/png" || !bytes.Equal(data, art) {
		t.Fatal("original-size cover should pass through unchanged")
	}
	if !env.ledger.has(1, albumCoverKey(album.ID, 0)) {
		t.Fatal("cover should be cached under its size variant key")
	}

	// Second read is served from the cache and still carries a mime type.
	again, mimeType, err := covers.Get(ctx, 1, CoverAlbum, album.ID, 0)
	if err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if mimeType != "image/png" || !bytes.Equal(again, data) {
		t.Fatal("cached read should return identical bytes")
	}
}

func TestCoverScaledToRequestedSize(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	covers := NewCoverProducer(env.repos, env.files, env.coord)

	artist, _ := env.repos.Artists.FindOrCreate(1, "A")
	f := env.files.Put("/music/A.png", "image/png", makePNG(t, 100, 50))
	if err := env.repos.Artists.SetCoverFile(artist.ID, &f.ID); err != nil {
		t.Fatal(err)
	}

	data, mimeType, err := covers.Get(ctx, 1, CoverArtist, artist.ID, 32)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mimeType != "image/png" {
		t.Fatalf("mime = %q, want image/png", mimeType)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode scaled cover: %v", err)
	}
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 32 || h != 16 {
		t.Fatalf("scaled to %dx%d, want 32x16 (aspect kept)", w, h)
	}
	if !env.ledger.has(1, artistCoverKey(artist.ID, 32)) {
		t.Fatal("size variant should be cached under its own key")
	}
}

func TestCoverRejectsUnknownKind(t *testing.T) {
	env := newTestEnv()
	covers := NewCoverProducer(env.repos, env.files, env.coord)

	if _, _, err := covers.Get(context.Background(), 1, CoverKind("genre"), 1, 0); err == nil {
		t.Fatal("unknown kind should error")
	}
}

func TestScaleCoverPassesSmallImagesThrough(t *testing.T) {
	small := makePNG(t, 16, 16)
	if _, _, ok := scaleCover(small, 256); ok {
		t.Fatal("images within bounds must not be re-encoded")
	}
	if _, _, ok := scaleCover([]byte("not an image"), 256); ok {
		t.Fatal("undecodable data must pass through")
	}
}
