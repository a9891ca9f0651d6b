package scanner

import (
	"context"
	"encoding/json"
	"fmt"

	"melodex/cache"
	"melodex/repository"
)

// SnapshotProducer builds the whole-collection document for a user and
// caches it through the coherency layer. The document is only ever computed
// wholesale; partial updates do not exist.
type SnapshotProducer struct {
	repos *repository.Repositories
	cache *cache.Coordinator
}

// NewSnapshotProducer creates a snapshot producer.
func NewSnapshotProducer(repos *repository.Repositories, cache *cache.Coordinator) *SnapshotProducer {
	return &SnapshotProducer{repos: repos, cache: cache}
}

type snapshotTrack struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	Number  int    `json:"number"`
	Disc    int    `json:"disc"`
	Year    int    `json:"year,omitempty"`
	FileID  string `json:"fileId"`
	Mime    string `json:"mime"`
	Length  int    `json:"length"`
	Bitrate int    `json:"bitrate"`
	GenreID *uint  `json:"genreId,omitempty"`
}

type snapshotAlbum struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	HasCover bool            `json:"hasCover"`
	Tracks   []snapshotTrack `json:"tracks"`
}

type snapshotArtist struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	HasCover bool            `json:"hasCover"`
	Albums   []snapshotAlbum `json:"albums"`
}

type snapshotGenre struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type snapshotDocument struct {
	Artists []snapshotArtist `json:"artists"`
	Genres  []snapshotGenre  `json:"genres"`
}

// Get returns the user's collection snapshot, regenerating it from the
// entity graph on a cache miss.
func (p *SnapshotProducer) Get(ctx context.Context, userID int64) ([]byte, error) {
	if data, found, err := p.cache.Get(ctx, userID, collectionKey); err != nil {
		return nil, err
	} else if found {
		return data, nil
	}

	data, err := p.build(userID)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Put(ctx, userID, collectionKey, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (p *SnapshotProducer) build(userID int64) ([]byte, error) {
	artists, err := p.repos.Artists.AllByUser(userID)
	if err != nil {
		return nil, err
	}
	albums, err := p.repos.Albums.AllByUser(userID)
	if err != nil {
		return nil, err
	}
	tracks, err := p.repos.Tracks.AllByUser(userID)
	if err != nil {
		return nil, err
	}
	genres, err := p.repos.Genres.AllByUser(userID)
	if err != nil {
		return nil, err
	}

	tracksByAlbum := map[uint][]snapshotTrack{}
	for _, t := range tracks {
		tracksByAlbum[t.AlbumID] = append(tracksByAlbum[t.AlbumID], snapshotTrack{
			ID:      t.ID,
			Title:   t.Title,
			Number:  t.Number,
			Disc:    t.Disc,
			Year:    t.Year,
			FileID:  t.FileID,
			Mime:    t.Mime,
			Length:  t.Length,
			Bitrate: t.Bitrate,
			GenreID: t.GenreID,
		})
	}

	albumsByArtist := map[uint][]snapshotAlbum{}
	for _, a := range albums {
		albumsByArtist[a.ArtistID] = append(albumsByArtist[a.ArtistID], snapshotAlbum{
			ID:       a.ID,
			Name:     a.Name,
			HasCover: a.CoverFileID != nil,
			Tracks:   tracksByAlbum[a.ID],
		})
	}

	doc := snapshotDocument{
		Artists: make([]snapshotArtist, 0, len(artists)),
		Genres:  make([]snapshotGenre, 0, len(genres)),
	}
	for _, a := range artists {
		doc.Artists = append(doc.Artists, snapshotArtist{
			ID:       a.ID,
			Name:     a.Name,
			HasCover: a.CoverFileID != nil,
			Albums:   albumsByArtist[a.ID],
		})
	}
	for _, g := range genres {
		doc.Genres = append(doc.Genres, snapshotGenre{ID: g.ID, Name: g.Name})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot for user %d: %w", userID, err)
	}
	return data, nil
}
