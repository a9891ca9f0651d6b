package scanner

import (
	"sort"
	"strings"
	"sync"

	"melodex/cache"
	"melodex/config"
	"melodex/filestore"
	"melodex/model"
	"melodex/repository"
)

// fakeDB is the shared in-memory state behind the repository fakes. The
// orphan checks need to see tracks and albums at once, so all fakes share it.
type fakeDB struct {
	mu      sync.Mutex
	nextID  uint
	artists map[uint]*model.Artist
	albums  map[uint]*model.Album
	genres  map[uint]*model.Genre
	tracks  map[uint]*model.Track
	entries []model.PlaylistEntry
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		artists: map[uint]*model.Artist{},
		albums:  map[uint]*model.Album{},
		genres:  map[uint]*model.Genre{},
		tracks:  map[uint]*model.Track{},
	}
}

func (db *fakeDB) id() uint {
	db.nextID++
	return db.nextID
}

type fakeArtists struct{ db *fakeDB }

func (r *fakeArtists) FindOrCreate(userID int64, name string) (*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.artists {
		if a.UserID == userID && a.Name == name {
			clone := *a
			return &clone, nil
		}
	}
	a := &model.Artist{ID: r.db.id(), UserID: userID, Name: name}
	r.db.artists[a.ID] = a
	clone := *a
	return &clone, nil
}

func (r *fakeArtists) GetByID(id uint) (*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.artists[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeArtists) FindByName(userID int64, name string) (*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.artists {
		if a.UserID == userID && a.Name == name {
			clone := *a
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeArtists) SetCoverFile(id uint, fileID *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.artists[id]; ok {
		a.CoverFileID = fileID
	}
	return nil
}

func (r *fakeArtists) AllByUser(userID int64) ([]*model.Artist, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Artist
	for _, a := range r.db.artists {
		if a.UserID == userID {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeArtists) DeleteOrphans(userID int64, candidateIDs []uint) ([]uint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted []uint
	for _, id := range candidateIDs {
		a, ok := r.db.artists[id]
		if !ok || a.UserID != userID {
			continue
		}
		referenced := false
		for _, t := range r.db.tracks {
			if t.ArtistID == id {
				referenced = true
				break
			}
		}
		if !referenced {
			for _, al := range r.db.albums {
				if al.ArtistID == id {
					referenced = true
					break
				}
			}
		}
		if !referenced {
			delete(r.db.artists, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

type fakeAlbums struct{ db *fakeDB }

func (r *fakeAlbums) FindOrCreate(userID int64, name string, artistID uint) (*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.albums {
		if a.UserID == userID && a.Name == name && a.ArtistID == artistID {
			clone := *a
			return &clone, nil
		}
	}
	a := &model.Album{ID: r.db.id(), UserID: userID, Name: name, ArtistID: artistID}
	r.db.albums[a.ID] = a
	clone := *a
	return &clone, nil
}

func (r *fakeAlbums) GetByID(id uint) (*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.albums[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeAlbums) SetCoverFile(id uint, fileID *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.albums[id]; ok {
		a.CoverFileID = fileID
	}
	return nil
}

func (r *fakeAlbums) AllByUser(userID int64) ([]*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Album
	for _, a := range r.db.albums {
		if a.UserID == userID {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeAlbums) ByIDs(ids []uint) ([]*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Album
	for _, id := range ids {
		if a, ok := r.db.albums[id]; ok {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAlbums) ByCoverFileIDs(fileIDs []string, userIDs []int64) ([]*model.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Album
	for _, a := range r.db.albums {
		if a.CoverFileID == nil || !containsString(fileIDs, *a.CoverFileID) {
			continue
		}
		if len(userIDs) > 0 && !containsInt64(userIDs, a.UserID) {
			continue
		}
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeAlbums) DeleteOrphans(userID int64, candidateIDs []uint) ([]uint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted []uint
	for _, id := range candidateIDs {
		a, ok := r.db.albums[id]
		if !ok || a.UserID != userID {
			continue
		}
		referenced := false
		for _, t := range r.db.tracks {
			if t.AlbumID == id {
				referenced = true
				break
			}
		}
		if !referenced {
			delete(r.db.albums, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

type fakeGenres struct{ db *fakeDB }

func (r *fakeGenres) FindOrCreate(userID int64, name string) (*model.Genre, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.genres {
		if g.UserID == userID && g.Name == name {
			clone := *g
			return &clone, nil
		}
	}
	g := &model.Genre{ID: r.db.id(), UserID: userID, Name: name}
	r.db.genres[g.ID] = g
	clone := *g
	return &clone, nil
}

func (r *fakeGenres) AllByUser(userID int64) ([]*model.Genre, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Genre
	for _, g := range r.db.genres {
		if g.UserID == userID {
			clone := *g
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeTracks struct{ db *fakeDB }

func (r *fakeTracks) Upsert(track *model.Track) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tracks {
		if t.UserID == track.UserID && t.FileID == track.FileID {
			track.ID = t.ID
			clone := *track
			r.db.tracks[t.ID] = &clone
			return track, nil
		}
	}
	track.ID = r.db.id()
	clone := *track
	r.db.tracks[track.ID] = &clone
	return track, nil
}

func (r *fakeTracks) GetByFileID(userID int64, fileID string) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.FileID == fileID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeTracks) ByFileIDs(fileIDs []string, userIDs []int64) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Track
	for _, t := range r.db.tracks {
		if !containsString(fileIDs, t.FileID) {
			continue
		}
		if len(userIDs) > 0 && !containsInt64(userIDs, t.UserID) {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeTracks) ByAlbum(albumID uint) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Track
	for _, t := range r.db.tracks {
		if t.AlbumID == albumID {
			clone := *t
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Disc != out[j].Disc {
			return out[i].Disc < out[j].Disc
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r *fakeTracks) AllByUser(userID int64) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Track
	for _, t := range r.db.tracks {
		if t.UserID == userID {
			clone := *t
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	return out, nil
}

func (r *fakeTracks) FileIDsByUser(userID int64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []string
	for _, t := range r.db.tracks {
		if t.UserID == userID {
			out = append(out, t.FileID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeTracks) MarkDirty(userID int64, fileIDs []string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, t := range r.db.tracks {
		if t.UserID == userID && containsString(fileIDs, t.FileID) && !t.Dirty {
			t.Dirty = true
			n++
		}
	}
	return n, nil
}

func (r *fakeTracks) DirtyFileIDs(userID int64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []string
	for _, t := range r.db.tracks {
		if t.UserID == userID && t.Dirty {
			out = append(out, t.FileID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeTracks) CountByUser(userID int64) (int64, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var total, dirty int64
	for _, t := range r.db.tracks {
		if t.UserID != userID {
			continue
		}
		total++
		if t.Dirty {
			dirty++
		}
	}
	return total, dirty, nil
}

func (r *fakeTracks) DeleteByFileIDs(fileIDs []string, userIDs []int64) ([]*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted []*model.Track
	for id, t := range r.db.tracks {
		if !containsString(fileIDs, t.FileID) {
			continue
		}
		if len(userIDs) > 0 && !containsInt64(userIDs, t.UserID) {
			continue
		}
		clone := *t
		deleted = append(deleted, &clone)
		delete(r.db.tracks, id)
	}
	return deleted, nil
}

type fakePlaylists struct {
	db           *fakeDB
	removedCalls int
}

func (r *fakePlaylists) RemoveTracks(trackIDs []uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.removedCalls++
	var kept []model.PlaylistEntry
	for _, e := range r.db.entries {
		if !containsUint(trackIDs, e.TrackID) {
			kept = append(kept, e)
		}
	}
	r.db.entries = kept
	return nil
}

// fakeLedger is an instrumented in-memory cache ledger counting the
// invalidation calls the synchronizer makes.
type fakeLedger struct {
	mu              sync.Mutex
	entries         map[int64]map[string]string
	deleteAllCalls  int
	deletePrefCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[int64]map[string]string{}}
}

func (l *fakeLedger) Get(userID int64, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.entries[userID][key]
	return v, ok, nil
}

func (l *fakeLedger) Set(userID int64, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[userID] == nil {
		l.entries[userID] = map[string]string{}
	}
	l.entries[userID][key] = value
	return nil
}

func (l *fakeLedger) Delete(userID int64, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries[userID], key)
	return nil
}

func (l *fakeLedger) DeleteByPrefix(userID int64, prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deletePrefCalls++
	for key := range l.entries[userID] {
		if strings.HasPrefix(key, prefix) {
			delete(l.entries[userID], key)
		}
	}
	return nil
}

func (l *fakeLedger) DeleteAll(userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleteAllCalls++
	delete(l.entries, userID)
	return nil
}

func (l *fakeLedger) has(userID int64, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[userID][key]
	return ok
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt64(list []int64, v int64) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}

func containsUint(list []uint, v uint) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}

// testEnv wires a synchronizer over the in-memory fakes. Tag analysis is off;
// the normalizer's tag precedence has its own tests, so these run on path
// fallbacks and keep the fixtures byte-free.
type testEnv struct {
	db     *fakeDB
	ledger *fakeLedger
	blobs  *cache.MemoryBlobStore
	files  *filestore.MemoryFileStore
	repos  *repository.Repositories
	coord  *cache.Coordinator
	cfg    *config.Config
	sync   *Synchronizer
}

func newTestEnv() *testEnv {
	db := newFakeDB()
	ledger := newFakeLedger()
	blobs := cache.NewMemoryBlobStore()
	files := filestore.NewMemoryFileStore()
	cfg := &config.Config{
		LibraryRoot:        "/music",
		MetadataEnabled:    false,
		CacheMaxBytes:      1 << 20,
		BulkInvalidateMin:  30,
		FolderMoveDirtyMin: 10,
	}
	repos := &repository.Repositories{
		Artists:   &fakeArtists{db: db},
		Albums:    &fakeAlbums{db: db},
		Genres:    &fakeGenres{db: db},
		Tracks:    &fakeTracks{db: db},
		Playlists: &fakePlaylists{db: db},
		Cache:     ledger,
	}
	coord := cache.NewCoordinator(ledger, blobs, cfg.CacheMaxBytes)
	return &testEnv{
		db:     db,
		ledger: ledger,
		blobs:  blobs,
		files:  files,
		repos:  repos,
		coord:  coord,
		cfg:    cfg,
		sync:   NewSynchronizer(repos, files, coord, cfg),
	}
}
