package scanner

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"melodex/cache"
	"melodex/config"
	"melodex/filestore"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"

	"github.com/google/uuid"
)

// Synchronizer is the only component that mutates the entity graph, and the
// trigger for all cache invalidation. Every entry point is idempotent:
// natural-key upserts make retries and concurrent duplicates harmless.
type Synchronizer struct {
	repos *repository.Repositories
	files filestore.FileStore
	cache *cache.Coordinator
	cfg   *config.Config
}

// NewSynchronizer wires the synchronizer over its collaborators.
func NewSynchronizer(repos *repository.Repositories, files filestore.FileStore, cache *cache.Coordinator, cfg *config.Config) *Synchronizer {
	return &Synchronizer{repos: repos, files: files, cache: cache, cfg: cfg}
}

// ScanResult reports a bulk scan's outcome. Count can be lower than the
// number of requested files when some were unreadable or gone; that is a
// log trail, not an error.
type ScanResult struct {
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
}

// ScanStatus summarizes a user's library against the file store. LastScanAt
// is advisory and nil when no bulk scan finished since the last namespace wipe.
type ScanStatus struct {
	Unscanned  int64      `json:"unscanned"`
	Obsolete   int64      `json:"obsolete"`
	Dirty      int64      `json:"dirty"`
	Scanned    int64      `json:"scannedCount"`
	LastScanAt *time.Time `json:"lastScanAt,omitempty"`
}

// OnFileUpserted indexes one created or updated file. Images become cover
// candidates; audio runs through the normalizer into the entity graph.
// Other mimes, playlist files included, are ignored.
func (s *Synchronizer) OnFileUpserted(ctx context.Context, userID int64, file *filestore.File) error {
	return s.upsertFile(ctx, userID, file, false)
}

func (s *Synchronizer) upsertFile(ctx context.Context, userID int64, file *filestore.File, bulk bool) error {
	if file == nil {
		return nil
	}
	if !filestore.InScope(file.Path, s.cfg.LibraryRoot) {
		logger.Debug("file outside library scope, ignoring",
			logger.Int64("userId", userID), logger.String("path", file.Path))
		return nil
	}

	switch {
	case filestore.IsImage(file.Mime):
		return s.upsertImage(ctx, userID, file)
	case filestore.IsAudio(file.Mime):
		return s.upsertAudio(ctx, userID, file, bulk)
	default:
		return nil
	}
}

// upsertAudio runs the normalizer and writes
// Artist → AlbumArtist → Album → Genre → Track, each step an idempotent
// find-or-create on the natural key.
func (s *Synchronizer) upsertAudio(ctx context.Context, userID int64, file *filestore.File, bulk bool) error {
	var raw *RawTags
	if s.cfg.MetadataEnabled {
		data, err := s.files.ReadAll(ctx, file.ID)
		if err != nil || len(data) == 0 {
			// Unreadable or zero-byte file: degrade to path fallbacks.
			logger.Debug("file unreadable, using path fallbacks",
				logger.String("fileId", file.ID), logger.ErrorField(err))
		} else if raw, err = ReadTags(data); err != nil {
			logger.Debug("tag analysis failed, using path fallbacks",
				logger.String("fileId", file.ID), logger.ErrorField(err))
			raw = nil
		}
	}

	meta := Normalize(raw, file.Name(), file.Path, s.cfg.LibraryRoot)

	prev, err := s.repos.Tracks.GetByFileID(userID, file.ID)
	if err != nil {
		return err
	}

	artist, err := s.repos.Artists.FindOrCreate(userID, meta.Artist)
	if err != nil {
		return err
	}
	albumArtist := artist
	if meta.AlbumArtist != meta.Artist {
		if albumArtist, err = s.repos.Artists.FindOrCreate(userID, meta.AlbumArtist); err != nil {
			return err
		}
	}
	album, err := s.repos.Albums.FindOrCreate(userID, meta.Album, albumArtist.ID)
	if err != nil {
		return err
	}

	var genreID *uint
	if meta.GenreFound {
		genre, err := s.repos.Genres.FindOrCreate(userID, meta.Genre)
		if err != nil {
			return err
		}
		genreID = &genre.ID
	} else if prev != nil {
		// Analysis skipped: keep whatever an earlier analysis found.
		genreID = prev.GenreID
	}

	track := &model.Track{
		UserID:   userID,
		FileID:   file.ID,
		Title:    meta.Title,
		Number:   meta.TrackNumber,
		Disc:     meta.DiscNumber,
		Year:     meta.Year,
		GenreID:  genreID,
		ArtistID: artist.ID,
		AlbumID:  album.ID,
		Mime:     file.Mime,
		Length:   prevLength(prev),
		Bitrate:  prevBitrate(prev),
		Dirty:    false,
	}
	if _, err := s.repos.Tracks.Upsert(track); err != nil {
		return err
	}

	if err := s.syncAlbumCover(ctx, userID, file, album, meta, bulk); err != nil {
		return err
	}

	// Retagging can strand the previous album and artist without tracks.
	if prev != nil && (prev.AlbumID != album.ID || prev.ArtistID != artist.ID) {
		if err := s.collectOrphans(userID, []uint{prev.AlbumID}, []uint{prev.ArtistID}); err != nil {
			return err
		}
	}

	if !bulk {
		if err := s.cache.Invalidate(userID, collectionKey); err != nil {
			return err
		}
	}
	return nil
}

// collectOrphans garbage-collects the given albums and artists if nothing
// references them anymore. Albums go first so an artist kept alive only by an
// emptied album is caught in the same pass.
func (s *Synchronizer) collectOrphans(userID int64, albumIDs, artistIDs []uint) error {
	if _, err := s.repos.Albums.DeleteOrphans(userID, albumIDs); err != nil {
		return err
	}
	_, err := s.repos.Artists.DeleteOrphans(userID, artistIDs)
	return err
}

func prevLength(prev *model.Track) int {
	if prev != nil {
		return prev.Length
	}
	return 0
}

func prevBitrate(prev *model.Track) int {
	if prev != nil {
		return prev.Bitrate
	}
	return 0
}

// syncAlbumCover keeps the album's cover source consistent with the file's
// embedded art. Bulk scans only fill empty covers so the chosen file does
// not flip-flop across the batch.
func (s *Synchronizer) syncAlbumCover(ctx context.Context, userID int64, file *filestore.File, album *model.Album, meta Metadata, bulk bool) error {
	hasArt := len(meta.Picture) > 0

	if hasArt && (album.CoverFileID == nil || !bulk) {
		if album.CoverFileID != nil && *album.CoverFileID == file.ID {
			return nil // unchanged
		}
		fileID := file.ID
		if err := s.repos.Albums.SetCoverFile(album.ID, &fileID); err != nil {
			return err
		}
		return s.cache.InvalidatePrefix(userID, albumCoverPrefix(album.ID))
	}

	if !hasArt && album.CoverFileID != nil && *album.CoverFileID == file.ID {
		// This file was the cover source but lost its art; look for a
		// replacement among the album's remaining tracks.
		if err := s.repos.Albums.SetCoverFile(album.ID, nil); err != nil {
			return err
		}
		if err := s.rediscoverAlbumCover(ctx, album.ID, file.ID); err != nil {
			return err
		}
		return s.cache.InvalidatePrefix(userID, albumCoverPrefix(album.ID))
	}
	return nil
}

// rediscoverAlbumCover searches the album's tracks (excluding one file) for
// embedded art and assigns the first candidate found.
func (s *Synchronizer) rediscoverAlbumCover(ctx context.Context, albumID uint, excludeFileID string) error {
	tracks, err := s.repos.Tracks.ByAlbum(albumID)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		if t.FileID == excludeFileID {
			continue
		}
		data, err := s.files.ReadAll(ctx, t.FileID)
		if err != nil || len(data) == 0 {
			continue
		}
		raw, err := ReadTags(data)
		if err != nil || raw == nil || len(raw.Picture) == 0 {
			continue
		}
		fileID := t.FileID
		return s.repos.Albums.SetCoverFile(albumID, &fileID)
	}
	return nil
}

// upsertImage assigns a new image file as cover art: to albums whose tracks
// share its folder and lack a cover, and to an artist whose name exactly
// matches the image's base name.
func (s *Synchronizer) upsertImage(ctx context.Context, userID int64, file *filestore.File) error {
	siblings, err := s.files.Siblings(ctx, file.ID)
	if err != nil {
		return err
	}

	var audioIDs []string
	for _, sib := range siblings {
		if filestore.IsAudio(sib.Mime) {
			audioIDs = append(audioIDs, sib.ID)
		}
	}

	coverChanged := false
	if len(audioIDs) > 0 {
		tracks, err := s.repos.Tracks.ByFileIDs(audioIDs, []int64{userID})
		if err != nil {
			return err
		}
		seen := map[uint]bool{}
		for _, t := range tracks {
			if seen[t.AlbumID] {
				continue
			}
			seen[t.AlbumID] = true
			album, err := s.repos.Albums.GetByID(t.AlbumID)
			if err != nil {
				return err
			}
			if album == nil || album.CoverFileID != nil {
				continue
			}
			fileID := file.ID
			if err := s.repos.Albums.SetCoverFile(album.ID, &fileID); err != nil {
				return err
			}
			if err := s.cache.InvalidatePrefix(userID, albumCoverPrefix(album.ID)); err != nil {
				return err
			}
			coverChanged = true
		}
	}

	baseName := strings.TrimSuffix(file.Name(), path.Ext(file.Name()))
	artist, err := s.repos.Artists.FindByName(userID, baseName)
	if err != nil {
		return err
	}
	if artist != nil {
		fileID := file.ID
		if err := s.repos.Artists.SetCoverFile(artist.ID, &fileID); err != nil {
			return err
		}
		if err := s.cache.InvalidatePrefix(userID, artistCoverPrefix(artist.ID)); err != nil {
			return err
		}
		coverChanged = true
	}

	// The snapshot records cover presence per artist and album; any
	// assignment stales it.
	if coverChanged {
		return s.cache.Invalidate(userID, collectionKey)
	}
	return nil
}

// OnFileMoved re-indexes a file at its new location; path-derived fallback
// fields may change while the natural key stays the same. A move out of the
// library scope is a deletion.
func (s *Synchronizer) OnFileMoved(ctx context.Context, userID int64, file *filestore.File) error {
	if file == nil {
		return nil
	}
	if !filestore.InScope(file.Path, s.cfg.LibraryRoot) {
		return s.Delete(ctx, []string{file.ID}, []int64{userID})
	}
	return s.upsertFile(ctx, userID, file, false)
}

// OnFolderMoved handles a moved folder. Small folders reprocess their audio
// files inline; large ones only mark the contained tracks dirty so the
// triggering operation stays fast, leaving correction to a later rescan.
func (s *Synchronizer) OnFolderMoved(ctx context.Context, userID int64, folderPath string) error {
	audio, err := s.files.SearchByMime(ctx, "audio/", folderPath)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return nil
	}

	if len(audio) < s.cfg.FolderMoveDirtyMin {
		for _, f := range audio {
			if err := s.OnFileMoved(ctx, userID, f); err != nil {
				return err
			}
		}
		return nil
	}

	fileIDs := make([]string, 0, len(audio))
	for _, f := range audio {
		fileIDs = append(fileIDs, f.ID)
	}
	marked, err := s.repos.Tracks.MarkDirty(userID, fileIDs)
	if err != nil {
		return err
	}
	logger.Info("large folder move, deferred re-analysis",
		logger.Int64("userId", userID), logger.String("folder", folderPath),
		logger.Int64("marked", marked))
	return nil
}

// Delete removes tracks for the given files, garbage-collects emptied
// albums and artists, prunes playlist references, repairs cover sources,
// and invalidates the affected cache entries.
func (s *Synchronizer) Delete(ctx context.Context, fileIDs []string, userIDs []int64) error {
	tracks, err := s.repos.Tracks.DeleteByFileIDs(fileIDs, userIDs)
	if err != nil {
		return err
	}

	// Surviving albums whose cover source was deleted get repaired before
	// invalidation so the next cover request sees the replacement. A deleted
	// file can be a pure cover image, so this runs even with no tracks gone.
	orphanedCovers, err := s.repos.Albums.ByCoverFileIDs(fileIDs, userIDs)
	if err != nil {
		return err
	}
	if len(tracks) == 0 && len(orphanedCovers) == 0 {
		return nil
	}

	trackIDs := make([]uint, 0, len(tracks))
	perUserAlbums := map[int64]map[uint]bool{}
	perUserArtists := map[int64]map[uint]bool{}
	for _, t := range tracks {
		trackIDs = append(trackIDs, t.ID)
		if perUserAlbums[t.UserID] == nil {
			perUserAlbums[t.UserID] = map[uint]bool{}
			perUserArtists[t.UserID] = map[uint]bool{}
		}
		perUserAlbums[t.UserID][t.AlbumID] = true
		perUserArtists[t.UserID][t.ArtistID] = true
	}
	for _, a := range orphanedCovers {
		if perUserAlbums[a.UserID] == nil {
			perUserAlbums[a.UserID] = map[uint]bool{}
			perUserArtists[a.UserID] = map[uint]bool{}
		}
	}

	if len(trackIDs) > 0 {
		if err := s.repos.Playlists.RemoveTracks(trackIDs); err != nil {
			return err
		}
	}

	for userID, albumSet := range perUserAlbums {
		affected := 0

		albumIDs := keysOf(albumSet)
		albums, err := s.repos.Albums.ByIDs(albumIDs)
		if err != nil {
			return err
		}
		artistSet := perUserArtists[userID]
		for _, a := range albums {
			artistSet[a.ArtistID] = true
		}

		deletedAlbums, err := s.repos.Albums.DeleteOrphans(userID, albumIDs)
		if err != nil {
			return err
		}
		deletedArtists, err := s.repos.Artists.DeleteOrphans(userID, keysOf(artistSet))
		if err != nil {
			return err
		}
		affected += len(albumIDs) + len(deletedArtists)

		var coverAlbums []uint
		for _, a := range orphanedCovers {
			if a.UserID != userID || containsID(deletedAlbums, a.ID) {
				continue
			}
			if err := s.repos.Albums.SetCoverFile(a.ID, nil); err != nil {
				return err
			}
			if err := s.rediscoverAlbumCover(ctx, a.ID, ""); err != nil {
				return err
			}
			coverAlbums = append(coverAlbums, a.ID)
		}
		affected += len(coverAlbums)

		// Above the threshold, one whole-namespace wipe bounds the cost of
		// a mass delete; below it, invalidate precisely what changed.
		if affected >= s.cfg.BulkInvalidateMin {
			if err := s.cache.InvalidateAll(userID); err != nil {
				return err
			}
			continue
		}
		for _, albumID := range albumIDs {
			if err := s.cache.InvalidatePrefix(userID, albumCoverPrefix(albumID)); err != nil {
				return err
			}
		}
		for _, albumID := range coverAlbums {
			if err := s.cache.InvalidatePrefix(userID, albumCoverPrefix(albumID)); err != nil {
				return err
			}
		}
		for _, artistID := range deletedArtists {
			if err := s.cache.InvalidatePrefix(userID, artistCoverPrefix(artistID)); err != nil {
				return err
			}
		}
		if err := s.cache.Invalidate(userID, collectionKey); err != nil {
			return err
		}
	}
	return nil
}

// ScanFiles is the bulk form of OnFileUpserted. It refreshes an advisory
// liveness marker per processed file so maintenance jobs can tell a scan is
// running, and invalidates the snapshot once at the end instead of per file.
func (s *Synchronizer) ScanFiles(ctx context.Context, userID int64, fileIDs []string) (*ScanResult, error) {
	start := time.Now()
	session := uuid.NewString()
	count := 0

	for _, fileID := range fileIDs {
		s.touchScanAlive(userID, session)

		file, err := s.files.GetByID(ctx, fileID)
		if err != nil {
			logger.Warn("failed to look up file, skipping",
				logger.String("fileId", fileID), logger.ErrorField(err))
			continue
		}
		if file == nil {
			// Gone between enumeration and processing: implicit delete.
			if err := s.Delete(ctx, []string{fileID}, []int64{userID}); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.upsertFile(ctx, userID, file, true); err != nil {
			logger.Warn("failed to index file, skipping",
				logger.String("fileId", fileID), logger.ErrorField(err))
			continue
		}
		count++
	}

	if err := s.repos.Cache.Delete(userID, scanAliveKey); err != nil {
		logger.Warn("failed to clear scan liveness marker", logger.ErrorField(err))
	}
	if err := s.repos.Cache.Set(userID, scanLastKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("failed to record scan completion time", logger.ErrorField(err))
	}
	if err := s.cache.Invalidate(userID, collectionKey); err != nil {
		return nil, err
	}

	result := &ScanResult{Count: count, Duration: time.Since(start)}
	logger.Info("scan finished", logger.Int64("userId", userID),
		logger.Int("requested", len(fileIDs)), logger.Int("indexed", count),
		logger.Duration("took", result.Duration))
	return result, nil
}

// touchScanAlive refreshes the advisory "scan in progress" marker. It is a
// timestamp, not a lock; failures only cost maintenance-job politeness.
func (s *Synchronizer) touchScanAlive(userID int64, session string) {
	value := fmt.Sprintf("%s:%d", session, time.Now().Unix())
	if err := s.repos.Cache.Set(userID, scanAliveKey, value); err != nil {
		logger.Debug("failed to touch scan liveness marker", logger.ErrorField(err))
	}
}

// Reconcile diffs the indexed file ids against the file store and deletes
// whatever was scanned but is no longer available in scope.
func (s *Synchronizer) Reconcile(ctx context.Context, userID int64) error {
	scanned, err := s.repos.Tracks.FileIDsByUser(userID)
	if err != nil {
		return err
	}
	available, err := s.files.SearchByMime(ctx, "audio/", s.cfg.LibraryRoot)
	if err != nil {
		return err
	}

	availableSet := make(map[string]bool, len(available))
	for _, f := range available {
		availableSet[f.ID] = true
	}

	var stale []string
	for _, fileID := range scanned {
		if !availableSet[fileID] {
			stale = append(stale, fileID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	logger.Info("reconcile removing unavailable tracks",
		logger.Int64("userId", userID), logger.Int("count", len(stale)))
	return s.Delete(ctx, stale, []int64{userID})
}

// Status reports the user's library state against the file store.
func (s *Synchronizer) Status(ctx context.Context, userID int64) (*ScanStatus, error) {
	total, dirty, err := s.repos.Tracks.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	scanned, err := s.repos.Tracks.FileIDsByUser(userID)
	if err != nil {
		return nil, err
	}
	available, err := s.files.SearchByMime(ctx, "audio/", s.cfg.LibraryRoot)
	if err != nil {
		return nil, err
	}

	scannedSet := make(map[string]bool, len(scanned))
	for _, fileID := range scanned {
		scannedSet[fileID] = true
	}
	availableSet := make(map[string]bool, len(available))
	var unscanned int64
	for _, f := range available {
		availableSet[f.ID] = true
		if !scannedSet[f.ID] {
			unscanned++
		}
	}
	var obsolete int64
	for _, fileID := range scanned {
		if !availableSet[fileID] {
			obsolete++
		}
	}

	status := &ScanStatus{
		Unscanned: unscanned,
		Obsolete:  obsolete,
		Dirty:     dirty,
		Scanned:   total,
	}
	if value, found, err := s.repos.Cache.Get(userID, scanLastKey); err == nil && found {
		if at, err := time.Parse(time.RFC3339, value); err == nil {
			status.LastScanAt = &at
		}
	}
	return status, nil
}

// Invalidate drops the whole cache namespace of one user.
func (s *Synchronizer) Invalidate(userID int64) error {
	return s.cache.InvalidateAll(userID)
}

func keysOf(set map[uint]bool) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
