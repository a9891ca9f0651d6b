package repository

import (
	"errors"
	"fmt"

	"melodex/logger"
	"melodex/model"

	"gorm.io/gorm"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	Upsert(track *model.Track) (*model.Track, error)
	GetByFileID(userID int64, fileID string) (*model.Track, error)
	ByFileIDs(fileIDs []string, userIDs []int64) ([]*model.Track, error)
	ByAlbum(albumID uint) ([]*model.Track, error)
	AllByUser(userID int64) ([]*model.Track, error)
	FileIDsByUser(userID int64) ([]string, error)
	MarkDirty(userID int64, fileIDs []string) (int64, error)
	DirtyFileIDs(userID int64) ([]string, error)
	CountByUser(userID int64) (total int64, dirty int64, err error)
	DeleteByFileIDs(fileIDs []string, userIDs []int64) ([]*model.Track, error)
}

type mysqlTrackRepository struct {
	db *gorm.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *gorm.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

// Upsert writes a track by its natural key (file_id, user_id). An existing
// row is updated in place and keeps its surrogate id, which makes repeated
// and concurrent indexing of the same file idempotent.
func (r *mysqlTrackRepository) Upsert(track *model.Track) (*model.Track, error) {
	existing, err := r.GetByFileID(track.UserID, track.FileID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		track.ID = existing.ID
		track.CreatedAt = existing.CreatedAt
		if err := r.db.Model(existing).Select(
			"title", "number", "disc", "year", "genre_id", "artist_id",
			"album_id", "mime", "length", "bitrate", "dirty",
		).Updates(track).Error; err != nil {
			return nil, fmt.Errorf("failed to update track %s: %w", track.FileID, err)
		}
		return track, nil
	}

	if err := r.db.Create(track).Error; err != nil {
		if isDuplicateEntry(err) {
			// A concurrent scan inserted the same file first; redo as update.
			logger.Debug("track already created concurrently",
				logger.Int64("userId", track.UserID), logger.String("fileId", track.FileID))
			return r.Upsert(track)
		}
		return nil, fmt.Errorf("failed to create track %s: %w", track.FileID, err)
	}
	return track, nil
}

// GetByFileID retrieves a track by its natural key, or nil when absent.
func (r *mysqlTrackRepository) GetByFileID(userID int64, fileID string) (*model.Track, error) {
	var track model.Track
	err := r.db.Where("user_id = ? AND file_id = ?", userID, fileID).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get track %s for user %d: %w", fileID, userID, err)
	}
	return &track, nil
}

// ByFileIDs returns tracks for the given files, optionally restricted to a
// set of users (sharing indexes the same file once per user).
func (r *mysqlTrackRepository) ByFileIDs(fileIDs []string, userIDs []int64) ([]*model.Track, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	q := r.db.Where("file_id IN ?", fileIDs)
	if len(userIDs) > 0 {
		q = q.Where("user_id IN ?", userIDs)
	}
	var tracks []*model.Track
	if err := q.Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks by file ids: %w", err)
	}
	return tracks, nil
}

// ByAlbum returns the tracks of one album ordered by disc and track number.
func (r *mysqlTrackRepository) ByAlbum(albumID uint) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.Where("album_id = ?", albumID).Order("disc, number").Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks of album %d: %w", albumID, err)
	}
	return tracks, nil
}

// AllByUser returns every track of a user.
func (r *mysqlTrackRepository) AllByUser(userID int64) ([]*model.Track, error) {
	var tracks []*model.Track
	if err := r.db.Where("user_id = ?", userID).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks for user %d: %w", userID, err)
	}
	return tracks, nil
}

// FileIDsByUser returns the file ids of every indexed track of a user.
func (r *mysqlTrackRepository) FileIDsByUser(userID int64) ([]string, error) {
	var fileIDs []string
	err := r.db.Model(&model.Track{}).Where("user_id = ?", userID).Pluck("file_id", &fileIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list file ids for user %d: %w", userID, err)
	}
	return fileIDs, nil
}

// MarkDirty flags the given files as needing re-analysis and returns the
// number of affected tracks.
func (r *mysqlTrackRepository) MarkDirty(userID int64, fileIDs []string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}
	res := r.db.Model(&model.Track{}).
		Where("user_id = ? AND file_id IN ?", userID, fileIDs).
		Update("dirty", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark tracks dirty: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DirtyFileIDs returns the file ids of tracks flagged for re-analysis.
func (r *mysqlTrackRepository) DirtyFileIDs(userID int64) ([]string, error) {
	var fileIDs []string
	err := r.db.Model(&model.Track{}).
		Where("user_id = ? AND dirty = ?", userID, true).
		Pluck("file_id", &fileIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty file ids for user %d: %w", userID, err)
	}
	return fileIDs, nil
}

// CountByUser returns total and dirty track counts for a user.
func (r *mysqlTrackRepository) CountByUser(userID int64) (int64, int64, error) {
	var total, dirty int64
	if err := r.db.Model(&model.Track{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count tracks for user %d: %w", userID, err)
	}
	err := r.db.Model(&model.Track{}).
		Where("user_id = ? AND dirty = ?", userID, true).
		Count(&dirty).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count dirty tracks for user %d: %w", userID, err)
	}
	return total, dirty, nil
}

// DeleteByFileIDs removes tracks for the given files, optionally restricted
// to a set of users, and returns the rows that were deleted so the caller
// can garbage-collect emptied albums and artists.
func (r *mysqlTrackRepository) DeleteByFileIDs(fileIDs []string, userIDs []int64) ([]*model.Track, error) {
	tracks, err := r.ByFileIDs(fileIDs, userIDs)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	if err := r.db.Delete(&model.Track{}, ids).Error; err != nil {
		return nil, fmt.Errorf("failed to delete tracks: %w", err)
	}
	return tracks, nil
}
