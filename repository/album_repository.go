package repository

import (
	"errors"
	"fmt"

	"melodex/logger"
	"melodex/model"

	"gorm.io/gorm"
)

// AlbumRepository defines the interface for album data operations.
type AlbumRepository interface {
	FindOrCreate(userID int64, name string, artistID uint) (*model.Album, error)
	GetByID(id uint) (*model.Album, error)
	SetCoverFile(id uint, fileID *string) error
	AllByUser(userID int64) ([]*model.Album, error)
	ByIDs(ids []uint) ([]*model.Album, error)
	ByCoverFileIDs(fileIDs []string, userIDs []int64) ([]*model.Album, error)
	DeleteOrphans(userID int64, candidateIDs []uint) ([]uint, error)
}

type mysqlAlbumRepository struct {
	db *gorm.DB
}

// NewMySQLAlbumRepository creates a new instance of mysqlAlbumRepository.
func NewMySQLAlbumRepository(db *gorm.DB) AlbumRepository {
	return &mysqlAlbumRepository{db: db}
}

// FindOrCreate returns the album with the given natural key
// (name, album artist, user), creating it if missing.
func (r *mysqlAlbumRepository) FindOrCreate(userID int64, name string, artistID uint) (*model.Album, error) {
	find := func() (*model.Album, error) {
		var album model.Album
		err := r.db.Where("user_id = ? AND name = ? AND artist_id = ?", userID, name, artistID).
			First(&album).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to find album %q: %w", name, err)
		}
		return &album, nil
	}

	album, err := find()
	if err != nil || album != nil {
		return album, err
	}

	album = &model.Album{UserID: userID, Name: name, ArtistID: artistID}
	if err := r.db.Create(album).Error; err != nil {
		if isDuplicateEntry(err) {
			logger.Debug("album already created concurrently",
				logger.Int64("userId", userID), logger.String("name", name))
			return find()
		}
		return nil, fmt.Errorf("failed to create album %q: %w", name, err)
	}
	return album, nil
}

// GetByID retrieves an album by its surrogate id, or nil when absent.
func (r *mysqlAlbumRepository) GetByID(id uint) (*model.Album, error) {
	var album model.Album
	if err := r.db.First(&album, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get album %d: %w", id, err)
	}
	return &album, nil
}

// SetCoverFile updates the cover source file; nil clears it.
func (r *mysqlAlbumRepository) SetCoverFile(id uint, fileID *string) error {
	err := r.db.Model(&model.Album{}).Where("id = ?", id).Update("cover_file_id", fileID).Error
	if err != nil {
		return fmt.Errorf("failed to set cover for album %d: %w", id, err)
	}
	return nil
}

// AllByUser returns every album of a user ordered by name.
func (r *mysqlAlbumRepository) AllByUser(userID int64) ([]*model.Album, error) {
	var albums []*model.Album
	if err := r.db.Where("user_id = ?", userID).Order("name").Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("failed to list albums for user %d: %w", userID, err)
	}
	return albums, nil
}

// ByIDs returns the albums with the given ids.
func (r *mysqlAlbumRepository) ByIDs(ids []uint) ([]*model.Album, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var albums []*model.Album
	if err := r.db.Where("id IN ?", ids).Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("failed to list albums by ids: %w", err)
	}
	return albums, nil
}

// ByCoverFileIDs returns albums whose cover source is one of the given files,
// optionally restricted to a set of users.
func (r *mysqlAlbumRepository) ByCoverFileIDs(fileIDs []string, userIDs []int64) ([]*model.Album, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	q := r.db.Where("cover_file_id IN ?", fileIDs)
	if len(userIDs) > 0 {
		q = q.Where("user_id IN ?", userIDs)
	}
	var albums []*model.Album
	if err := q.Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("failed to list albums by cover file: %w", err)
	}
	return albums, nil
}

// DeleteOrphans removes those of the candidate albums that have no tracks
// left, and returns the ids actually deleted.
func (r *mysqlAlbumRepository) DeleteOrphans(userID int64, candidateIDs []uint) ([]uint, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	var orphans []uint
	err := r.db.Model(&model.Album{}).
		Where("user_id = ? AND id IN ?", userID, candidateIDs).
		Where("NOT EXISTS (SELECT 1 FROM tracks WHERE tracks.album_id = albums.id)").
		Pluck("id", &orphans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find orphan albums: %w", err)
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	if err := r.db.Delete(&model.Album{}, orphans).Error; err != nil {
		return nil, fmt.Errorf("failed to delete orphan albums: %w", err)
	}
	return orphans, nil
}
