package repository

import (
	"errors"
	"fmt"

	"melodex/logger"
	"melodex/model"

	"gorm.io/gorm"
)

// ArtistRepository defines the interface for artist data operations.
type ArtistRepository interface {
	FindOrCreate(userID int64, name string) (*model.Artist, error)
	GetByID(id uint) (*model.Artist, error)
	FindByName(userID int64, name string) (*model.Artist, error)
	SetCoverFile(id uint, fileID *string) error
	AllByUser(userID int64) ([]*model.Artist, error)
	DeleteOrphans(userID int64, candidateIDs []uint) ([]uint, error)
}

type mysqlArtistRepository struct {
	db *gorm.DB
}

// NewMySQLArtistRepository creates a new instance of mysqlArtistRepository.
func NewMySQLArtistRepository(db *gorm.DB) ArtistRepository {
	return &mysqlArtistRepository{db: db}
}

// FindOrCreate returns the artist with the given natural key, creating it if
// missing. Name matching is exact byte match; "Foo" and "foo " are distinct
// artists on purpose.
func (r *mysqlArtistRepository) FindOrCreate(userID int64, name string) (*model.Artist, error) {
	artist, err := r.FindByName(userID, name)
	if err != nil {
		return nil, err
	}
	if artist != nil {
		return artist, nil
	}

	artist = &model.Artist{UserID: userID, Name: name}
	if err := r.db.Create(artist).Error; err != nil {
		if isDuplicateEntry(err) {
			// Lost the insert race; the row exists now.
			logger.Debug("artist already created concurrently",
				logger.Int64("userId", userID), logger.String("name", name))
			return r.FindByName(userID, name)
		}
		return nil, fmt.Errorf("failed to create artist %q: %w", name, err)
	}
	return artist, nil
}

// GetByID retrieves an artist by its surrogate id.
func (r *mysqlArtistRepository) GetByID(id uint) (*model.Artist, error) {
	var artist model.Artist
	if err := r.db.First(&artist, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artist %d: %w", id, err)
	}
	return &artist, nil
}

// FindByName retrieves an artist by its natural key, or nil when absent.
func (r *mysqlArtistRepository) FindByName(userID int64, name string) (*model.Artist, error) {
	var artist model.Artist
	err := r.db.Where("user_id = ? AND name = ?", userID, name).First(&artist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find artist %q for user %d: %w", name, userID, err)
	}
	return &artist, nil
}

// SetCoverFile updates the cover source file; nil clears it.
func (r *mysqlArtistRepository) SetCoverFile(id uint, fileID *string) error {
	err := r.db.Model(&model.Artist{}).Where("id = ?", id).Update("cover_file_id", fileID).Error
	if err != nil {
		return fmt.Errorf("failed to set cover for artist %d: %w", id, err)
	}
	return nil
}

// AllByUser returns every artist of a user ordered by name.
func (r *mysqlArtistRepository) AllByUser(userID int64) ([]*model.Artist, error) {
	var artists []*model.Artist
	if err := r.db.Where("user_id = ?", userID).Order("name").Find(&artists).Error; err != nil {
		return nil, fmt.Errorf("failed to list artists for user %d: %w", userID, err)
	}
	return artists, nil
}

// DeleteOrphans removes those of the candidate artists that no track and no
// album references anymore, and returns the ids actually deleted.
func (r *mysqlArtistRepository) DeleteOrphans(userID int64, candidateIDs []uint) ([]uint, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	var orphans []uint
	err := r.db.Model(&model.Artist{}).
		Where("user_id = ? AND id IN ?", userID, candidateIDs).
		Where("NOT EXISTS (SELECT 1 FROM tracks WHERE tracks.artist_id = artists.id)").
		Where("NOT EXISTS (SELECT 1 FROM albums WHERE albums.artist_id = artists.id)").
		Pluck("id", &orphans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find orphan artists: %w", err)
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	if err := r.db.Delete(&model.Artist{}, orphans).Error; err != nil {
		return nil, fmt.Errorf("failed to delete orphan artists: %w", err)
	}
	return orphans, nil
}
