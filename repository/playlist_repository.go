package repository

import (
	"fmt"

	"melodex/model"

	"gorm.io/gorm"
)

// PlaylistRepository prunes playlist references when tracks disappear.
// Playlist import/export lives elsewhere; the synchronizer only needs this.
type PlaylistRepository interface {
	RemoveTracks(trackIDs []uint) error
}

type mysqlPlaylistRepository struct {
	db *gorm.DB
}

// NewMySQLPlaylistRepository creates a new instance of mysqlPlaylistRepository.
func NewMySQLPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &mysqlPlaylistRepository{db: db}
}

// RemoveTracks deletes every playlist entry referencing the given tracks.
func (r *mysqlPlaylistRepository) RemoveTracks(trackIDs []uint) error {
	if len(trackIDs) == 0 {
		return nil
	}
	err := r.db.Where("track_id IN ?", trackIDs).Delete(&model.PlaylistEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove playlist entries: %w", err)
	}
	return nil
}
