package repository

import (
	"errors"
	"fmt"

	"melodex/logger"
	"melodex/model"

	"gorm.io/gorm"
)

// GenreRepository defines the interface for genre data operations.
type GenreRepository interface {
	FindOrCreate(userID int64, name string) (*model.Genre, error)
	AllByUser(userID int64) ([]*model.Genre, error)
}

type mysqlGenreRepository struct {
	db *gorm.DB
}

// NewMySQLGenreRepository creates a new instance of mysqlGenreRepository.
func NewMySQLGenreRepository(db *gorm.DB) GenreRepository {
	return &mysqlGenreRepository{db: db}
}

// FindOrCreate returns the genre with the given natural key, creating it if
// missing. The empty name is valid and means "analyzed, no genre tag found".
func (r *mysqlGenreRepository) FindOrCreate(userID int64, name string) (*model.Genre, error) {
	find := func() (*model.Genre, error) {
		var genre model.Genre
		err := r.db.Where("user_id = ? AND name = ?", userID, name).First(&genre).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to find genre %q: %w", name, err)
		}
		return &genre, nil
	}

	genre, err := find()
	if err != nil || genre != nil {
		return genre, err
	}

	genre = &model.Genre{UserID: userID, Name: name}
	if err := r.db.Create(genre).Error; err != nil {
		if isDuplicateEntry(err) {
			logger.Debug("genre already created concurrently",
				logger.Int64("userId", userID), logger.String("name", name))
			return find()
		}
		return nil, fmt.Errorf("failed to create genre %q: %w", name, err)
	}
	return genre, nil
}

// AllByUser returns every genre of a user ordered by name.
func (r *mysqlGenreRepository) AllByUser(userID int64) ([]*model.Genre, error) {
	var genres []*model.Genre
	if err := r.db.Where("user_id = ?", userID).Order("name").Find(&genres).Error; err != nil {
		return nil, fmt.Errorf("failed to list genres for user %d: %w", userID, err)
	}
	return genres, nil
}
