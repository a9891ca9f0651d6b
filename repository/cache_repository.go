package repository

import (
	"errors"
	"fmt"
	"strings"

	"melodex/logger"
	"melodex/model"

	"gorm.io/gorm"
)

// CacheRepository is the durable cache ledger: small (user, key) → value rows
// proving which cached artifact is currently valid. Values are content hashes
// or small flags, never payloads.
type CacheRepository interface {
	Get(userID int64, key string) (string, bool, error)
	Set(userID int64, key, value string) error
	Delete(userID int64, key string) error
	DeleteByPrefix(userID int64, prefix string) error
	DeleteAll(userID int64) error
}

type mysqlCacheRepository struct {
	db *gorm.DB
}

// NewMySQLCacheRepository creates a new instance of mysqlCacheRepository.
func NewMySQLCacheRepository(db *gorm.DB) CacheRepository {
	return &mysqlCacheRepository{db: db}
}

// Get returns the ledger value for (userID, key), with found=false on miss.
func (r *mysqlCacheRepository) Get(userID int64, key string) (string, bool, error) {
	var entry model.CacheEntry
	err := r.db.Where("user_id = ? AND `key` = ?", userID, key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cache ledger %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set writes a ledger entry. A concurrent identical write is swallowed:
// two producers caching the same artifact at once both succeed.
func (r *mysqlCacheRepository) Set(userID int64, key, value string) error {
	entry := &model.CacheEntry{UserID: userID, Key: key, Value: value}
	err := r.db.Create(entry).Error
	if err == nil {
		return nil
	}
	if !isDuplicateEntry(err) {
		return fmt.Errorf("failed to write cache ledger %q: %w", key, err)
	}

	current, found, getErr := r.Get(userID, key)
	if getErr != nil {
		return getErr
	}
	if found && current == value {
		logger.Debug("cache ledger entry already written concurrently",
			logger.Int64("userId", userID), logger.String("key", key))
		return nil
	}

	err = r.db.Model(&model.CacheEntry{}).
		Where("user_id = ? AND `key` = ?", userID, key).
		Update("value", value).Error
	if err != nil {
		return fmt.Errorf("failed to update cache ledger %q: %w", key, err)
	}
	return nil
}

// Delete removes one ledger entry. Deleting an absent entry is a no-op.
func (r *mysqlCacheRepository) Delete(userID int64, key string) error {
	err := r.db.Where("user_id = ? AND `key` = ?", userID, key).Delete(&model.CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete cache ledger %q: %w", key, err)
	}
	return nil
}

// DeleteByPrefix removes every ledger entry of a user whose key starts with
// the given prefix; used for covers cached in several size variants.
func (r *mysqlCacheRepository) DeleteByPrefix(userID int64, prefix string) error {
	err := r.db.Where("user_id = ? AND `key` LIKE ?", userID, escapeLike(prefix)+"%").
		Delete(&model.CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete cache ledger prefix %q: %w", prefix, err)
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// DeleteAll removes every ledger entry of a user.
func (r *mysqlCacheRepository) DeleteAll(userID int64) error {
	err := r.db.Where("user_id = ?", userID).Delete(&model.CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear cache ledger for user %d: %w", userID, err)
	}
	return nil
}
