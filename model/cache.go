package model

import "time"

// CacheEntry is one row of the durable cache ledger: (user_id, key) mapping
// to the content hash of the blob currently considered valid for that key.
// The blob bytes themselves live in the ephemeral Redis tier keyed by hash;
// a ledger row whose blob is gone is stale and gets purged on read.
type CacheEntry struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	Key       string `gorm:"primaryKey;size:255" json:"key"`
	Value     string `gorm:"size:512;not null" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
