package model

import "time"

// Artist is one performer in a user's library. The natural key for upserts
// is (name, user_id); name matching is exact byte match, no normalization.
type Artist struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UserID      int64   `gorm:"uniqueIndex:idx_artist_natural;not null" json:"userId"`
	Name        string  `gorm:"uniqueIndex:idx_artist_natural;size:255;not null" json:"name"`
	CoverFileID *string `gorm:"size:512" json:"coverFileId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Album groups tracks under an album artist. Natural key is
// (name, artist_id, user_id). CoverFileID points either at an image file
// next to the tracks or at an audio file with embedded art.
type Album struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UserID      int64   `gorm:"uniqueIndex:idx_album_natural;not null" json:"userId"`
	Name        string  `gorm:"uniqueIndex:idx_album_natural;size:255;not null" json:"name"`
	ArtistID    uint    `gorm:"uniqueIndex:idx_album_natural;not null" json:"artistId"`
	CoverFileID *string `gorm:"size:512" json:"coverFileId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Genre is a per-user genre row. The empty name is a valid genre meaning
// "analyzed, nothing tagged"; a track with a NULL genre reference was never
// analyzed at all.
type Genre struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    int64  `gorm:"uniqueIndex:idx_genre_natural;not null" json:"userId"`
	Name      string `gorm:"uniqueIndex:idx_genre_natural;size:255" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Track is one indexed audio file. Natural key is (file_id, user_id); the
// same physical file indexes independently per user via sharing.
type Track struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    int64  `gorm:"uniqueIndex:idx_track_natural;not null" json:"userId"`
	FileID    string `gorm:"uniqueIndex:idx_track_natural;size:512;not null" json:"fileId"`
	Title     string `gorm:"size:512" json:"title"`
	Number    int    `json:"number"`
	Disc      int    `json:"disc"`
	Year      int    `json:"year"`
	GenreID   *uint  `gorm:"index" json:"genreId,omitempty"`
	ArtistID  uint   `gorm:"index;not null" json:"artistId"`
	AlbumID   uint   `gorm:"index;not null" json:"albumId"`
	Mime      string `gorm:"size:128" json:"mime"`
	Length    int    `json:"length"`  // seconds
	Bitrate   int    `json:"bitrate"` // bits per second
	Dirty     bool   `gorm:"index" json:"dirty"` // needs re-analysis after a deferred folder move
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlaylistEntry references a track from a playlist. Playlist file parsing is
// out of scope here; the synchronizer only prunes entries when tracks go away.
type PlaylistEntry struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	PlaylistID uint `gorm:"index;not null" json:"playlistId"`
	TrackID    uint `gorm:"index;not null" json:"trackId"`
	Position   int  `json:"position"`
}
