package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateEntry reports whether err is a unique-constraint violation.
// Concurrent natural-key inserts race benignly; callers treat this as
// "already present" and re-fetch instead of failing.
func isDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

// Repositories bundles every repository over one database handle.
type Repositories struct {
	Artists   ArtistRepository
	Albums    AlbumRepository
	Genres    GenreRepository
	Tracks    TrackRepository
	Playlists PlaylistRepository
	Cache     CacheRepository
}

// NewMySQLRepositories wires all MySQL repository implementations.
func NewMySQLRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Artists:   NewMySQLArtistRepository(db),
		Albums:    NewMySQLAlbumRepository(db),
		Genres:    NewMySQLGenreRepository(db),
		Tracks:    NewMySQLTrackRepository(db),
		Playlists: NewMySQLPlaylistRepository(db),
		Cache:     NewMySQLCacheRepository(db),
	}
}
