package scanner

import "fmt"

// Ledger keys used by the producers. Covers carry a size suffix (0 means
// original size), so per-entity invalidation works on the key prefix.
const (
	collectionKey = "collection"
	scanAliveKey  = "scan:alive"
	scanLastKey   = "scan:last"
)

func albumCoverKey(albumID uint, size int) string {
	return fmt.Sprintf("cover:album:%d:%d", albumID, size)
}

func albumCoverPrefix(albumID uint) string {
	return fmt.Sprintf("cover:album:%d:", albumID)
}

func artistCoverKey(artistID uint, size int) string {
	return fmt.Sprintf("cover:artist:%d:%d", artistID, size)
}

func artistCoverPrefix(artistID uint) string {
	return fmt.Sprintf("cover:artist:%d:", artistID)
}
