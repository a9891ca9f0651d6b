package filestore

import (
	"mime"
	"path"
	"strings"
)

// Playlist-like mimes are neither indexed as audio nor considered as covers.
var playlistMimes = map[string]bool{
	"audio/mpegurl":           true,
	"audio/x-mpegurl":         true,
	"audio/x-scpls":           true,
	"application/x-mpegurl":   true,
	"application/vnd.apple.mpegurl": true,
}

// Fallbacks for extensions the platform mime table may not know.
var extraMimes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".wma":  "audio/x-ms-wma",
	".ape":  "audio/x-ape",
	".wv":   "audio/x-wavpack",
}

// MimeByPath resolves a mime type from a file path's extension.
func MimeByPath(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if m, ok := extraMimes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		// Strip parameters such as "; charset=utf-8".
		if i := strings.Index(m, ";"); i >= 0 {
			m = strings.TrimSpace(m[:i])
		}
		return m
	}
	return "application/octet-stream"
}

// IsAudio reports whether the mime names an indexable audio file.
func IsAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/") && !playlistMimes[mimeType]
}

// IsImage reports whether the mime names a cover candidate.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// IsPlaylist reports whether the mime names a playlist file.
func IsPlaylist(mimeType string) bool {
	return playlistMimes[mimeType]
}
