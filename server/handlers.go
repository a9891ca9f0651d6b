package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"melodex/config"
	"melodex/filestore"
	"melodex/logger"
	"melodex/scanner"

	"github.com/gorilla/mux"
)

// APIHandler exposes the engine's narrow consumer interface over HTTP.
// Authentication lives in front of this service; the user id arrives in the
// X-User-ID header.
type APIHandler struct {
	sync      *scanner.Synchronizer
	snapshots *scanner.SnapshotProducer
	covers    *scanner.CoverProducer
	files     filestore.FileStore
	cfg       *config.Config
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(sync *scanner.Synchronizer, snapshots *scanner.SnapshotProducer, covers *scanner.CoverProducer, files filestore.FileStore, cfg *config.Config) *APIHandler {
	return &APIHandler{sync: sync, snapshots: snapshots, covers: covers, files: files, cfg: cfg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func userIDFrom(r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return userID, err == nil
}

// Health responds to liveness probes.
func (h *APIHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scanRequest struct {
	FileIDs []string `json:"fileIds"`
}

// TriggerScan runs a bulk scan over the given file ids, or over every audio
// file in the user's library scope when none are given.
func (h *APIHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-User-ID header")
		return
	}

	var req scanRequest
	if r.Body != nil {
		// An empty body means "scan everything".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	fileIDs := req.FileIDs
	if len(fileIDs) == 0 {
		audio, err := h.files.SearchByMime(r.Context(), "audio/", h.cfg.LibraryRoot)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, f := range audio {
			fileIDs = append(fileIDs, f.ID)
		}
	}

	result, err := h.sync.ScanFiles(r.Context(), userID, fileIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  result.Count,
		"timing": result.Duration.String(),
	})
}

// ScanStatus reports unscanned/obsolete/dirty/scanned counts.
func (h *APIHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-User-ID header")
		return
	}
	status, err := h.sync.Status(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Reconcile deletes tracks whose files are no longer available in scope.
func (h *APIHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-User-ID header")
		return
	}
	if err := h.sync.Reconcile(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Invalidate drops the user's whole cache namespace.
func (h *APIHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-User-ID header")
		return
	}
	if err := h.sync.Invalidate(userID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Snapshot serves the whole-collection document, regenerated lazily.
func (h *APIHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-User-ID header")
		return
	}
	data, err := h.snapshots.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Cover serves artwork for an album or artist, falling back to the
// generated placeholder.
func (h *APIHandler) Cover(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-User-ID header")
		return
	}

	vars := mux.Vars(r)
	kind := scanner.CoverKind(vars["kind"])
	if kind != scanner.CoverAlbum && kind != scanner.CoverArtist {
		writeError(w, http.StatusBadRequest, "kind must be album or artist")
		return
	}
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil || size < 0 {
			writeError(w, http.StatusBadRequest, "invalid size")
			return
		}
	}

	data, mimeType, err := h.covers.Get(r.Context(), userID, kind, uint(id), size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
