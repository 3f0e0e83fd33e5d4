// Package docserver serves the fixed bin protocol the client replicates
// against: read the latest record, replace the record wholesale, guarded
// by a static access key.
package docserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/akeeren/courier/internal/storage"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	store     storage.Store
	accessKey string
}

func NewHandler(store storage.Store, accessKey string) *Handler {
	return &Handler{store: store, accessKey: accessKey}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/b/", h.handleBin)
	mux.HandleFunc("/healthz", h.handleHealth)
}

// handleBin routes GET /b/<id>/latest and PUT /b/<id>.
func (h *Handler) handleBin(w http.ResponseWriter, r *http.Request) {
	if h.accessKey != "" && r.Header.Get("X-Master-Key") != h.accessKey {
		writeError(w, http.StatusUnauthorized, errors.New("invalid access key"))
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/b/")
	switch r.Method {
	case http.MethodGet:
		id, ok := strings.CutSuffix(rest, "/latest")
		if !ok || id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, errors.New("unknown path"))
			return
		}
		h.getLatest(w, r, id)
	case http.MethodPut:
		if rest == "" || strings.Contains(rest, "/") {
			writeError(w, http.StatusNotFound, errors.New("unknown path"))
			return
		}
		h.putBin(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (h *Handler) getLatest(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.store.GetBin(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("bin %s not found", id))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"record": record})
}

// putBin replaces the record wholesale, creating the bin if needed. The
// body must be a single JSON object; its contents are otherwise opaque.
func (h *Handler) putBin(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var record json.RawMessage
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return
	}
	if len(record) == 0 || record[0] != '{' {
		writeError(w, http.StatusBadRequest, errors.New("record must be a json object"))
		return
	}

	if err := h.store.PutBin(r.Context(), id, record); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"record": record})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Printf("docserver: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
