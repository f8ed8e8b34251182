package httpapi

import (
	"net/http"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

// handleGetState implements GET /state?key=. With no key it lists every
// current state row; with a key it returns just that row, 404 if absent.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		items, err := s.store.ListState(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeOK(w, http.StatusOK, map[string]interface{}{"items": items})
		return
	}

	item, err := s.store.GetState(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "state key not found")
		return
	}
	writeOK(w, http.StatusOK, map[string]interface{}{"item": item})
}

type postStateRequest struct {
	Items []persistence.StateItem `json:"items"`
}

// handlePostState implements POST /state.
func (s *Server) handlePostState(w http.ResponseWriter, r *http.Request) {
	var req postStateRequest
	if err := ingest.DecodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, item := range req.Items {
		if err := ingest.ValidateStateKey(item.Key); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if item.Confidence != nil {
			if err := ingest.ValidateUnitInterval("confidence", *item.Confidence); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	}

	if err := s.store.BatchSetState(r.Context(), req.Items, true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusOK, nil)
}
