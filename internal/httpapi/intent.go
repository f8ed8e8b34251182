package httpapi

import (
	"net/http"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

// handlePostIntent implements POST /intent: upsert an intent proposal
// (§3's Intent shape) the same way the Assist orchestrator does, for
// callers that already have a proposal in hand (e.g. a replayed session).
func (s *Server) handlePostIntent(w http.ResponseWriter, r *http.Request) {
	var intent persistence.Intent
	if err := ingest.DecodeStrict(r.Body, &intent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ingest.ValidateIntent(intent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpsertIntent(r.Context(), intent); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusOK, map[string]interface{}{"request_id": intent.RequestID})
}
