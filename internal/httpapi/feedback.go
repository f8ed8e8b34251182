package httpapi

import (
	"net/http"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

type postFeedbackRequest struct {
	RequestID string `json:"request_id"`
	Rating    int    `json:"rating"`
}

// handlePostFeedback implements POST /feedback: log a user rating against a
// prior assist request.
func (s *Server) handlePostFeedback(w http.ResponseWriter, r *http.Request) {
	var req postFeedbackRequest
	if err := ingest.DecodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "request_id is required")
		return
	}
	if err := ingest.ValidateRating(req.Rating); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	intent, err := s.store.GetIntent(r.Context(), req.RequestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if intent == nil {
		writeError(w, http.StatusNotFound, "no intent found for request_id")
		return
	}

	err = s.store.AppendEvent(r.Context(), persistence.Event{
		EventType:     "FEEDBACK_RECORDED",
		Severity:      "info",
		SessionID:     intent.SessionID,
		CorrelationID: req.RequestID,
		Mode:          intent.Mode,
		Payload:       map[string]interface{}{"rating": req.Rating},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusOK, nil)
}
