package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/assist"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

type postAssistRequest struct {
	UserText  string `json:"user_text"`
	Mode      string `json:"mode"`
	SessionID string `json:"session_id,omitempty"`
}

// handlePostAssist implements POST /assist: runs one request through the
// Advisory Client, Router, and persistence layers via the assist
// orchestrator.
func (s *Server) handlePostAssist(w http.ResponseWriter, r *http.Request) {
	var req postAssistRequest
	if err := ingest.DecodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserText == "" {
		writeError(w, http.StatusBadRequest, "user_text is required")
		return
	}
	if err := ingest.ValidateMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requestID := s.store.NewID()
	now := time.Now().UTC()

	// session_id is a caller-facing correlation handle rather than a
	// storage-ordered primary key, so it's a plain random UUID rather than
	// the store's time-sortable ULIDs.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	watchCondition := ""
	if s.supervisor != nil {
		watchCondition = string(s.supervisor.Current())
	}

	resp, err := s.orchestrator.Handle(r.Context(), assist.Request{
		RequestID:      requestID,
		SessionID:      sessionID,
		Mode:           req.Mode,
		Prompt:         req.UserText,
		Fallback:       needsClarificationFallback(requestID, req.Mode, req.UserText, now),
		WatchCondition: watchCondition,
		Source:         "assist_endpoint",
		NowTS:          float64(now.Unix()),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeOK(w, http.StatusOK, map[string]interface{}{
		"proposal":          resp.Proposal,
		"used_fallback":     resp.UsedFallback,
		"validation_failed": resp.ValidationFailed,
		"preview_decisions": resp.PreviewDecisions,
	})
}

// needsClarificationFallback is the safe default the Advisory Client falls
// back to when it can't produce (or can't validate) a real proposal.
func needsClarificationFallback(requestID, mode, userText string, now time.Time) persistence.Intent {
	return persistence.Intent{
		SchemaVersion:          "1.0",
		RequestID:              requestID,
		TimestampUTC:           now.Format("2006-01-02T15:04:05.000000Z"),
		Mode:                   mode,
		Domain:                 "general",
		Urgency:                "normal",
		UserText:               userText,
		NeedsTools:             false,
		NeedsClarification:     true,
		ClarificationQuestions: []string{"Could you say that again, more specifically?"},
		ProposedActions:        []persistence.ProposedAction{},
		ResponseText:           "I need a bit more detail before I can help with that.",
	}
}
