package httpapi

import (
	"net/http"
	"time"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/standingorders"
)

type postConfirmRequest struct {
	IncidentID string `json:"incident_id"`
	ToolName   string `json:"tool_name"`
}

// handlePostConfirm implements POST /confirm: record the user's confirmation
// against the Confirmation Ledger. Per spec.md §4.D the Router is the only
// path through which a confirmation may be recorded, so this calls
// router.Evaluate with user_confirmed=true purely for that side effect —
// the watch_condition-dependent verdict it also returns isn't this
// endpoint's concern, confirmation has already been recorded by the time it
// comes back.
func (s *Server) handlePostConfirm(w http.ResponseWriter, r *http.Request) {
	var req postConfirmRequest
	if err := ingest.DecodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IncidentID == "" || req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "incident_id and tool_name are required")
		return
	}

	toolKey := standingorders.Canonicalize(req.ToolName)
	token := policy.BuildConfirmationToken(req.IncidentID, toolKey)

	s.router.Evaluate(router.Request{
		IncidentID:       req.IncidentID,
		ToolName:         req.ToolName,
		Source:           "confirm_endpoint",
		UserConfirmed:    true,
		UserConfirmToken: token,
		NowTS:            float64(time.Now().Unix()),
	})

	writeOK(w, http.StatusOK, map[string]interface{}{
		"tool_key":      toolKey,
		"confirm_token": token,
	})
}
