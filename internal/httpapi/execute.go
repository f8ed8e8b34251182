package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/actions"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
)

type postExecuteRequest struct {
	RequestID        string   `json:"request_id"`
	ActionIDs        []string `json:"action_ids,omitempty"`
	DryRun           *bool    `json:"dry_run,omitempty"`
	AllowHighRisk    bool     `json:"allow_high_risk,omitempty"`
	UserConfirmed    bool     `json:"user_confirmed,omitempty"`
	UserConfirmToken string   `json:"user_confirm_token,omitempty"`
	IncidentID       string   `json:"incident_id,omitempty"`
	WatchCondition   string   `json:"watch_condition,omitempty"`
	STTConfidence    *float64 `json:"stt_confidence,omitempty"`
	ConfirmedAtUTC   string   `json:"confirmed_at_utc,omitempty"`
}

// handlePostExecute implements POST /execute.
func (s *Server) handlePostExecute(w http.ResponseWriter, r *http.Request) {
	var req postExecuteRequest
	if err := ingest.DecodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "request_id is required")
		return
	}
	if req.WatchCondition != "" {
		if err := ingest.ValidateWatchCondition(req.WatchCondition); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.STTConfidence != nil {
		if err := ingest.ValidateUnitInterval("stt_confidence", *req.STTConfidence); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// spec.md §4.E defaults dry_run to true; an omitted field must not
	// silently request a real dispatch.
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	result, err := s.executor.ExecuteActions(r.Context(), actions.ExecutePayload{
		RequestID:        req.RequestID,
		ActionIDs:        req.ActionIDs,
		DryRun:           dryRun,
		AllowHighRisk:    req.AllowHighRisk,
		UserConfirmed:    req.UserConfirmed,
		UserConfirmToken: req.UserConfirmToken,
		IncidentID:       req.IncidentID,
		WatchCondition:   req.WatchCondition,
		STTConfidence:    req.STTConfidence,
		ConfirmedAtUTC:   req.ConfirmedAtUTC,
		NowTS:            float64(time.Now().Unix()),
	})
	if err != nil {
		if errors.Is(err, actions.ErrIntentNotFound) {
			writeError(w, http.StatusNotFound, "no intent found for request_id")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeOK(w, http.StatusOK, map[string]interface{}{"request_id": result.RequestID, "results": result.Results})
}
