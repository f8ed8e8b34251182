// Package assist implements the Assist orchestrator (spec.md §4.I): it glues
// the Advisory Client (§4.F) to the Policy Engine via the Tool Router (§4.D)
// and to persistence (§4.A), emitting the ASSIST_* event sequence along the
// way.
package assist

import (
	"context"
	"time"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/advisory"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
)

// Request is one assist call, e.g. from the HTTP handler or a voice pipeline.
type Request struct {
	RequestID         string
	SessionID         string
	Mode              string
	Prompt            string
	Fallback          persistence.Intent
	WatchCondition    string
	STTConfidence     *float64
	ForegroundProcess string
	Source            string
	NowTS             float64
}

// Response is what the orchestrator hands back to the caller.
type Response struct {
	Proposal         persistence.Intent
	UsedFallback     bool
	ValidationFailed bool
	PreviewDecisions []ActionPreview
}

// ActionPreview is the dry, user_confirmed=false Router verdict computed for
// one proposed action during the preview pass.
type ActionPreview struct {
	ActionID             string
	ToolKey              string
	Allowed              bool
	RequiresConfirmation bool
	DenyReasonCode       policy.ReasonCode
	ConfirmToken         string
}

// Orchestrator wires an advisory.Client, router.Router, and persistence.Store
// together per spec.md §4.I's control flow.
type Orchestrator struct {
	client *advisory.Client
	router *router.Router
	store  *persistence.Store
}

func New(client *advisory.Client, r *router.Router, store *persistence.Store) *Orchestrator {
	return &Orchestrator{client: client, router: r, store: store}
}

// Handle runs one assist request end to end: F → A → D.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	if err := o.emit(ctx, "ASSIST_REQUEST_SUMMARY", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
		"prompt": req.Prompt,
	}); err != nil {
		return Response{}, err
	}

	proposal, meta := o.client.GenerateIntentProposal(ctx, req.Prompt, req.Fallback)

	if meta.UsedFallback && meta.ValidationErr != "" {
		if err := o.emitSeverity(ctx, "ASSIST_PROPOSAL_INVALID", "warn", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
			"error": meta.ValidationErr,
		}); err != nil {
			return Response{}, err
		}
		return Response{Proposal: proposal, UsedFallback: true, ValidationFailed: true}, nil
	}

	if err := o.emit(ctx, "ASSIST_PROPOSAL_RECEIVED", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
		"needs_tools": proposal.NeedsTools,
	}); err != nil {
		return Response{}, err
	}

	// Re-run the schema validator, per spec.md §4.I: the advisory client
	// already validated once before returning, but the orchestrator must
	// not trust a proposal it didn't itself re-check.
	if err := ingest.ValidateIntent(proposal); err != nil {
		if err := o.emitSeverity(ctx, "ASSIST_PROPOSAL_INVALID", "warn", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
			"error": err.Error(),
		}); err != nil {
			return Response{}, err
		}
		return Response{Proposal: proposal, UsedFallback: true, ValidationFailed: true}, nil
	}

	if err := o.emit(ctx, "ASSIST_PROPOSAL_VALIDATED", req.RequestID, req.SessionID, req.Mode, nil); err != nil {
		return Response{}, err
	}

	if err := o.store.UpsertIntent(ctx, proposal); err != nil {
		return Response{}, err
	}

	previews := make([]ActionPreview, 0, len(proposal.ProposedActions))
	confirmCount := 0
	for _, action := range proposal.ProposedActions {
		decision := o.router.Evaluate(router.Request{
			IncidentID:                req.RequestID,
			SessionID:                 req.SessionID,
			WatchCondition:            req.WatchCondition,
			ToolName:                  action.ToolName,
			Args:                      action.Parameters,
			Source:                    req.Source,
			STTConfidence:             req.STTConfidence,
			ForegroundProcess:         req.ForegroundProcess,
			UserConfirmed:             false,
			ActionRequiresConfirmation: action.RequiresConfirmation,
			NowTS:                     req.NowTS,
		})

		previews = append(previews, ActionPreview{
			ActionID:             action.ActionID,
			ToolKey:              decision.ToolKey,
			Allowed:              decision.Decision.Allowed,
			RequiresConfirmation: decision.Decision.RequiresConfirmation,
			DenyReasonCode:       decision.Decision.DenyReasonCode,
			ConfirmToken:         decision.ConfirmToken,
		})

		if decision.Decision.RequiresConfirmation {
			confirmCount++
			if err := o.emit(ctx, "ASSIST_CONFIRM_ISSUED", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
				"action_id":     action.ActionID,
				"tool_key":      decision.ToolKey,
				"confirm_token": decision.ConfirmToken,
			}); err != nil {
				return Response{}, err
			}
		}
	}

	if err := o.emit(ctx, "ASSIST_POLICY_PREVIEW", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
		"total_actions":      len(previews),
		"needs_confirmation": confirmCount,
	}); err != nil {
		return Response{}, err
	}

	if err := o.emit(ctx, "ASSIST_PROPOSAL", req.RequestID, req.SessionID, req.Mode, map[string]interface{}{
		"response_text": proposal.ResponseText,
	}); err != nil {
		return Response{}, err
	}

	return Response{Proposal: proposal, PreviewDecisions: previews}, nil
}

func (o *Orchestrator) emit(ctx context.Context, eventType, requestID, sessionID, mode string, payload map[string]interface{}) error {
	return o.emitSeverity(ctx, eventType, "info", requestID, sessionID, mode, payload)
}

func (o *Orchestrator) emitSeverity(ctx context.Context, eventType, severity, requestID, sessionID, mode string, payload map[string]interface{}) error {
	return o.store.AppendEvent(ctx, persistence.Event{
		EventType:     eventType,
		Severity:      severity,
		SessionID:     sessionID,
		CorrelationID: requestID,
		Mode:          mode,
		Payload:       payload,
		TimestampUTC:  nowISO(),
	})
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}
