// Package router implements the Tool Router: the single entry point through
// which every proposed tool invocation is canonicalized, evaluated against
// the Policy Engine, and logged. No other package may call policy.Engine
// directly.
package router

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/standingorders"
)

// EventLogger is the thin persistence dependency the Router needs: logging
// the policy decision. Kept minimal and interface-typed so router tests don't
// need a real persistence façade.
type EventLogger interface {
	AppendPolicyDecisionEvent(correlationID, sessionID, toolKey string, decision policy.Decision)
}

// NoopLogger discards events; useful for tests and preview passes that don't
// want to double-log.
type NoopLogger struct{}

func (NoopLogger) AppendPolicyDecisionEvent(string, string, string, policy.Decision) {}

// Request is the Router's input, matching spec.md §4.D's evaluateAction.
type Request struct {
	IncidentID                 string
	SessionID                  string
	WatchCondition              string
	ToolName                    string
	Args                        map[string]interface{}
	Source                      string
	STTConfidence               *float64
	ForegroundProcess           string
	UserConfirmed               bool
	UserConfirmToken            string
	ActionRequiresConfirmation  bool
	NowTS                       float64
	ConfirmationTS              *float64
}

// Result is the Router's output: {decision, tool_key, confirm_token?}.
type Result struct {
	Decision    policy.Decision
	ToolKey     string
	ConfirmToken string
}

// Router is a thin orchestration layer: no state of its own beyond the
// policy Engine and an optional event logger.
type Router struct {
	engine *policy.Engine
	logger EventLogger
}

func New(engine *policy.Engine, logger EventLogger) *Router {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Router{engine: engine, logger: logger}
}

// Evaluate implements spec.md §4.D's evaluateAction algorithm.
func (r *Router) Evaluate(req Request) Result {
	toolKey := standingorders.Canonicalize(req.ToolName)

	token := strings.TrimSpace(req.UserConfirmToken)
	if token == "" {
		token = policy.BuildConfirmationToken(req.IncidentID, toolKey)
	}

	if req.UserConfirmed {
		ts := req.NowTS
		if req.ConfirmationTS != nil {
			ts = *req.ConfirmationTS
		}
		r.engine.RecordConfirmation(req.IncidentID, toolKey, token, ts)
	}

	var tokenForRequest string
	if req.UserConfirmed || strings.TrimSpace(req.UserConfirmToken) != "" {
		tokenForRequest = token
	}

	decision := r.engine.Evaluate(policy.ActionRequest{
		IncidentID:        req.IncidentID,
		WatchCondition:    req.WatchCondition,
		ToolName:          req.ToolName,
		Args:              req.Args,
		Source:            req.Source,
		STTConfidence:     req.STTConfidence,
		ForegroundProcess: req.ForegroundProcess,
		NowTS:             req.NowTS,
		UserConfirmToken:  tokenForRequest,
	})

	// Action-metadata gate: the proposed action itself demanded confirmation
	// even though the Standing Orders policy alone didn't.
	if decision.Allowed && req.ActionRequiresConfirmation && !req.UserConfirmed {
		window := 12.0
		if eng := r.engine; eng != nil {
			window = eng.ConfirmWindowSeconds()
		}
		confirmBy := req.NowTS + window
		decision = policy.Decision{
			Allowed:              false,
			RequiresConfirmation: true,
			DenyReasonCode:       policy.DenyNeedsConfirmation,
			DenyReasonText:       "action requires explicit user confirmation",
			Constraints: policy.Constraints{
				ConfirmByTS: &confirmBy,
			},
		}
	}

	var confirmToken string
	if decision.RequiresConfirmation {
		decision.Constraints.ConfirmToken = token
		confirmToken = token
	}

	r.logger.AppendPolicyDecisionEvent(req.IncidentID, req.SessionID, toolKey, decision)

	log.Debug().
		Str("tool_key", toolKey).
		Str("watch_condition", req.WatchCondition).
		Bool("allowed", decision.Allowed).
		Str("deny_reason_code", string(decision.DenyReasonCode)).
		Msg("policy decision")

	return Result{Decision: decision, ToolKey: toolKey, ConfirmToken: confirmToken}
}
