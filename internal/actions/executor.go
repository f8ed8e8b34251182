package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
)

// ErrIntentNotFound is returned when the request_id does not correspond to a
// persisted intent; callers map it to HTTP 404 per spec.md §7.
var ErrIntentNotFound = errors.New("intent not found")

// ForegroundProbe reports the current foreground process name. It is
// OS-specific and may be unavailable, in which case ok is false — this
// package never fails a request because the probe is absent.
type ForegroundProbe func() (name string, ok bool)

// NoopForegroundProbe always reports "unavailable", matching a platform with
// no foreground-window introspection wired up.
func NoopForegroundProbe() (string, bool) { return "", false }

// ExecutePayload mirrors spec.md §4.E's executeActions input.
type ExecutePayload struct {
	RequestID        string
	ActionIDs        []string
	DryRun           bool
	AllowHighRisk    bool
	UserConfirmed    bool
	UserConfirmToken string
	IncidentID       string
	WatchCondition   string
	STTConfidence    *float64
	ConfirmedAtUTC   string
	NowTS            float64
}

// ActionResult is the per-action outcome of an execute pass.
type ActionResult struct {
	ActionID     string                 `json:"action_id"`
	ToolName     string                 `json:"tool_name"`
	Status       string                 `json:"status"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ConfirmToken string                 `json:"confirm_token,omitempty"`
	Output       map[string]interface{} `json:"output,omitempty"`
}

// ExecuteResult is executeActions' overall return value.
type ExecuteResult struct {
	RequestID string         `json:"request_id"`
	Results   []ActionResult `json:"results"`
}

// Executor orchestrates queued proposed actions through the state machine in
// spec.md §4.E, invoking the Router for every gating decision — it never
// calls the Policy Engine directly.
type Executor struct {
	store      *persistence.Store
	router     *router.Router
	dispatcher Dispatcher
	probe      ForegroundProbe
}

func NewExecutor(store *persistence.Store, r *router.Router, dispatcher Dispatcher, probe ForegroundProbe) *Executor {
	if probe == nil {
		probe = NoopForegroundProbe
	}
	return &Executor{store: store, router: r, dispatcher: dispatcher, probe: probe}
}

var modeToCondition = map[string]string{
	"game":     "GAME",
	"work":     "WORK",
	"standby":  "STANDBY",
	"tutor":    "TUTOR",
}

func (e *Executor) resolveWatchCondition(ctx context.Context, explicit string, mode string) string {
	if explicit != "" {
		return explicit
	}
	if item, err := e.store.GetState(ctx, "policy.watch_condition"); err == nil && item != nil {
		if s, ok := item.Value.(string); ok && s != "" {
			return s
		}
	}
	if item, err := e.store.GetState(ctx, "system.watch_condition"); err == nil && item != nil {
		if s, ok := item.Value.(string); ok && s != "" {
			return s
		}
	}
	if cond, ok := modeToCondition[mode]; ok {
		return cond
	}
	return "DEFAULT"
}

// ExecuteActions implements spec.md §4.E.
func (e *Executor) ExecuteActions(ctx context.Context, payload ExecutePayload) (*ExecuteResult, error) {
	intent, err := e.store.GetIntent(ctx, payload.RequestID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, ErrIntentNotFound
	}

	watchCondition := e.resolveWatchCondition(ctx, payload.WatchCondition, intent.Mode)

	rows, err := e.store.ListQueuedActions(ctx, payload.RequestID, payload.ActionIDs)
	if err != nil {
		return nil, err
	}

	result := &ExecuteResult{RequestID: payload.RequestID}

	for _, row := range rows {
		if row.Status != "queued" {
			result.Results = append(result.Results, ActionResult{
				ActionID: row.ActionID, ToolName: row.ToolName, Status: row.Status,
				ErrorMessage: "already finalized",
			})
			continue
		}

		env, err := persistence.ParseActionEnvelope(row.ParametersJSON)
		if err != nil {
			log.Warn().Err(err).Str("action_id", row.ActionID).Msg("failed to parse action parameters, treating as execution error")
			e.finalize(ctx, intent, row, "error", "execution_error", err.Error(), "")
			result.Results = append(result.Results, ActionResult{ActionID: row.ActionID, ToolName: row.ToolName, Status: "error", ErrorCode: "execution_error", ErrorMessage: err.Error()})
			continue
		}

		ar := e.executeOne(ctx, payload, intent, row, watchCondition, env)
		result.Results = append(result.Results, ar)
	}

	return result, nil
}

func (e *Executor) executeOne(ctx context.Context, payload ExecutePayload, intent *persistence.Intent, row persistence.ActionLogRow, watchCondition string, env persistence.ActionEnvelope) ActionResult {
	// Mode gate (pre-policy).
	if len(env.ModeConstraints) > 0 && !containsString(env.ModeConstraints, intent.Mode) {
		e.finalize(ctx, intent, row, "denied", "DENY_MODE_CONSTRAINT", "action's mode_constraints do not include the current mode", "")
		e.emitEvent(ctx, intent, "ACTION_DENIED", "warn", row, map[string]interface{}{"reason_code": "DENY_MODE_CONSTRAINT"})
		return ActionResult{ActionID: row.ActionID, ToolName: row.ToolName, Status: "denied", ErrorCode: "DENY_MODE_CONSTRAINT", ErrorMessage: "action's mode_constraints do not include the current mode"}
	}

	// High-risk gate.
	if row.SafetyLevel == "high_risk" && !payload.AllowHighRisk {
		e.finalize(ctx, intent, row, "denied", "DENY_HIGH_RISK_NOT_ALLOWED", "high-risk action requires allow_high_risk", "")
		e.emitEvent(ctx, intent, "ACTION_DENIED", "warn", row, map[string]interface{}{"reason_code": "DENY_HIGH_RISK_NOT_ALLOWED"})
		return ActionResult{ActionID: row.ActionID, ToolName: row.ToolName, Status: "denied", ErrorCode: "DENY_HIGH_RISK_NOT_ALLOWED", ErrorMessage: "high-risk action requires allow_high_risk"}
	}

	foreground, _ := e.probe()

	var confirmationTS *float64
	if payload.UserConfirmed {
		ts := payload.NowTS
		if payload.ConfirmedAtUTC != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, payload.ConfirmedAtUTC); err == nil {
				ts = float64(parsed.Unix())
			}
		}
		confirmationTS = &ts
	}

	decisionResult := e.router.Evaluate(router.Request{
		IncidentID:                 payload.IncidentID,
		WatchCondition:             watchCondition,
		ToolName:                   row.ToolName,
		Args:                       env.Parameters,
		Source:                     "executor",
		STTConfidence:              payload.STTConfidence,
		ForegroundProcess:          foreground,
		UserConfirmed:              payload.UserConfirmed,
		UserConfirmToken:           payload.UserConfirmToken,
		ActionRequiresConfirmation: env.RequiresConfirmation,
		NowTS:                      payload.NowTS,
		ConfirmationTS:             confirmationTS,
	})
	decision := decisionResult.Decision

	if decision.RequiresConfirmation {
		eventType := "ACTION_CONFIRMATION_REQUIRED"
		if decision.DenyReasonCode == policy.DenyConfirmationExpired {
			eventType = "ACTION_CONFIRMATION_EXPIRED"
		}
		e.finalize(ctx, intent, row, "queued", string(decision.DenyReasonCode), decision.DenyReasonText, "")
		e.emitEvent(ctx, intent, eventType, "info", row, map[string]interface{}{"reason_code": decision.DenyReasonCode})
		return ActionResult{
			ActionID: row.ActionID, ToolName: row.ToolName, Status: "requires_confirmation",
			ErrorCode: string(decision.DenyReasonCode), ErrorMessage: decision.DenyReasonText,
			ConfirmToken: decisionResult.ConfirmToken,
		}
	}

	if !decision.Allowed {
		e.finalize(ctx, intent, row, "denied", string(decision.DenyReasonCode), decision.DenyReasonText, "")
		e.emitEvent(ctx, intent, "ACTION_DENIED", "warn", row, map[string]interface{}{"reason_code": decision.DenyReasonCode})
		return ActionResult{ActionID: row.ActionID, ToolName: row.ToolName, Status: "denied", ErrorCode: string(decision.DenyReasonCode), ErrorMessage: decision.DenyReasonText}
	}

	startedAt := nowISO()
	e.finalize(ctx, intent, row, "approved", "", "", "")
	e.emitEvent(ctx, intent, "ACTION_APPROVED", "info", row, nil)

	timeout := time.Duration(env.TimeoutMS) * time.Millisecond
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dispatchResult, dispatchErr := e.dispatcher.Execute(dispatchCtx, row.ToolName, env.Parameters, row.RequestID, row.ActionID, payload.DryRun, timeout)
	endedAt := nowISO()

	if dispatchErr != nil {
		status := "error"
		errorCode := "execution_error"
		if errors.Is(dispatchCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
			errorCode = "timeout"
		}
		e.finalize(ctx, intent, row, status, errorCode, dispatchErr.Error(), "")
		e.emitEvent(ctx, intent, "TOOL_EXECUTE_RESULT", "error", row, map[string]interface{}{"ok": false, "error": dispatchErr.Error()})
		e.emitEvent(ctx, intent, "ACTION_FAILED", "error", row, map[string]interface{}{"error_code": errorCode})
		return ActionResult{ActionID: row.ActionID, ToolName: row.ToolName, Status: status, ErrorCode: errorCode, ErrorMessage: dispatchErr.Error()}
	}

	outputJSON := marshalOutput(dispatchResult.Output)
	e.finalizeWithTimes(ctx, intent, row, "success", "", "", outputJSON, startedAt, endedAt)
	e.emitEvent(ctx, intent, "TOOL_EXECUTE_RESULT", "info", row, map[string]interface{}{"ok": true})
	e.emitEvent(ctx, intent, "ACTION_EXECUTED", "info", row, nil)

	return ActionResult{ActionID: row.ActionID, ToolName: row.ToolName, Status: "success", Output: dispatchResult.Output}
}

func (e *Executor) finalize(ctx context.Context, intent *persistence.Intent, row persistence.ActionLogRow, status, errorCode, errorMessage, outputJSON string) {
	e.finalizeWithTimes(ctx, intent, row, status, errorCode, errorMessage, outputJSON, "", "")
}

func (e *Executor) finalizeWithTimes(ctx context.Context, intent *persistence.Intent, row persistence.ActionLogRow, status, errorCode, errorMessage, outputJSON, startedAt, endedAt string) {
	if err := e.store.UpdateActionStatus(ctx, row.RequestID, row.ActionID, status, startedAt, endedAt, errorCode, errorMessage, outputJSON); err != nil {
		log.Error().Err(err).Str("action_id", row.ActionID).Msg("failed to persist action status")
	}
}

func (e *Executor) emitEvent(ctx context.Context, intent *persistence.Intent, eventType, severity string, row persistence.ActionLogRow, extra map[string]interface{}) {
	payload := map[string]interface{}{"action_id": row.ActionID, "tool_name": row.ToolName}
	for k, v := range extra {
		payload[k] = v
	}
	err := e.store.AppendEvent(ctx, persistence.Event{
		EventType:     eventType,
		Severity:      severity,
		SessionID:     intent.SessionID,
		CorrelationID: intent.RequestID,
		Mode:          intent.Mode,
		Payload:       payload,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to append action event")
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func marshalOutput(output map[string]interface{}) string {
	if output == nil {
		return ""
	}
	b, err := json.Marshal(output)
	if err != nil {
		return ""
	}
	return string(b)
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}
