package actions

import (
	"context"
	"testing"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
)

func newTestExecutor(t *testing.T) (*Executor, *persistence.Store) {
	t.Helper()
	store, err := persistence.Open(":memory:")
	if err != nil {
		t.Fatalf("persistence.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := policy.NewEngine("../../configs/standing_orders.json")
	if err != nil {
		t.Fatalf("policy.NewEngine: %v", err)
	}
	r := router.New(engine, nil)
	exec := NewExecutor(store, r, NewDryRunDispatcher(), nil)
	return exec, store
}

func TestExecuteActionsMissingIntentReturns404Error(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.ExecuteActions(context.Background(), ExecutePayload{RequestID: "nope", DryRun: true, NowTS: 1})
	if err != ErrIntentNotFound {
		t.Fatalf("expected ErrIntentNotFound, got %v", err)
	}
}

func TestExecuteActionsHighRiskBlockedWithoutAllowFlag(t *testing.T) {
	ctx := context.Background()
	exec, store := newTestExecutor(t)

	intent := persistence.Intent{
		RequestID:    "req-hr",
		TimestampUTC: "2026-01-01T00:00:00.000000Z",
		Mode:         "standby",
		Domain:       "general",
		Urgency:      "normal",
		ProposedActions: []persistence.ProposedAction{
			{ActionID: "act-hr", ToolName: "music.next", Parameters: map[string]interface{}{}, SafetyLevel: "high_risk", TimeoutMS: 1000, Confidence: 0.9},
		},
	}
	if err := store.UpsertIntent(ctx, intent); err != nil {
		t.Fatalf("UpsertIntent: %v", err)
	}

	result, err := exec.ExecuteActions(ctx, ExecutePayload{RequestID: "req-hr", DryRun: true, WatchCondition: "STANDBY", NowTS: 1})
	if err != nil {
		t.Fatalf("ExecuteActions: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].Status != "denied" || result.Results[0].ErrorCode != "DENY_HIGH_RISK_NOT_ALLOWED" {
		t.Fatalf("expected high-risk denial, got %+v", result.Results)
	}
}

func TestExecuteActionsSucceedsForAllowedLowRiskAction(t *testing.T) {
	ctx := context.Background()
	exec, store := newTestExecutor(t)

	intent := persistence.Intent{
		RequestID:    "req-ok",
		TimestampUTC: "2026-01-01T00:00:00.000000Z",
		Mode:         "standby",
		Domain:       "general",
		Urgency:      "normal",
		ProposedActions: []persistence.ProposedAction{
			{ActionID: "act-ok", ToolName: "music.next", Parameters: map[string]interface{}{}, SafetyLevel: "low_risk", TimeoutMS: 1000, Confidence: 0.9},
		},
	}
	if err := store.UpsertIntent(ctx, intent); err != nil {
		t.Fatalf("UpsertIntent: %v", err)
	}

	result, err := exec.ExecuteActions(ctx, ExecutePayload{RequestID: "req-ok", DryRun: true, WatchCondition: "STANDBY", NowTS: 1})
	if err != nil {
		t.Fatalf("ExecuteActions: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].Status != "success" {
		t.Fatalf("expected success, got %+v", result.Results)
	}
}

func TestExecuteActionsIsIdempotentOnTerminalAction(t *testing.T) {
	ctx := context.Background()
	exec, store := newTestExecutor(t)

	intent := persistence.Intent{
		RequestID:    "req-term",
		TimestampUTC: "2026-01-01T00:00:00.000000Z",
		Mode:         "standby",
		Domain:       "general",
		Urgency:      "normal",
		ProposedActions: []persistence.ProposedAction{
			{ActionID: "act-term", ToolName: "music.next", Parameters: map[string]interface{}{}, SafetyLevel: "low_risk", TimeoutMS: 1000, Confidence: 0.9},
		},
	}
	if err := store.UpsertIntent(ctx, intent); err != nil {
		t.Fatalf("UpsertIntent: %v", err)
	}

	if _, err := exec.ExecuteActions(ctx, ExecutePayload{RequestID: "req-term", DryRun: true, WatchCondition: "STANDBY", NowTS: 1}); err != nil {
		t.Fatalf("first ExecuteActions: %v", err)
	}
	result, err := exec.ExecuteActions(ctx, ExecutePayload{RequestID: "req-term", DryRun: true, WatchCondition: "STANDBY", NowTS: 2})
	if err != nil {
		t.Fatalf("second ExecuteActions: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].ErrorMessage != "already finalized" {
		t.Fatalf("expected already-finalized result on second pass, got %+v", result.Results)
	}
}
