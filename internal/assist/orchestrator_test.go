package assist

import (
	"context"
	"testing"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/advisory"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	store, err := persistence.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := policy.NewEngine("../../configs/standing_orders.json")
	if err != nil {
		t.Fatalf("load engine: %v", err)
	}
	r := router.New(engine, nil)
	client := advisory.New(advisory.Config{Mode: advisory.ModeStub})
	return New(client, r, store)
}

func fallbackIntent(requestID string) persistence.Intent {
	return persistence.Intent{
		SchemaVersion:          "1.0",
		RequestID:              requestID,
		TimestampUTC:           "2026-01-01T00:00:00.000000Z",
		Mode:                   "standby",
		Domain:                 "general",
		Urgency:                "low",
		NeedsTools:             false,
		NeedsClarification:     true,
		ClarificationQuestions: []string{"Please confirm the exact action you want me to take."},
		ProposedActions:        []persistence.ProposedAction{},
		ResponseText:           "I need clarification before taking any action.",
	}
}

func TestHandleStubModeEmitsFullEventSequence(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	resp, err := o.Handle(ctx, Request{
		RequestID: "req-1",
		SessionID: "sess-1",
		Mode:      "standby",
		Prompt:    "what should I do",
		Fallback:  fallbackIntent("req-1"),
		NowTS:     1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ValidationFailed {
		t.Fatalf("expected stub-mode fallback to validate cleanly")
	}

	events, err := o.store.ListEvents(ctx, persistence.EventFilter{CorrelationID: "req-1"})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range events {
		seen[e.EventType] = true
	}
	for _, want := range []string{
		"ASSIST_REQUEST_SUMMARY",
		"ASSIST_PROPOSAL_RECEIVED",
		"ASSIST_PROPOSAL_VALIDATED",
		"ASSIST_POLICY_PREVIEW",
		"ASSIST_PROPOSAL",
	} {
		if !seen[want] {
			t.Errorf("expected event %s to be emitted, got %v", want, seen)
		}
	}
}

func TestHandlePreviewAllowsKeypressInGameWithMatchingForeground(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	proposal := fallbackIntent("req-2")
	proposal.Mode = "game"
	proposal.NeedsTools = true
	proposal.NeedsClarification = false
	proposal.ProposedActions = []persistence.ProposedAction{
		{
			ActionID:    "a1",
			ToolName:    "input.keypress",
			Parameters:  map[string]interface{}{"key": "f"},
			SafetyLevel: "low_risk",
			TimeoutMS:   2000,
			Confidence:  0.9,
		},
	}

	resp, err := o.Handle(ctx, Request{
		RequestID:         "req-2",
		SessionID:         "sess-2",
		Mode:              "game",
		Prompt:            "fire",
		Fallback:          proposal,
		WatchCondition:    "GAME",
		ForegroundProcess: "EliteDangerous64.exe",
		NowTS:             1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.PreviewDecisions) != 1 {
		t.Fatalf("expected one preview decision, got %d", len(resp.PreviewDecisions))
	}
	if !resp.PreviewDecisions[0].Allowed {
		t.Fatalf("expected keypress in GAME with correct foreground to be allowed, got %+v", resp.PreviewDecisions[0])
	}
}
