package persistence

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetStateEmitsEventOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	changed, err := s.SetState(ctx, StateItem{Key: "ed.running", Value: true, Source: "journal"}, true)
	if err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if !changed {
		t.Fatalf("expected first write to report changed=true")
	}

	changed, err = s.SetState(ctx, StateItem{Key: "ed.running", Value: true, Source: "journal"}, true)
	if err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if changed {
		t.Fatalf("expected identical value to report changed=false")
	}

	events, err := s.ListEvents(ctx, EventFilter{EventType: "STATE_CHANGED"})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one STATE_CHANGED event, got %d", len(events))
	}
}

func TestUpsertIntentQueuesActionsThenUpdateActionStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	intent := Intent{
		RequestID:    "req-1",
		TimestampUTC: "2026-01-01T00:00:00.000000Z",
		Mode:         "game",
		Domain:       "general",
		Urgency:      "normal",
		ProposedActions: []ProposedAction{
			{ActionID: "act-1", ToolName: "input.keypress", SafetyLevel: "low_risk", TimeoutMS: 1000, Confidence: 0.9},
		},
	}
	if err := s.UpsertIntent(ctx, intent); err != nil {
		t.Fatalf("UpsertIntent: %v", err)
	}

	rows, err := s.ListQueuedActions(ctx, "req-1", nil)
	if err != nil {
		t.Fatalf("ListQueuedActions: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "queued" {
		t.Fatalf("expected one queued action, got %+v", rows)
	}

	if err := s.UpdateActionStatus(ctx, "req-1", "act-1", "success", "2026-01-01T00:00:01.000000Z", "2026-01-01T00:00:02.000000Z", "", "", `{"result":"ok"}`); err != nil {
		t.Fatalf("UpdateActionStatus: %v", err)
	}

	got, err := s.GetIntent(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetIntent: %v", err)
	}
	if got == nil || len(got.ProposedActions) != 1 {
		t.Fatalf("expected intent with one action, got %+v", got)
	}

	rows, err = s.ListQueuedActions(ctx, "req-1", nil)
	if err != nil {
		t.Fatalf("ListQueuedActions: %v", err)
	}
	if rows[0].Status != "success" {
		t.Fatalf("expected status success, got %s", rows[0].Status)
	}
}

func TestGetIntentMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	got, err := s.GetIntent(ctx, "nope")
	if err != nil {
		t.Fatalf("GetIntent: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing intent, got %+v", got)
	}
}
