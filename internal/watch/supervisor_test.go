package watch

import (
	"context"
	"os"
	"testing"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDeriveDefaultsToStandby(t *testing.T) {
	os.Unsetenv("WATCH_CONDITION")
	store := newTestStore(t)
	s := New(store, 0)
	cond, _, err := s.derive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cond != ConditionStandby {
		t.Fatalf("expected STANDBY, got %s", cond)
	}
}

func TestDeriveEnvOverrideWins(t *testing.T) {
	os.Setenv("WATCH_CONDITION", "work")
	defer os.Unsetenv("WATCH_CONDITION")
	store := newTestStore(t)
	if _, err := store.SetState(context.Background(), persistence.StateItem{Key: "system.degraded", Value: true}, false); err != nil {
		t.Fatalf("setstate: %v", err)
	}
	s := New(store, 0)
	cond, _, err := s.derive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cond != ConditionWork {
		t.Fatalf("expected env override WORK to win over system.degraded, got %s", cond)
	}
}

func TestDerivePriorityOrder(t *testing.T) {
	os.Unsetenv("WATCH_CONDITION")
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.SetState(ctx, persistence.StateItem{Key: "ed.running", Value: true}, false); err != nil {
		t.Fatalf("setstate ed.running: %v", err)
	}
	if _, err := store.SetState(ctx, persistence.StateItem{Key: "system.restricted_mode", Value: true}, false); err != nil {
		t.Fatalf("setstate restricted_mode: %v", err)
	}
	s := New(store, 0)
	cond, _, err := s.derive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cond != ConditionRestricted {
		t.Fatalf("expected RESTRICTED to outrank GAME, got %s", cond)
	}
}

func TestTickEmitsTransitionEventsOnChange(t *testing.T) {
	os.Unsetenv("WATCH_CONDITION")
	store := newTestStore(t)
	ctx := context.Background()
	s := New(store, 0)

	if err := s.tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	events, err := store.ListEvents(ctx, persistence.EventFilter{EventType: "WATCH_CONDITION_CHANGED"})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one WATCH_CONDITION_CHANGED event after first tick, got %d", len(events))
	}

	if err := s.tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	events, err = store.ListEvents(ctx, persistence.EventFilter{EventType: "WATCH_CONDITION_CHANGED"})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected no new event on unchanged tick, got %d total", len(events))
	}

	if _, err := store.SetState(ctx, persistence.StateItem{Key: "ed.running", Value: true}, false); err != nil {
		t.Fatalf("setstate: %v", err)
	}
	if err := s.tick(ctx); err != nil {
		t.Fatalf("third tick: %v", err)
	}
	events, err = store.ListEvents(ctx, persistence.EventFilter{EventType: "WATCH_CONDITION_CHANGED"})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected a second transition event after ed.running flips, got %d", len(events))
	}

	handovers, err := store.ListEvents(ctx, persistence.EventFilter{EventType: "HANDOVER_NOTE"})
	if err != nil {
		t.Fatalf("list handover events: %v", err)
	}
	if len(handovers) != 2 {
		t.Fatalf("expected a HANDOVER_NOTE alongside each transition, got %d", len(handovers))
	}
}
