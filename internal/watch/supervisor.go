// Package watch implements the Watch-Condition Supervisor (spec.md §4.G): a
// deterministic mapping from observed state to one of six conditions,
// consulted at a low fixed cadence and emitting a transition event plus a
// handover note whenever the condition changes.
package watch

import (
	"context"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

// Condition is one of the six watch conditions named in spec.md §3.
type Condition string

const (
	ConditionStandby    Condition = "STANDBY"
	ConditionGame       Condition = "GAME"
	ConditionWork       Condition = "WORK"
	ConditionTutor      Condition = "TUTOR"
	ConditionRestricted Condition = "RESTRICTED"
	ConditionDegraded   Condition = "DEGRADED"
)

// Supervisor periodically recomputes the current watch condition and emits
// WATCH_CONDITION_CHANGED + HANDOVER_NOTE events on transition.
type Supervisor struct {
	store    *persistence.Store
	interval time.Duration
	current  Condition
}

// New builds a Supervisor. interval is the ticker cadence; spec.md calls
// this "a low fixed cadence" without naming a number, so callers default to
// a few seconds via NewDefault.
func New(store *persistence.Store, interval time.Duration) *Supervisor {
	return &Supervisor{store: store, interval: interval, current: ""}
}

// NewDefault builds a Supervisor on a 5-second tick, matching the teacher's
// habit of polling lightweight derived state on a short, fixed interval
// rather than reacting to individual state-key writes.
func NewDefault(store *persistence.Store) *Supervisor {
	return New(store, 5*time.Second)
}

// Run blocks, ticking until ctx is cancelled. It evaluates once immediately
// so a freshly-started process doesn't wait a full interval before its first
// condition is known.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.tick(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) error {
	next, snapshot, err := s.derive(ctx)
	if err != nil {
		return err
	}
	if next == s.current {
		return nil
	}
	prev := s.current
	s.current = next

	if _, err := s.store.SetState(ctx, persistence.StateItem{
		Key:   "policy.watch_condition",
		Value: string(next),
	}, false); err != nil {
		return err
	}
	return s.emitTransition(ctx, prev, next, snapshot)
}

func (s *Supervisor) emitTransition(ctx context.Context, from, to Condition, snapshot handoverSnapshot) error {
	if err := s.store.AppendEvent(ctx, persistence.Event{
		EventType: "WATCH_CONDITION_CHANGED",
		Severity:  "info",
		Payload: map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		},
	}); err != nil {
		return err
	}
	return s.store.AppendEvent(ctx, persistence.Event{
		EventType: "HANDOVER_NOTE",
		Severity:  "info",
		Payload:   snapshot.toPayload(),
	})
}

// handoverSnapshot is the "alarms, equipment presence, aux-app state, AI
// availability" summary spec.md §4.G names for the HANDOVER_NOTE event.
type handoverSnapshot struct {
	alarms          interface{}
	equipmentPresent interface{}
	auxAppState     interface{}
	aiAvailability  interface{}
}

func (h handoverSnapshot) toPayload() map[string]interface{} {
	return map[string]interface{}{
		"alarms":            h.alarms,
		"equipment_present": h.equipmentPresent,
		"aux_app_state":     h.auxAppState,
		"ai_availability":   h.aiAvailability,
	}
}

// derive implements spec.md §4.G's decision table. env WATCH_CONDITION, when
// set, wins outright; otherwise state keys are consulted in the documented
// priority order. The four handover-note lookups run concurrently via
// errgroup since they are independent reads against the same store, mirroring
// the teacher's habit of fanning out concurrent read-only probes.
func (s *Supervisor) derive(ctx context.Context) (Condition, handoverSnapshot, error) {
	if override := os.Getenv("WATCH_CONDITION"); override != "" {
		cond := Condition(strings.ToUpper(override))
		snapshot, err := s.gatherSnapshot(ctx)
		return cond, snapshot, err
	}

	degraded, err := s.truthy(ctx, "system.degraded")
	if err != nil {
		return "", handoverSnapshot{}, err
	}
	if degraded {
		snapshot, err := s.gatherSnapshot(ctx)
		return ConditionDegraded, snapshot, err
	}

	restricted, err := s.truthy(ctx, "system.restricted_mode")
	if err != nil {
		return "", handoverSnapshot{}, err
	}
	if restricted {
		snapshot, err := s.gatherSnapshot(ctx)
		return ConditionRestricted, snapshot, err
	}

	edRunning, err := s.truthy(ctx, "ed.running")
	if err != nil {
		return "", handoverSnapshot{}, err
	}
	if edRunning {
		snapshot, err := s.gatherSnapshot(ctx)
		return ConditionGame, snapshot, err
	}

	snapshot, err := s.gatherSnapshot(ctx)
	return ConditionStandby, snapshot, err
}

func (s *Supervisor) truthy(ctx context.Context, key string) (bool, error) {
	item, err := s.store.GetState(ctx, key)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	switch v := item.Value.(type) {
	case bool:
		return v, nil
	case string:
		return v != "" && v != "false", nil
	case float64:
		return v != 0, nil
	case nil:
		return false, nil
	default:
		return true, nil
	}
}

func (s *Supervisor) gatherSnapshot(ctx context.Context) (handoverSnapshot, error) {
	var snapshot handoverSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.readValue(gctx, "system.alarms")
		snapshot.alarms = v
		return err
	})
	g.Go(func() error {
		v, err := s.readValue(gctx, "hw.equipment_present")
		snapshot.equipmentPresent = v
		return err
	})
	g.Go(func() error {
		v, err := s.readValue(gctx, "music.aux_app_state")
		snapshot.auxAppState = v
		return err
	})
	g.Go(func() error {
		v, err := s.readValue(gctx, "ai.availability")
		snapshot.aiAvailability = v
		return err
	})

	if err := g.Wait(); err != nil {
		return handoverSnapshot{}, err
	}
	return snapshot, nil
}

func (s *Supervisor) readValue(ctx context.Context, key string) (interface{}, error) {
	item, err := s.store.GetState(ctx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return item.Value, nil
}

// Current returns the most recently derived condition, or "" before the
// first tick has run.
func (s *Supervisor) Current() Condition {
	return s.current
}
