package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/metrics"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/policy"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/wshub"
)

// storeEventLogger is the Router's EventLogger: it persists every policy
// decision as a POLICY_DECISION event, records it as a metric, and
// broadcasts it to any connected /events/stream client.
type storeEventLogger struct {
	store *persistence.Store
	hub   *wshub.Hub
}

func newStoreEventLogger(store *persistence.Store, hub *wshub.Hub) *storeEventLogger {
	return &storeEventLogger{store: store, hub: hub}
}

func (l *storeEventLogger) AppendPolicyDecisionEvent(correlationID, sessionID, toolKey string, decision policy.Decision) {
	severity := "info"
	if !decision.Allowed {
		severity = "warn"
	}

	payload := map[string]interface{}{
		"tool_key":              toolKey,
		"allowed":               decision.Allowed,
		"requires_confirmation": decision.RequiresConfirmation,
		"deny_reason_code":      decision.DenyReasonCode,
	}

	event := persistence.Event{
		EventType:     "POLICY_DECISION",
		Severity:      severity,
		SessionID:     sessionID,
		CorrelationID: correlationID,
		Payload:       payload,
	}

	if err := l.store.AppendEvent(context.Background(), event); err != nil {
		log.Error().Err(err).Msg("failed to persist policy decision event")
	}

	metrics.Get().RecordPolicyDecision(string(decision.DenyReasonCode), toolKey)

	if l.hub != nil {
		l.hub.BroadcastEvent("POLICY_DECISION", payload)
	}
}
