package ingest

import (
	"strings"
	"testing"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

func TestValidateStateKey(t *testing.T) {
	valid := []string{"ed.running", "music.now_playing", "hw.gpu_temp", "policy.watch_condition", "ai.availability"}
	for _, key := range valid {
		if err := ValidateStateKey(key); err != nil {
			t.Errorf("expected %q to be valid, got %v", key, err)
		}
	}
	invalidKeys := []string{"Ed.Running", "random_key", "ed", "unknown.prefix"}
	for _, key := range invalidKeys {
		if err := ValidateStateKey(key); err == nil {
			t.Errorf("expected %q to be invalid", key)
		}
	}
}

func TestValidateTimestampUTC(t *testing.T) {
	if err := ValidateTimestampUTC("2026-01-01T00:00:00.000000Z"); err != nil {
		t.Errorf("expected Z-suffixed timestamp to be valid: %v", err)
	}
	if err := ValidateTimestampUTC("2026-01-01T00:00:00+00:00"); err != nil {
		t.Errorf("expected +00:00 timestamp to be valid: %v", err)
	}
	if err := ValidateTimestampUTC("not-a-timestamp"); err == nil {
		t.Errorf("expected invalid timestamp to fail")
	}
}

func TestValidateIntentRejectsOutOfRangeFields(t *testing.T) {
	intent := persistence.Intent{
		Mode: "game", Domain: "general", Urgency: "normal",
		TimestampUTC: "2026-01-01T00:00:00.000000Z",
		ProposedActions: []persistence.ProposedAction{
			{SafetyLevel: "low_risk", TimeoutMS: 50, Confidence: 0.5},
		},
	}
	err := ValidateIntent(intent)
	if err == nil || !strings.Contains(err.Error(), "timeout_ms") {
		t.Fatalf("expected timeout_ms validation error, got %v", err)
	}
}

func TestValidateIntentAcceptsWellFormedIntent(t *testing.T) {
	intent := persistence.Intent{
		Mode: "standby", Domain: "general", Urgency: "low",
		TimestampUTC: "2026-01-01T00:00:00.000000Z",
		ProposedActions: []persistence.ProposedAction{
			{SafetyLevel: "read_only", TimeoutMS: 1000, Confidence: 0.9},
		},
	}
	if err := ValidateIntent(intent); err != nil {
		t.Fatalf("expected well-formed intent to validate, got %v", err)
	}
}

func TestDecodeStrictRejectsUnknownKeys(t *testing.T) {
	type payload struct {
		A string `json:"a"`
	}
	var p payload
	err := DecodeStrict(strings.NewReader(`{"a":"x","b":"y"}`), &p)
	if err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}
