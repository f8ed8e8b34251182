package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

func testFallback(requestID string) persistence.Intent {
	return persistence.Intent{
		SchemaVersion:      "1.0",
		RequestID:          requestID,
		TimestampUTC:       "2026-01-01T00:00:00.000000Z",
		Mode:               "standby",
		Domain:             "general",
		Urgency:            "low",
		NeedsTools:         false,
		NeedsClarification: true,
		ClarificationQuestions: []string{"Please confirm the exact action you want me to take."},
		ProposedActions:    []persistence.ProposedAction{},
		ResponseText:       "I need clarification before taking any action.",
	}
}

func TestStubModeEchoesFallback(t *testing.T) {
	c := New(Config{Mode: ModeStub})
	proposal, meta := c.GenerateIntentProposal(context.Background(), "anything", testFallback("req-1"))
	if !meta.UsedFallback {
		t.Fatalf("expected stub mode to report UsedFallback")
	}
	if proposal.RequestID != "req-1" {
		t.Fatalf("expected fallback to be echoed verbatim, got %+v", proposal)
	}
}

func TestExtractJSONObjectIgnoresBracesInStrings(t *testing.T) {
	raw := `Sure, here you go:\n{"a": "looks like {this} but it's a string", "b": 1}\nhope that helps`
	obj, err := extractJSONObject(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
		t.Fatalf("extracted text was not valid JSON: %v, got %q", err, obj)
	}
	if decoded["b"].(float64) != 1 {
		t.Fatalf("expected field b=1, got %v", decoded["b"])
	}
}

func TestExtractJSONObjectNoObjectReturnsError(t *testing.T) {
	if _, err := extractJSONObject("no json here at all"); err == nil {
		t.Fatalf("expected error when no JSON object present")
	}
}

func TestPhi3ModeNonJSONOutputFallsBackToSafeNoAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "I think you should restart the game but I'm not totally sure"})
	}))
	defer server.Close()

	c := New(Config{Mode: ModePhi3, EndpointURL: server.URL, Model: "phi3", Timeout: 2 * time.Second})
	proposal, meta := c.GenerateIntentProposal(context.Background(), "what should I do", testFallback("req-2"))

	if !meta.UsedFallback {
		t.Fatalf("expected non-JSON planner output to trigger fallback")
	}
	if proposal.NeedsTools {
		t.Fatalf("safeNoAction must never set needs_tools=true")
	}
	if len(proposal.ProposedActions) != 0 {
		t.Fatalf("safeNoAction must carry zero proposed actions, got %d", len(proposal.ProposedActions))
	}
	if !proposal.NeedsClarification {
		t.Fatalf("safeNoAction must set needs_clarification=true")
	}
}

func TestPhi3ModeValidJSONProposalIsAccepted(t *testing.T) {
	validIntent := map[string]interface{}{
		"schema_version":      "1.0",
		"request_id":          "req-3",
		"timestamp_utc":       "2026-01-01T00:00:00.000000Z",
		"mode":                "game",
		"domain":              "combat",
		"urgency":             "normal",
		"needs_tools":         true,
		"needs_clarification": false,
		"proposed_actions": []map[string]interface{}{
			{
				"action_id":    "a1",
				"tool_name":    "input.keypress",
				"parameters":   map[string]interface{}{"key": "f"},
				"safety_level": "low_risk",
				"timeout_ms":   2000,
				"confidence":   0.8,
			},
		},
		"response_text": "Firing weapons now.",
	}
	encoded, err := json.Marshal(validIntent)
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Here's the plan:\n" + string(encoded) + "\nlet me know"})
	}))
	defer server.Close()

	c := New(Config{Mode: ModePhi3, EndpointURL: server.URL, Model: "phi3", Timeout: 2 * time.Second})
	proposal, meta := c.GenerateIntentProposal(context.Background(), "attack", testFallback("req-3"))

	if meta.UsedFallback {
		t.Fatalf("expected well-formed planner output to be accepted, got validation error %q", meta.ValidationErr)
	}
	if proposal.RequestID != "req-3" || len(proposal.ProposedActions) != 1 {
		t.Fatalf("unexpected decoded proposal: %+v", proposal)
	}
}

func TestPhi3ModeTransportErrorFallsBackToSafeNoAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{Mode: ModePhi3, EndpointURL: server.URL, Model: "phi3", Timeout: 2 * time.Second})
	proposal, meta := c.GenerateIntentProposal(context.Background(), "help", testFallback("req-4"))

	if !meta.UsedFallback {
		t.Fatalf("expected transport error to trigger fallback")
	}
	errText := proposal.Retrieval["llm_validation_error"].(string)
	if !strings.HasPrefix(errText, "llm_request_error:") {
		t.Fatalf("expected llm_request_error: prefix on transport failure, got %q", errText)
	}
	if !strings.Contains(errText, "500") {
		t.Fatalf("expected retrieval.llm_validation_error to record the failure, got %+v", proposal.Retrieval)
	}
}
