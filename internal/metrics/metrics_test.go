package metrics

import "testing"

func TestMetricsRecording(t *testing.T) {
	m := Get()
	m.RecordPolicyDecision("ALLOW", "input.keypress")
	m.RecordActionTransition("approved")
	m.SetBreakerState("advisory-phi3", 0)
	m.ObserveAdvisoryLatencySeconds(0.25)
}

func TestGetReturnsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Fatalf("expected Get to return the same instance across calls")
	}
}
