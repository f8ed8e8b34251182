package config

import "testing"

func TestLoadDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv("ENABLE_ACTUATORS", "")
	t.Setenv("DEFAULT_WATCH_CONDITION", "")
	t.Setenv("ADVISORY_TIMEOUT_SEC", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EnableActuators {
		t.Fatalf("expected EnableActuators to default false")
	}
	if cfg.DefaultWatchCondition != "STANDBY" {
		t.Fatalf("expected default watch condition STANDBY, got %s", cfg.DefaultWatchCondition)
	}
	if cfg.AdvisoryTimeout.Seconds() != 8 {
		t.Fatalf("expected default advisory timeout 8s, got %v", cfg.AdvisoryTimeout)
	}
}

func TestLoadParsesKeypressAllowedProcesses(t *testing.T) {
	t.Setenv("KEYPRESS_ALLOWED_PROCESSES", "EliteDangerous64.exe, notepad.exe ,")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KeypressAllowedProcesses) != 2 {
		t.Fatalf("expected 2 processes, got %v", cfg.KeypressAllowedProcesses)
	}
}

func TestLoadParsesBooleanToggle(t *testing.T) {
	t.Setenv("ENABLE_ACTUATORS", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.EnableActuators {
		t.Fatalf("expected EnableActuators=true")
	}
}
