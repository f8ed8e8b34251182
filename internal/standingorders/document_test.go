package standingorders

import "testing"

func TestLoadBundledDocument(t *testing.T) {
	doc, mtime, err := Load("../../configs/standing_orders.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mtime.IsZero() {
		t.Fatal("expected non-zero mtime")
	}
	for _, name := range RequiredConditions {
		if _, ok := doc.WatchConditions[name]; !ok {
			t.Errorf("missing required condition %q", name)
		}
	}
}

func TestResolveConditionInheritance(t *testing.T) {
	doc, _, err := Load("../../configs/standing_orders.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	game, err := ResolveCondition(doc, "GAME")
	if err != nil {
		t.Fatalf("ResolveCondition: %v", err)
	}
	if !AnyMatch(game.Confirmation.Always, "twitch.redeem") {
		t.Errorf("expected GAME to inherit STANDBY's twitch.redeem confirmation requirement")
	}
	if game.GuardRails.MaxKeypressPerMinute != 30 {
		t.Errorf("expected GAME's own guardrail to win over inherited (empty) value, got %d", game.GuardRails.MaxKeypressPerMinute)
	}
}

func TestResolveConditionCycleDetected(t *testing.T) {
	doc := &Document{
		WatchConditions: map[string]*Condition{
			"STANDBY":    {},
			"GAME":       {},
			"WORK":       {},
			"TUTOR":      {},
			"RESTRICTED": {},
			"DEGRADED":   {},
			"A":          {Inherits: "B"},
			"B":          {Inherits: "A"},
		},
	}
	if _, err := ResolveCondition(doc, "A"); err == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestResolveConditionMissingParentIsEmpty(t *testing.T) {
	doc := &Document{
		WatchConditions: map[string]*Condition{
			"STANDBY": {Inherits: "NOPE", AllowedTools: []string{"music.*"}},
		},
	}
	cond, err := ResolveCondition(doc, "STANDBY")
	if err != nil {
		t.Fatalf("missing parent should not error: %v", err)
	}
	if len(cond.AllowedTools) != 1 || cond.AllowedTools[0] != "music.*" {
		t.Errorf("expected child's own allowed_tools preserved, got %v", cond.AllowedTools)
	}
}

func TestLookupToolPolicyMatchOrEmpty(t *testing.T) {
	doc, _, err := Load("../../configs/standing_orders.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := doc.LookupToolPolicy("web.search")
	if p.RateLimitPerMin != 12 {
		t.Errorf("expected web.search rate_limit_per_minute=12, got %d", p.RateLimitPerMin)
	}
	empty := doc.LookupToolPolicy("sammi.set_lights")
	if empty.RateLimitPerMin != 0 {
		t.Errorf("expected empty policy for unmatched tool, got %+v", empty)
	}
}

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"keypress":          "input.keypress",
		"set_lights":        "sammi.set_lights",
		"music_next":        "sammi.music_next",
		"edparser_start":    "edparser.start",
		"  keypress  ":      "input.keypress",
		"already.dotted.x":  "already.dotted.x",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGlobMatchCaseInsensitive(t *testing.T) {
	if !GlobMatch("sammi.*", "SAMMI.Set_Lights") {
		t.Error("expected case-insensitive glob match")
	}
	if GlobMatch("sammi.*", "input.keypress") {
		t.Error("expected no match")
	}
}
