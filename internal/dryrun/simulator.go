// Package dryrun fabricates a plausible execution result for a tool call
// without touching the actuator. Used by the Action Executor whenever
// dry_run=true or no real dispatcher is registered for a tool. Adapted from
// the teacher's internal/ai/dryrun command simulator, generalized from
// shell-command regexes to this system's (tool_name, parameters) tools.
package dryrun

import (
	"fmt"
)

// Result mirrors what a real tool dispatcher would return, plus metadata
// about the simulation itself.
type Result struct {
	Output      string `json:"output"`
	WouldDo     string `json:"would_do"`
	Reversible  bool   `json:"reversible"`
	RollbackHint string `json:"rollback_hint,omitempty"`
	Simulated   bool   `json:"simulated"`
}

type toolPattern struct {
	toolName string
	generate func(parameters map[string]interface{}) Result
}

// Simulator fabricates Results keyed by canonical tool name.
type Simulator struct {
	patterns map[string]toolPattern
}

// NewSimulator builds a Simulator covering the tool surface named in
// configs/standing_orders.json's tool_policies and canonicalization table.
func NewSimulator() *Simulator {
	s := &Simulator{patterns: make(map[string]toolPattern)}
	s.register("input.keypress", func(p map[string]interface{}) Result {
		key := stringParam(p, "key")
		return Result{
			Output:     fmt.Sprintf("[SIMULATED] would send keypress %q to foreground process", key),
			WouldDo:    fmt.Sprintf("Send keypress %q", key),
			Reversible: false,
		}
	})
	s.register("sammi.set_lights", func(p map[string]interface{}) Result {
		scene := stringParam(p, "scene")
		return Result{
			Output:       fmt.Sprintf("[SIMULATED] would set lighting scene %q via SAMMI webhook", scene),
			WouldDo:      fmt.Sprintf("Set lighting scene %q", scene),
			Reversible:   true,
			RollbackHint: "restore previous lighting scene",
		}
	})
	s.register("sammi.music_next", func(p map[string]interface{}) Result {
		return Result{Output: "[SIMULATED] would skip to next track", WouldDo: "Skip to next track", Reversible: true, RollbackHint: "sammi.music_prev"}
	})
	s.register("sammi.music_prev", func(p map[string]interface{}) Result {
		return Result{Output: "[SIMULATED] would go to previous track", WouldDo: "Go to previous track", Reversible: true, RollbackHint: "sammi.music_next"}
	})
	s.register("sammi.music_play", func(p map[string]interface{}) Result {
		return Result{Output: "[SIMULATED] would resume playback", WouldDo: "Resume playback", Reversible: true, RollbackHint: "sammi.music_pause"}
	})
	s.register("sammi.music_pause", func(p map[string]interface{}) Result {
		return Result{Output: "[SIMULATED] would pause playback", WouldDo: "Pause playback", Reversible: true, RollbackHint: "sammi.music_play"}
	})
	s.register("edparser.start", func(p map[string]interface{}) Result {
		return Result{Output: "[SIMULATED] would start the journal-tailing adapter", WouldDo: "Start journal adapter", Reversible: true, RollbackHint: "edparser.stop"}
	})
	s.register("edparser.stop", func(p map[string]interface{}) Result {
		return Result{Output: "[SIMULATED] would stop the journal-tailing adapter", WouldDo: "Stop journal adapter", Reversible: true, RollbackHint: "edparser.start"}
	})
	s.register("twitch.redeem", func(p map[string]interface{}) Result {
		reward := stringParam(p, "reward")
		return Result{
			Output:     fmt.Sprintf("[SIMULATED] would fulfill Twitch channel-point redemption %q", reward),
			WouldDo:    fmt.Sprintf("Fulfill redemption %q", reward),
			Reversible: false,
		}
	})
	s.register("web.search", func(p map[string]interface{}) Result {
		query := stringParam(p, "query")
		return Result{
			Output:     fmt.Sprintf("[SIMULATED] would search the web for %q and return a summary", query),
			WouldDo:    fmt.Sprintf("Search the web for %q", query),
			Reversible: true,
		}
	})
	return s
}

func (s *Simulator) register(toolName string, generate func(map[string]interface{}) Result) {
	s.patterns[toolName] = toolPattern{toolName: toolName, generate: generate}
}

// Simulate returns a simulated Result for a canonical tool name and its
// parameters. Unknown tools get a generic description rather than an error —
// dry-run must never fail a request that a real dispatcher might still
// handle.
func (s *Simulator) Simulate(canonicalTool string, parameters map[string]interface{}) Result {
	if p, ok := s.patterns[canonicalTool]; ok {
		result := p.generate(parameters)
		result.Simulated = true
		return result
	}
	return Result{
		Output:     fmt.Sprintf("[SIMULATED] would invoke %s with %v", canonicalTool, parameters),
		WouldDo:    fmt.Sprintf("Invoke %s", canonicalTool),
		Reversible: false,
		Simulated:  true,
	}
}

func stringParam(p map[string]interface{}, key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
