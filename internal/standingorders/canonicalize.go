package standingorders

import "strings"

// canonicalNames maps the short tool forms the speech/LLM front-end uses
// onto the dotted, namespaced form Standing Orders is written against.
// Unknown names pass through unchanged.
var canonicalNames = map[string]string{
	"keypress":        "input.keypress",
	"set_lights":      "sammi.set_lights",
	"music_next":      "sammi.music_next",
	"music_prev":      "sammi.music_prev",
	"music_play":      "sammi.music_play",
	"music_pause":     "sammi.music_pause",
	"edparser_start":  "edparser.start",
	"edparser_stop":   "edparser.stop",
	"twitch_redeem":   "twitch.redeem",
	"web_search":      "web.search",
}

// Canonicalize converts a short tool name to its dotted form, trimming
// surrounding whitespace first. Names already in dotted form, or unknown
// short names, are returned unchanged (trimmed).
func Canonicalize(toolName string) string {
	trimmed := strings.TrimSpace(toolName)
	if full, ok := canonicalNames[trimmed]; ok {
		return full
	}
	return trimmed
}
