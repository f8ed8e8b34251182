package standingorders

import (
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
)

// GlobMatch reports whether pattern matches tool under fnmatch-style,
// case-insensitive glob semantics.
func GlobMatch(pattern, tool string) bool {
	return wildcard.Match(strings.ToLower(pattern), strings.ToLower(tool))
}

// AnyMatch reports whether any pattern in patterns matches tool.
func AnyMatch(patterns []string, tool string) bool {
	for _, p := range patterns {
		if GlobMatch(p, tool) {
			return true
		}
	}
	return false
}
