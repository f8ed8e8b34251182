package advisory

import "errors"

// errNoJSONObject is returned by extractJSONObject when the input contains
// no balanced brace run at all.
var errNoJSONObject = errors.New("advisory: no JSON object found in response")

// extractJSONObject pulls the first balanced top-level {...} object out of a
// raw model response. Local LLM planners routinely wrap their JSON in prose
// ("Sure, here's the plan:\n{...}\nLet me know if...") or fence it in
// ```json blocks, so the Advisory Client cannot assume response == JSON.
//
// This is a hand-rolled brace/string/escape scanner rather than a regex:
// braces inside quoted string values (e.g. a parameter value containing
// "{}") must not perturb the depth count, and a regex can't track that
// without effectively re-implementing this scanner anyway. Grounded
// directly on spec.md §4.F/§9's description of tolerant extraction — no
// retrieved example repo carries a partial-JSON extractor to imitate.
func extractJSONObject(raw string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}

	if start == -1 {
		return "", errNoJSONObject
	}
	return "", errors.New("advisory: unterminated JSON object in response")
}
