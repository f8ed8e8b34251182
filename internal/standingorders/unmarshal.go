package standingorders

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// docAlias avoids infinite recursion into Document's own UnmarshalJSON.
type docAlias struct {
	Version         string                 `json:"version"`
	Defaults        Defaults               `json:"defaults"`
	WatchConditions map[string]*Condition  `json:"watch_conditions"`
	ToolPolicies    json.RawMessage        `json:"tool_policies"`
}

// UnmarshalJSON preserves tool_policies document order, since the first
// matching glob pattern wins (spec: "ordered map from glob pattern →
// policy").
func (doc *Document) UnmarshalJSON(data []byte) error {
	var alias docAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("parsing standing orders: %w", err)
	}
	doc.Version = alias.Version
	doc.Defaults = alias.Defaults
	doc.WatchConditions = alias.WatchConditions
	if doc.WatchConditions == nil {
		doc.WatchConditions = map[string]*Condition{}
	}

	entries, err := orderedToolPolicies(alias.ToolPolicies)
	if err != nil {
		return err
	}
	doc.ToolPolicies = entries
	doc.rawToolPolicies = make(map[string]*ToolPolicy, len(entries))
	for _, e := range entries {
		doc.rawToolPolicies[e.Pattern] = e.Policy
	}
	return nil
}

// orderedToolPolicies walks the raw JSON object token-by-token so that
// pattern order is preserved (Go maps are unordered).
func orderedToolPolicies(raw json.RawMessage) ([]ToolPolicyEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing tool_policies: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("tool_policies must be a JSON object")
	}

	var entries []ToolPolicyEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing tool_policies key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("tool_policies keys must be strings")
		}
		var policy ToolPolicy
		if err := dec.Decode(&policy); err != nil {
			return nil, fmt.Errorf("parsing tool_policies[%q]: %w", key, err)
		}
		entries = append(entries, ToolPolicyEntry{Pattern: key, Policy: &policy})
	}
	return entries, nil
}
