package standingorders

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Load reads and parses a Standing Orders document from path, validating its
// structural invariants and that every watch_condition's inherits chain
// resolves without cycles.
func Load(path string) (*Document, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading standing orders %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat standing orders %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, &InvalidError{Reason: err.Error()}
	}
	if err := doc.Validate(); err != nil {
		return nil, time.Time{}, err
	}
	for _, name := range doc.sortedConditionNames() {
		if _, err := ResolveCondition(&doc, name); err != nil {
			return nil, time.Time{}, err
		}
	}
	return &doc, info.ModTime(), nil
}
