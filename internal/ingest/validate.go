// Package ingest schema-validates incoming intent, state, feedback, and
// confirm payloads before they reach the Policy Engine, Router, or Executor
// (spec.md §4.H). These are closed-set and range checks simple enough that a
// schema library would be pure overhead — see DESIGN.md.
package ingest

import (
	"fmt"
	"regexp"
	"time"
)

var (
	modeSet        = set("game", "work", "standby", "tutor")
	domainSet      = set("general", "navigation", "combat", "trade", "exploration", "engineering", "social", "entertainment")
	urgencySet     = set("low", "normal", "high")
	safetyLevelSet = set("read_only", "low_risk", "high_risk")
	conditionSet   = set("STANDBY", "GAME", "WORK", "TUTOR", "RESTRICTED", "DEGRADED")

	stateKeyPattern = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9_]+)+$`)
	stateKeyPrefixes = []string{"ed.", "music.", "hw.", "policy.", "ai."}
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// ValidationError is a human-readable 400-class error, per spec.md §7.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateMode enforces the closed mode set.
func ValidateMode(mode string) error {
	if _, ok := modeSet[mode]; !ok {
		return invalid("mode %q is not one of game, work, standby, tutor", mode)
	}
	return nil
}

// ValidateDomain enforces the closed domain set.
func ValidateDomain(domain string) error {
	if _, ok := domainSet[domain]; !ok {
		return invalid("domain %q is not a known domain", domain)
	}
	return nil
}

// ValidateUrgency enforces the closed urgency set.
func ValidateUrgency(urgency string) error {
	if _, ok := urgencySet[urgency]; !ok {
		return invalid("urgency %q is not one of low, normal, high", urgency)
	}
	return nil
}

// ValidateSafetyLevel enforces the closed safety_level set.
func ValidateSafetyLevel(level string) error {
	if _, ok := safetyLevelSet[level]; !ok {
		return invalid("safety_level %q is not one of read_only, low_risk, high_risk", level)
	}
	return nil
}

// ValidateWatchCondition enforces the closed watch_condition set.
func ValidateWatchCondition(condition string) error {
	if _, ok := conditionSet[condition]; !ok {
		return invalid("watch_condition %q is not one of STANDBY, GAME, WORK, TUTOR, RESTRICTED, DEGRADED", condition)
	}
	return nil
}

// ValidateTimestampUTC accepts "...Z" or "...+00:00" ISO-8601 forms.
func ValidateTimestampUTC(value string) error {
	if _, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return nil
	}
	if _, err := time.Parse("2006-01-02T15:04:05.999999Z", value); err == nil {
		return nil
	}
	return invalid("timestamp_utc %q is not valid ISO-8601", value)
}

// ValidateStateKey enforces the naming invariant in spec.md §4.A.
func ValidateStateKey(key string) error {
	if !stateKeyPattern.MatchString(key) {
		return invalid("state key %q does not match ^[a-z0-9]+(\\.[a-z0-9_]+)+$", key)
	}
	for _, prefix := range stateKeyPrefixes {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return nil
		}
	}
	return invalid("state key %q does not start with a known prefix (ed., music., hw., policy., ai.)", key)
}

// ValidateProposedActionsLen enforces the ≤10 proposed_actions size limit.
func ValidateProposedActionsLen(n int) error {
	if n > 10 {
		return invalid("proposed_actions has %d entries, exceeds the limit of 10", n)
	}
	return nil
}

// ValidateUnitInterval enforces a value in [0,1], used for stt_confidence and
// confidence fields.
func ValidateUnitInterval(fieldName string, value float64) error {
	if value < 0 || value > 1 {
		return invalid("%s=%v is outside [0,1]", fieldName, value)
	}
	return nil
}

// ValidateTimeoutMS enforces [100, 120000].
func ValidateTimeoutMS(ms int) error {
	if ms < 100 || ms > 120000 {
		return invalid("timeout_ms=%d is outside [100,120000]", ms)
	}
	return nil
}

// ValidateRating enforces rating ∈ {-1, 1}.
func ValidateRating(rating int) error {
	if rating != -1 && rating != 1 {
		return invalid("rating=%d is not one of -1, 1", rating)
	}
	return nil
}
