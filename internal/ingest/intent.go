package ingest

import "github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"

// ValidateIntent applies every closed-set, range, and size check spec.md
// §4.H names against a decoded Intent, short-circuiting at the first
// failure — callers (the Advisory Client's contract check and the /intent
// HTTP handler) both route through here so the two paths can't drift.
func ValidateIntent(intent persistence.Intent) error {
	if err := ValidateMode(intent.Mode); err != nil {
		return err
	}
	if err := ValidateDomain(intent.Domain); err != nil {
		return err
	}
	if err := ValidateUrgency(intent.Urgency); err != nil {
		return err
	}
	if err := ValidateTimestampUTC(intent.TimestampUTC); err != nil {
		return err
	}
	if len(intent.ClarificationQuestions) > 3 {
		return invalid("clarification_questions has %d entries, exceeds the limit of 3", len(intent.ClarificationQuestions))
	}
	if err := ValidateProposedActionsLen(len(intent.ProposedActions)); err != nil {
		return err
	}
	for _, action := range intent.ProposedActions {
		if err := ValidateSafetyLevel(action.SafetyLevel); err != nil {
			return err
		}
		if err := ValidateTimeoutMS(action.TimeoutMS); err != nil {
			return err
		}
		if err := ValidateUnitInterval("confidence", action.Confidence); err != nil {
			return err
		}
	}
	return nil
}
