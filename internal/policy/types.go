// Package policy implements the Standing Orders decision function: given an
// ActionRequest and the current policy document, decide ALLOW, DENY, or
// NEEDS-CONFIRMATION, applying STT/foreground/rate-limit/confirmation gates
// in the fixed order spec.md §4.B documents.
package policy

// ReasonCode is the closed taxonomy of decision outcomes.
type ReasonCode string

const (
	Allow                       ReasonCode = "ALLOW"
	DenyNotAllowedInCondition   ReasonCode = "DENY_NOT_ALLOWED_IN_CONDITION"
	DenyExplicitlyDenied        ReasonCode = "DENY_EXPLICITLY_DENIED"
	DenyNeedsConfirmation       ReasonCode = "DENY_NEEDS_CONFIRMATION"
	DenyConfirmationExpired     ReasonCode = "DENY_CONFIRMATION_EXPIRED"
	DenyLowSTTConfidence        ReasonCode = "DENY_LOW_STT_CONFIDENCE"
	DenyForegroundMismatch      ReasonCode = "DENY_FOREGROUND_MISMATCH"
	DenyRateLimit               ReasonCode = "DENY_RATE_LIMIT"
	DenyPolicyInvalid           ReasonCode = "DENY_POLICY_INVALID"
)

// ActionRequest is a single proposed tool invocation awaiting a decision.
type ActionRequest struct {
	IncidentID       string
	WatchCondition   string
	ToolName         string
	Args             map[string]interface{}
	Source           string
	STTConfidence    *float64
	ForegroundProcess string
	NowTS            float64
	UserConfirmToken string
}

// Constraints carries the supplementary data a Decision may surface.
type Constraints struct {
	RateLimitRemaining *int
	ConfirmByTS        *float64
	ConfirmToken       string
}

// Decision is the Policy Engine's verdict.
type Decision struct {
	Allowed              bool
	RequiresConfirmation bool
	DenyReasonCode       ReasonCode
	DenyReasonText       string
	Constraints          Constraints
}

func allowDecision() Decision {
	return Decision{Allowed: true, DenyReasonCode: Allow}
}

func denyDecision(code ReasonCode, text string) Decision {
	return Decision{Allowed: false, DenyReasonCode: code, DenyReasonText: text}
}

func needsConfirmationDecision(code ReasonCode, text string, confirmBy float64, token string) Decision {
	d := Decision{
		Allowed:              false,
		RequiresConfirmation: true,
		DenyReasonCode:       code,
		DenyReasonText:       text,
	}
	d.Constraints.ConfirmByTS = &confirmBy
	if token != "" {
		d.Constraints.ConfirmToken = token
	}
	return d
}
