package policy

import (
	"strings"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/standingorders"
)

// Evaluate runs the full decision pipeline described in spec.md §4.B,
// short-circuiting at the first deny. Everything here runs under Engine's
// single mutex: no I/O happens in this call path (maybeReload only stats
// and, on a changed mtime, reads+parses a local file — it's the one
// exception to "no I/O under the lock" that spec.md §5 explicitly allows,
// since it's the mechanism mtime-based reload requires).
func (e *Engine) Evaluate(req ActionRequest) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.maybeReload()

	// Step 1: validate.
	if strings.TrimSpace(req.WatchCondition) == "" {
		return denyDecision(DenyPolicyInvalid, "watch_condition is required")
	}
	if e.doc.Defaults.RequireIncidentID && strings.TrimSpace(req.IncidentID) == "" {
		return denyDecision(DenyPolicyInvalid, "incident_id is required by policy defaults")
	}

	// Step 2: resolve condition.
	condName := strings.ToUpper(strings.TrimSpace(req.WatchCondition))
	cond, err := standingorders.ResolveCondition(e.doc, condName)
	if err != nil {
		return denyDecision(DenyPolicyInvalid, err.Error())
	}

	canonical := standingorders.Canonicalize(req.ToolName)

	// Step 3: explicit deny.
	if standingorders.AnyMatch(cond.DenyTools, canonical) {
		return denyDecision(DenyExplicitlyDenied, "tool is explicitly denied in "+condName)
	}

	// Step 4: allow-list.
	if len(cond.AllowedTools) > 0 && !standingorders.AnyMatch(cond.AllowedTools, canonical) {
		return denyDecision(DenyNotAllowedInCondition, "tool is not in the allow-list for "+condName)
	}

	toolPolicy := e.doc.LookupToolPolicy(canonical)

	// Step 5: STT gating.
	sttLow := req.STTConfidence != nil && *req.STTConfidence < e.doc.Defaults.STTMinConfidence
	if cond.GuardRails.STTRequiresConfidenceForInput && canonical == "input.keypress" && sttLow {
		return denyDecision(DenyLowSTTConfidence, "speech confidence below threshold for input.keypress")
	}
	if containsString(toolPolicy.DenyIf, "stt_confidence_low") && sttLow {
		return denyDecision(DenyLowSTTConfidence, "speech confidence below threshold per tool policy")
	}

	// Step 6: foreground gating.
	if len(cond.GuardRails.ForegroundProcessMustBe) > 0 &&
		(canonical == "input.keypress" || containsString(toolPolicy.Requires, "foreground_ok")) {
		if !matchesForegroundCaseInsensitive(cond.GuardRails.ForegroundProcessMustBe, req.ForegroundProcess) {
			return denyDecision(DenyForegroundMismatch, "foreground process does not match required set")
		}
	}
	if e.doc.Defaults.UIForegroundRequiredInput && canonical == "input.keypress" {
		if strings.TrimSpace(req.ForegroundProcess) == "" {
			return denyDecision(DenyForegroundMismatch, "foreground process is required for input.keypress")
		}
	}

	// Step 7: rate limiting. Both buckets are checked (and, if passing,
	// recorded) so that §8's "always surface remaining" holds even when two
	// limits apply to the same tool.
	var remaining *int
	if canonical == "input.keypress" && cond.GuardRails.MaxKeypressPerMinute > 0 {
		key := bucketKey(condName, canonical, "guardrail")
		ok, rem := e.windows.allow(key, cond.GuardRails.MaxKeypressPerMinute, req.NowTS)
		if !ok {
			return denyDecision(DenyRateLimit, "max_keypress_per_minute exceeded")
		}
		remaining = &rem
	}
	if toolPolicy.RateLimitPerMin > 0 {
		key := bucketKey(condName, canonical, "tool_policy")
		ok, rem := e.windows.allow(key, toolPolicy.RateLimitPerMin, req.NowTS)
		if !ok {
			return denyDecision(DenyRateLimit, "rate_limit_per_minute exceeded")
		}
		remaining = &rem
	}

	// Step 8: confirmation requirement.
	requiresConfirmation := standingorders.AnyMatch(cond.Confirmation.Always, canonical) ||
		(sttLow && standingorders.AnyMatch(cond.Confirmation.WhenLowConfidence, canonical)) ||
		cond.GuardRails.RequireConfirmationForAll ||
		containsString(toolPolicy.Requires, "recent_user_confirm")

	if requiresConfirmation {
		window := e.doc.Defaults.ConfirmWindow()
		confirmBy := req.NowTS + window
		record, found := e.ledger.mostRecent(req.IncidentID, canonical, req.UserConfirmToken)
		if !found {
			d := needsConfirmationDecision(DenyNeedsConfirmation, "user confirmation required", confirmBy, "")
			if remaining != nil {
				d.Constraints.RateLimitRemaining = remaining
			}
			return d
		}
		if req.NowTS-record.TS > window {
			d := needsConfirmationDecision(DenyConfirmationExpired, "user confirmation has expired", confirmBy, "")
			if remaining != nil {
				d.Constraints.RateLimitRemaining = remaining
			}
			return d
		}
	}

	// Step 9: allow.
	d := allowDecision()
	if remaining != nil {
		d.Constraints.RateLimitRemaining = remaining
	}
	return d
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func matchesForegroundCaseInsensitive(allowed []string, foreground string) bool {
	foreground = strings.TrimSpace(foreground)
	if foreground == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), foreground) {
			return true
		}
	}
	return false
}
