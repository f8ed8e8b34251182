package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/safety"
)

// SafetyGatedDispatcher wraps a real Dispatcher with a last-resort
// belt-and-suspenders check: any tool parameter that embeds a literal shell
// command or filesystem path is run through the teacher-derived
// safety.IsBlockedCommand/IsSensitivePath heuristics before reaching the
// wrapped dispatcher. This never substitutes for Standing Orders — the
// Router has already produced an ALLOW decision by the time an action
// reaches here — it checks every string parameter of every approved action,
// whatever its safety_level, and can only turn such an action into an
// execution error, never bypass a deny.
type SafetyGatedDispatcher struct {
	inner Dispatcher
}

func NewSafetyGatedDispatcher(inner Dispatcher) *SafetyGatedDispatcher {
	return &SafetyGatedDispatcher{inner: inner}
}

func (d *SafetyGatedDispatcher) Execute(ctx context.Context, toolName string, parameters map[string]interface{}, requestID, actionID string, dryRun bool, timeout time.Duration) (DispatchResult, error) {
	for key, v := range parameters {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if safety.IsBlockedCommand(s) {
			return DispatchResult{}, fmt.Errorf("parameter %q matches a blocked command pattern", key)
		}
		if ok, reason := safety.IsSensitivePath(s); ok {
			return DispatchResult{}, fmt.Errorf("parameter %q references a sensitive path: %s", key, reason)
		}
		if ok, reason := safety.CommandTouchesSensitivePath(s); ok {
			return DispatchResult{}, fmt.Errorf("parameter %q %s", key, reason)
		}
	}
	return d.inner.Execute(ctx, toolName, parameters, requestID, actionID, dryRun, timeout)
}
