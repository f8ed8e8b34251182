// Package actions implements the Action Executor (spec.md §4.E): the state
// machine that drives queued proposed actions through approved to a terminal
// status, invoking the Tool Router for every gating decision.
package actions

import (
	"context"
	"time"
)

// DispatchResult is what a real tool dispatcher (the actuator side) returns
// for a single invocation.
type DispatchResult struct {
	Output  map[string]interface{}
	Details string
}

// Dispatcher is the tool dispatcher interface the core is oblivious to the
// semantics of, grounded on the teacher's agentexec.ExecuteCommandPayload
// (request id, target, timeout) generalized to this spec's
// (tool_name, parameters, request_id, action_id, dry_run) shape (spec.md §6).
type Dispatcher interface {
	Execute(ctx context.Context, toolName string, parameters map[string]interface{}, requestID, actionID string, dryRun bool, timeout time.Duration) (DispatchResult, error)
}
