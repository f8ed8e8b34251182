package actions

import (
	"context"
	"time"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/dryrun"
)

// DryRunDispatcher always fabricates a result via dryrun.Simulator, never
// touching a real actuator. Used whenever dry_run=true or no real dispatcher
// is registered for a tool.
type DryRunDispatcher struct {
	sim *dryrun.Simulator
}

func NewDryRunDispatcher() *DryRunDispatcher {
	return &DryRunDispatcher{sim: dryrun.NewSimulator()}
}

func (d *DryRunDispatcher) Execute(_ context.Context, toolName string, parameters map[string]interface{}, _, _ string, _ bool, _ time.Duration) (DispatchResult, error) {
	result := d.sim.Simulate(toolName, parameters)
	return DispatchResult{
		Output: map[string]interface{}{
			"output":        result.Output,
			"would_do":      result.WouldDo,
			"reversible":    result.Reversible,
			"rollback_hint": result.RollbackHint,
			"simulated":     result.Simulated,
		},
	}, nil
}
