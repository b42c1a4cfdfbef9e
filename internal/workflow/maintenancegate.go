package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/policy"
)

// SignalForceRestart is the latch signal name both the Maintenance-Gate and
// the Cluster-Restart workflow accept (§4.4, §4.6).
const SignalForceRestart = "force_restart"

// MaintenanceGateInput parameterizes one Maintenance-Gate invocation.
type MaintenanceGateInput struct {
	ClusterName string
	ConfigPath  string
}

// MaintenanceGateResult is the gate's terminal output.
type MaintenanceGateResult struct {
	ShouldWait bool
	Reason     string
}

// maintenanceRecheckInterval is the durable wait-condition timeout of §4.4.
const maintenanceRecheckInterval = 300 * time.Second

// MaintenanceGate blocks until the configured window admits the restart or
// a force_restart signal overrides it. There is no total deadline (§4.4).
func MaintenanceGate(ctx workflow.Context, in MaintenanceGateInput) (MaintenanceGateResult, error) {
	var forceReason string
	forced := false
	forceCh := workflow.GetSignalChannel(ctx, SignalForceRestart)

	entry := policy.Lookup(policy.MaintenanceCheck)
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: entry.StartToClose,
		HeartbeatTimeout:    entry.Heartbeat,
		RetryPolicy:         entry.RetryPolicy(),
	})

	for {
		if forced {
			return MaintenanceGateResult{ShouldWait: false, Reason: "Operator override: " + forceReason}, nil
		}

		var result activities.MaintenanceWindowCheckResult
		err := workflow.ExecuteActivity(actx, activities.NameCheckMaintenanceWindow, activities.MaintenanceWindowCheckInput{
			ClusterName: in.ClusterName,
			Now:         workflow.Now(ctx).UTC(),
			ConfigPath:  in.ConfigPath,
		}).Get(actx, &result)
		if err != nil {
			return MaintenanceGateResult{}, err
		}
		if !result.ShouldWait {
			return MaintenanceGateResult{ShouldWait: false, Reason: result.Reason}, nil
		}

		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		timerFuture := workflow.NewTimer(timerCtx, maintenanceRecheckInterval)
		selector := workflow.NewSelector(ctx)
		selector.AddFuture(timerFuture, func(f workflow.Future) {})
		selector.AddReceive(forceCh, func(c workflow.ReceiveChannel, more bool) {
			var reason string
			c.Receive(ctx, &reason)
			if !forced {
				forced = true
				forceReason = reason
			}
		})
		selector.Select(ctx)
		cancelTimer()

		if forced {
			return MaintenanceGateResult{ShouldWait: false, Reason: "Operator override: " + forceReason}, nil
		}
		// timer fired: loop and recompute the check with fresh now.
	}
}
