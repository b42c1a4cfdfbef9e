package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/model"
	"github.com/crateops/rolling-restart/internal/policy"
)

// PodRestartInput drives one Pod-Restart child workflow.
type PodRestartInput struct {
	Pod             string
	Cluster         model.ClusterDescriptor
	DryRun          bool
	PodReadyTimeout time.Duration
}

// PodRestart implements the strict state sequence of §4.5: any activity
// failure terminates the workflow in failure and no subsequent state runs.
func PodRestart(ctx workflow.Context, in PodRestartInput) (model.PodRestartRecord, error) {
	startedAt := workflow.Now(ctx).UTC()
	record := model.PodRestartRecord{
		Pod: in.Pod, Namespace: in.Cluster.Namespace, ClusterName: in.Cluster.Name,
		DryRun: in.DryRun, PodReadyTimeout: in.PodReadyTimeout, StartedAt: startedAt,
	}

	fail := func(err error) (model.PodRestartRecord, error) {
		record.Success = false
		record.Error = err.Error()
		record.CompletedAt = workflow.Now(ctx).UTC()
		record.Duration = record.CompletedAt.Sub(record.StartedAt)
		return record, err
	}

	// 1. HEALTH_CHECK — must observe GREEN before any delete may happen
	// (invariant I1).
	cwo := workflow.ChildWorkflowOptions{
		WorkflowTaskTimeout: 10 * time.Minute,
	}
	hctx := workflow.WithChildOptions(ctx, cwo)
	var obs model.HealthObservation
	if err := workflow.ExecuteChildWorkflow(hctx, HealthGate, HealthGateInput{
		Cluster: in.Cluster, DryRun: in.DryRun,
	}).Get(hctx, &obs); err != nil {
		return fail(err)
	}

	// 2. DECOMMISSION
	decommPolicy := policy.ForDecommission(in.Cluster.DrainTimeoutSeconds, in.Cluster.HasDCUtil)
	dctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: decommPolicy.StartToClose,
		HeartbeatTimeout:    decommPolicy.Heartbeat,
		RetryPolicy:         decommPolicy.RetryPolicy(),
	})
	var decomm activities.DecommissionPodResult
	if err := workflow.ExecuteActivity(dctx, activities.NameDecommissionPod, activities.DecommissionPodInput{
		Pod: in.Pod, Namespace: in.Cluster.Namespace, Cluster: in.Cluster, DryRun: in.DryRun,
	}).Get(dctx, &decomm); err != nil {
		return fail(err)
	}

	// 3. DELETE
	podOpsPolicy := policy.Lookup(policy.PodOperations)
	pctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: podOpsPolicy.StartToClose,
		HeartbeatTimeout:    podOpsPolicy.Heartbeat,
		RetryPolicy:         podOpsPolicy.RetryPolicy(),
	})
	var deleted bool
	if err := workflow.ExecuteActivity(pctx, activities.NameDeletePod, activities.DeletePodInput{
		Pod: in.Pod, Namespace: in.Cluster.Namespace, HasDCUtil: in.Cluster.HasDCUtil,
		DCUtilTimeoutSeconds: in.Cluster.DrainTimeoutSeconds, DryRun: in.DryRun,
	}).Get(pctx, &deleted); err != nil {
		return fail(err)
	}

	// 4. WAIT_READY
	waitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: in.PodReadyTimeout + time.Minute,
		HeartbeatTimeout:    podOpsPolicy.Heartbeat,
		RetryPolicy:         podOpsPolicy.RetryPolicy(),
	})
	var ready bool
	if err := workflow.ExecuteActivity(waitCtx, activities.NameWaitForPodReady, activities.WaitForPodReadyInput{
		Pod: in.Pod, Namespace: in.Cluster.Namespace, PodReadyTimeout: in.PodReadyTimeout, DryRun: in.DryRun,
	}).Get(waitCtx, &ready); err != nil {
		return fail(err)
	}

	// 5. RESET_ROUTING — only for the manual strategy; failure here is
	// uniquely non-fatal (§4.5 state 5, §7).
	if !in.Cluster.HasDCUtil {
		routingPolicy := policy.Lookup(policy.RoutingReset)
		rctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: routingPolicy.StartToClose,
			HeartbeatTimeout:    routingPolicy.Heartbeat,
			RetryPolicy:         routingPolicy.RetryPolicy(),
		})
		var resetOK bool
		err := workflow.ExecuteActivity(rctx, activities.NameResetClusterRoutingAllocation, activities.ResetRoutingInput{
			Pod: in.Pod, Namespace: in.Cluster.Namespace, Cluster: in.Cluster, DryRun: in.DryRun,
		}).Get(rctx, &resetOK)
		if err != nil {
			workflow.GetLogger(ctx).Warn(
				"routing allocation reset failed, manual recovery required",
				"pod", in.Pod, "cluster", in.Cluster.Name, "error", err,
				"manual_recovery_command", manualRecoveryCommand(in.Pod),
			)
		}
	}

	// 6. COMPLETE
	record.Success = true
	record.CompletedAt = workflow.Now(ctx).UTC()
	record.Duration = record.CompletedAt.Sub(record.StartedAt)
	return record, nil
}

func manualRecoveryCommand(pod string) string {
	return `kubectl exec ` + pod + ` -c crate -- curl --insecure -sS -H "Content-Type: application/json" ` +
		`-X POST https://127.0.0.1:4200/_sql -d '{"stmt": "set global transient \"cluster.routing.allocation.enable\" = \"all\""}'`
}
