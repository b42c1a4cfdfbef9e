package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/classify"
	"github.com/crateops/rolling-restart/internal/model"
)

const (
	SignalPauseRestart  = "pause_restart"
	SignalResumeRestart = "resume_restart"
	SignalCancelRestart = "cancel_restart"
	QueryGetStatus      = "get_status"
)

// ClusterRestartInput drives one Cluster-Restart child workflow.
type ClusterRestartInput struct {
	Cluster model.ClusterDescriptor
	Options model.RestartOptions
}

// ClusterRestartStatus is the value returned by the get_status query.
type ClusterRestartStatus struct {
	CurrentPod         string
	PodsCompleted      []string
	SkippedPods        []string
	Paused             bool
	Cancelled          bool
	ForceRestartActive bool
}

// clusterRestartState is the mutable state the signal handlers and the
// get_status query observe; signals are latches, not queues (§5, §9): a
// redelivered force_restart/cancel_restart is a no-op, pause/resume toggle.
type clusterRestartState struct {
	currentPod   string
	completed    []string
	skipped      []string
	paused       bool
	cancelled    bool
	forced       bool
	forceReason  string
	pauseReason  string
	cancelReason string

	// maintenanceChild is set only while the Maintenance-Gate child is
	// running, so a force_restart received by this workflow (the only
	// workflow ID an operator ever signals) can be relayed into it — the
	// gate listens on its own workflow ID's signal channel, not this one's.
	maintenanceChild workflow.ChildWorkflowFuture
}

// ClusterRestart implements the full state sequence of §4.6.
func ClusterRestart(ctx workflow.Context, in ClusterRestartInput) (model.ClusterRestartRecord, error) {
	state := &clusterRestartState{}
	startedAt := workflow.Now(ctx).UTC()
	record := model.ClusterRestartRecord{
		ClusterName: in.Cluster.Name, TotalPodCount: len(in.Cluster.Pods), StartedAt: startedAt,
	}

	registerClusterRestartHandlers(ctx, state)

	fail := func(err error) (model.ClusterRestartRecord, error) {
		record.Success = false
		record.Error = err.Error()
		record.RestartedPods = state.completed
		record.SkippedPods = state.skipped
		record.Cancelled = state.cancelled
		record.CompletedAt = workflow.Now(ctx).UTC()
		record.Duration = record.CompletedAt.Sub(record.StartedAt)
		return record, nil // the parent catches failures and continues (§7)
	}

	// 1. MAINTENANCE_CHECK
	if !in.Options.IgnoreMaintenanceWindows && in.Options.MaintenanceConfigPath != "" {
		mctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID:          "maintenance-gate-" + in.Cluster.Name,
			WorkflowTaskTimeout: 2 * time.Hour,
		})
		future := workflow.ExecuteChildWorkflow(mctx, MaintenanceGate, MaintenanceGateInput{
			ClusterName: in.Cluster.Name, ConfigPath: in.Options.MaintenanceConfigPath,
		})
		state.maintenanceChild = future
		if state.forced {
			_ = future.SignalChildWorkflow(ctx, SignalForceRestart, state.forceReason).Get(ctx, nil)
		}
		var gateResult MaintenanceGateResult
		err := future.Get(mctx, &gateResult)
		state.maintenanceChild = nil
		if err != nil {
			return fail(err)
		}
	}

	// 2. VALIDATION
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	})
	var validation activities.ValidateClusterResult
	if err := workflow.ExecuteActivity(actx, activities.NameValidateCluster, activities.ValidateClusterInput{
		Cluster: in.Cluster, SkipHookWarning: in.Options.SkipHookWarning,
	}).Get(actx, &validation); err != nil {
		return fail(err)
	}
	if !validation.IsValid {
		return fail(classify.New(classify.Validation, "cluster %s failed validation: %v", in.Cluster.Name, validation.Errors))
	}
	for _, w := range validation.Warnings {
		workflow.GetLogger(ctx).Warn("validation warning", "cluster", in.Cluster.Name, "warning", w)
	}

	// 3. INITIAL_HEALTH — reduced attempt budget, ~5 min.
	hctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowTaskTimeout: 5 * time.Minute})
	var initialHealth model.HealthObservation
	err := workflow.ExecuteChildWorkflow(hctx, HealthGate, HealthGateInput{
		Cluster: in.Cluster, DryRun: in.Options.DryRun, MaxAttempts: 5,
	}).Get(hctx, &initialHealth)
	if err != nil {
		// A failed child workflow never populates initialHealth (Temporal
		// leaves the result pointer zero-valued on error), so the last
		// observed symbol has to come back through the error itself.
		symbol, ok := classify.HealthSymbolFromError(err)
		if !ok || model.HealthSymbol(symbol) == model.HealthRed || model.HealthSymbol(symbol) == model.HealthUnreachable {
			return fail(err)
		}
		workflow.GetLogger(ctx).Warn("initial health not GREEN, proceeding", "cluster", in.Cluster.Name, "symbol", symbol)
	}

	// 4. POD_RESTARTS
	for i, pod := range in.Cluster.Pods {
		if state.cancelled {
			break
		}
		if state.paused {
			if err := waitWhilePaused(ctx, state); err != nil {
				return fail(err)
			}
			if state.cancelled {
				break
			}
		}

		state.currentPod = pod

		if in.Options.OnlyOnSuspendedNodes {
			var onSuspended bool
			sactx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{StartToCloseTimeout: 30 * time.Second})
			err := workflow.ExecuteActivity(sactx, activities.NameIsPodOnSuspendedNode, activities.IsPodOnSuspendedNodeInput{
				Pod: pod, Namespace: in.Cluster.Namespace,
			}).Get(sactx, &onSuspended)
			if err != nil || !onSuspended {
				state.skipped = append(state.skipped, pod)
				continue
			}
		}

		podCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowTaskTimeout: in.Options.PodReadyTimeout + 600*time.Second,
		})
		var podRecord model.PodRestartRecord
		err := workflow.ExecuteChildWorkflow(podCtx, PodRestart, PodRestartInput{
			Pod: pod, Cluster: in.Cluster, DryRun: in.Options.DryRun, PodReadyTimeout: in.Options.PodReadyTimeout,
		}).Get(podCtx, &podRecord)
		if err != nil {
			return fail(err)
		}
		state.completed = append(state.completed, pod)

		// Inter-pod gate: if not the last pod, stabilize then re-gate health.
		if i < len(in.Cluster.Pods)-1 {
			if err := workflow.Sleep(ctx, 5*time.Second); err != nil {
				return fail(err)
			}
			var gateObs model.HealthObservation
			igctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowTaskTimeout: 10 * time.Minute})
			if err := workflow.ExecuteChildWorkflow(igctx, HealthGate, HealthGateInput{
				Cluster: in.Cluster, DryRun: in.Options.DryRun,
			}).Get(igctx, &gateObs); err != nil {
				return fail(err)
			}
		}
	}
	state.currentPod = ""

	// 5. FINAL_HEALTH — iff restarted non-empty.
	if len(state.completed) > 0 {
		fhctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowTaskTimeout: 10 * time.Minute})
		var finalObs model.HealthObservation
		if err := workflow.ExecuteChildWorkflow(fhctx, HealthGate, HealthGateInput{
			Cluster: in.Cluster, DryRun: in.Options.DryRun,
		}).Get(fhctx, &finalObs); err != nil {
			return fail(err)
		}
	}

	// 6. COMPLETE
	record.RestartedPods = state.completed
	record.SkippedPods = state.skipped
	record.Cancelled = state.cancelled
	record.Success = !state.cancelled
	record.CompletedAt = workflow.Now(ctx).UTC()
	record.Duration = record.CompletedAt.Sub(record.StartedAt)
	return record, nil
}

// waitWhilePaused durably waits (max 24h) until resume or cancel, per §4.6
// state 4's pause-check.
func waitWhilePaused(ctx workflow.Context, state *clusterRestartState) error {
	ok, err := workflow.AwaitWithTimeout(ctx, 24*time.Hour, func() bool {
		return !state.paused || state.cancelled
	})
	if err != nil {
		return err
	}
	if !ok {
		return classify.New(classify.Transient, "pause exceeded the 24h wait bound")
	}
	return nil
}

// registerClusterRestartHandlers wires the signal latches and the
// read-only get_status query.
func registerClusterRestartHandlers(ctx workflow.Context, state *clusterRestartState) {
	_ = workflow.SetQueryHandler(ctx, QueryGetStatus, func() (ClusterRestartStatus, error) {
		return ClusterRestartStatus{
			CurrentPod:         state.currentPod,
			PodsCompleted:      state.completed,
			SkippedPods:        state.skipped,
			Paused:             state.paused,
			Cancelled:          state.cancelled,
			ForceRestartActive: state.forced,
		}, nil
	})

	forceCh := workflow.GetSignalChannel(ctx, SignalForceRestart)
	pauseCh := workflow.GetSignalChannel(ctx, SignalPauseRestart)
	resumeCh := workflow.GetSignalChannel(ctx, SignalResumeRestart)
	cancelCh := workflow.GetSignalChannel(ctx, SignalCancelRestart)

	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			selector := workflow.NewSelector(ctx)
			selector.AddReceive(forceCh, func(c workflow.ReceiveChannel, more bool) {
				var reason string
				c.Receive(ctx, &reason)
				if !state.forced {
					state.forced = true
					state.forceReason = reason
				}
				// Forward transparently to a Maintenance-Gate that is
				// currently waiting on its own signal channel (§4.6 state 1).
				if state.maintenanceChild != nil {
					_ = state.maintenanceChild.SignalChildWorkflow(ctx, SignalForceRestart, reason).Get(ctx, nil)
				}
			})
			selector.AddReceive(pauseCh, func(c workflow.ReceiveChannel, more bool) {
				var reason string
				c.Receive(ctx, &reason)
				state.paused = true
				state.pauseReason = reason
			})
			selector.AddReceive(resumeCh, func(c workflow.ReceiveChannel, more bool) {
				var empty string
				c.Receive(ctx, &empty)
				state.paused = false
			})
			selector.AddReceive(cancelCh, func(c workflow.ReceiveChannel, more bool) {
				var reason string
				c.Receive(ctx, &reason)
				state.cancelled = true
				state.cancelReason = reason
			})
			selector.Select(ctx)
		}
	})
}
