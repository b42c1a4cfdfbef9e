package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/classify"
	"github.com/crateops/rolling-restart/internal/model"
)

// OrchestratorInput parameterizes the top-level Multi-Cluster Orchestrator.
type OrchestratorInput struct {
	ClusterNames []string
	Options      model.RestartOptions
}

// OrchestratorStatus is the value returned by the get_status query. The
// workflow engine has no way to forward a query into a child workflow (only
// signals can be relayed that way), so this reports what the orchestrator
// itself can see rather than proxying the active cluster's detailed
// ClusterRestartStatus — an operator who needs pod-level detail queries the
// cluster's own deterministic workflow ID ("cluster-restart-<name>")
// directly instead.
type OrchestratorStatus struct {
	CurrentCluster string
	ClustersDone   int
	ClustersTotal  int
	SuccessCount   int
	FailureCount   int
	Paused         bool
	Cancelled      bool
}

// orchestratorState is the signal-latch state the top-level signal handlers
// and the get_status query observe, mirroring clusterRestartState.
type orchestratorState struct {
	currentCluster string
	clustersTotal  int
	clustersDone   int
	successCount   int
	failureCount   int
	paused         bool
	cancelled      bool
	forced         bool
	forceReason    string

	// activeChild is set only while a Cluster-Restart child is running, so
	// signals received on the orchestrator's own workflow ID — the only ID
	// an operator driving a multi-cluster restart ever knows — can be
	// relayed into it.
	activeChild workflow.ChildWorkflowFuture
}

// Orchestrator discovers clusters (or uses the names passed in) and spawns
// a Cluster-Restart child per cluster, sequentially, isolating failures
// (§4.7). It forwards the operator signals of §4.6 down to whichever
// Cluster-Restart child is currently active; its get_status query reports
// orchestrator-level progress only (see OrchestratorStatus).
func Orchestrator(ctx workflow.Context, in OrchestratorInput) (model.MultiClusterRestartRecord, error) {
	startedAt := workflow.Now(ctx).UTC()
	record := model.MultiClusterRestartRecord{StartedAt: startedAt}
	state := &orchestratorState{}

	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
	})
	var discovery activities.DiscoverClustersResult
	if err := workflow.ExecuteActivity(actx, activities.NameDiscoverClusters, activities.DiscoverClustersInput{
		ClusterNames:          in.ClusterNames,
		Kubeconfig:            in.Options.Kubeconfig,
		Context:               in.Options.Context,
		MaintenanceConfigPath: in.Options.MaintenanceConfigPath,
	}).Get(actx, &discovery); err != nil {
		return record, err
	}

	state.clustersTotal = len(discovery.Clusters)
	registerOrchestratorHandlers(ctx, state)

	for _, cluster := range discovery.Clusters {
		if state.cancelled {
			break
		}
		if state.paused {
			if err := waitWhileOrchestratorPaused(ctx, state); err != nil {
				return record, err
			}
			if state.cancelled {
				break
			}
		}

		state.currentCluster = cluster.Name
		cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "cluster-restart-" + cluster.Name,
		})
		future := workflow.ExecuteChildWorkflow(cctx, ClusterRestart, ClusterRestartInput{
			Cluster: cluster, Options: in.Options,
		})
		state.activeChild = future
		if state.forced {
			_ = future.SignalChildWorkflow(ctx, SignalForceRestart, state.forceReason).Get(ctx, nil)
		}
		var result model.ClusterRestartRecord
		err := future.Get(cctx, &result)
		state.activeChild = nil
		if err != nil {
			// Isolated failure: record it and continue with the next cluster.
			result = model.ClusterRestartRecord{
				ClusterName: cluster.Name, Success: false, Error: err.Error(),
				TotalPodCount: len(cluster.Pods),
			}
		}
		record.ClusterRecords = append(record.ClusterRecords, result)
		state.clustersDone++
		if result.Success {
			record.SuccessCount++
			state.successCount++
		} else {
			record.FailureCount++
			state.failureCount++
		}
	}
	state.currentCluster = ""

	record.CompletedAt = workflow.Now(ctx).UTC()
	record.TotalDuration = record.CompletedAt.Sub(record.StartedAt)
	return record, nil
}

// waitWhileOrchestratorPaused durably waits (max 24h) until resume or
// cancel, before starting the next cluster in sequence.
func waitWhileOrchestratorPaused(ctx workflow.Context, state *orchestratorState) error {
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

// registerOrchestratorHandlers wires the signal latches and the read-only
// get_status query, relaying force_restart/pause_restart/resume_restart/
// cancel_restart into the currently active Cluster-Restart child — the
// child itself cannot be signalled directly by an operator who only knows
// the orchestrator's workflow ID.
func registerOrchestratorHandlers(ctx workflow.Context, state *orchestratorState) {
	_ = workflow.SetQueryHandler(ctx, QueryGetStatus, func() (OrchestratorStatus, error) {
		return OrchestratorStatus{
			CurrentCluster: state.currentCluster,
			ClustersDone:   state.clustersDone,
			ClustersTotal:  state.clustersTotal,
			SuccessCount:   state.successCount,
			FailureCount:   state.failureCount,
			Paused:         state.paused,
			Cancelled:      state.cancelled,
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
				if state.activeChild != nil {
					_ = state.activeChild.SignalChildWorkflow(ctx, SignalForceRestart, reason).Get(ctx, nil)
				}
			})
			selector.AddReceive(pauseCh, func(c workflow.ReceiveChannel, more bool) {
				var reason string
				c.Receive(ctx, &reason)
				state.paused = true
				if state.activeChild != nil {
					_ = state.activeChild.SignalChildWorkflow(ctx, SignalPauseRestart, reason).Get(ctx, nil)
				}
			})
			selector.AddReceive(resumeCh, func(c workflow.ReceiveChannel, more bool) {
				var empty string
				c.Receive(ctx, &empty)
				state.paused = false
				if state.activeChild != nil {
					_ = state.activeChild.SignalChildWorkflow(ctx, SignalResumeRestart, empty).Get(ctx, nil)
				}
			})
			selector.AddReceive(cancelCh, func(c workflow.ReceiveChannel, more bool) {
				var reason string
				c.Receive(ctx, &reason)
				state.cancelled = true
				if state.activeChild != nil {
					_ = state.activeChild.SignalChildWorkflow(ctx, SignalCancelRestart, reason).Get(ctx, nil)
				}
			})
			selector.Select(ctx)
		}
	})
}
