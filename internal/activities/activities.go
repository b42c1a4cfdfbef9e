package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/crateops/rolling-restart/internal/classify"
	"github.com/crateops/rolling-restart/internal/k8s"
	"github.com/crateops/rolling-restart/internal/maintenance"
	"github.com/crateops/rolling-restart/internal/metrics"
	"github.com/crateops/rolling-restart/internal/model"
	"github.com/crateops/rolling-restart/internal/sqlclient"
)

// Activities bundles the collaborators every leaf operation needs. A single
// instance is registered with the worker; Temporal invokes its methods by
// name (see cmd/rolling-restart's worker bootstrap).
type Activities struct {
	Clients *k8s.Clients
	SQL     *sqlclient.Client
	Log     *zap.SugaredLogger
	Metrics *metrics.Collection
}

func New(clients *k8s.Clients, log *zap.SugaredLogger, m *metrics.Collection) *Activities {
	return &Activities{
		Clients: clients,
		SQL:     sqlclient.New(clients),
		Log:     log,
		Metrics: m,
	}
}

// DiscoverClusters enumerates namespaces and matches custom resources to
// workload controllers, per §4.1.
func (a *Activities) DiscoverClusters(ctx context.Context, in DiscoverClustersInput) (DiscoverClustersResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("discovering clusters", "filter", in.ClusterNames)

	discovered, errs := a.Clients.Discover(ctx, in.ClusterNames)

	var clusters []model.ClusterDescriptor
	for _, d := range discovered {
		cluster := d.ClusterDescriptor
		if in.MaintenanceConfigPath != "" {
			if f, err := maintenance.Load(in.MaintenanceConfigPath); err == nil {
				if cc, ok := f.Clusters[cluster.Name]; ok {
					if cc.DCUtilTimeout > 0 {
						cluster.DrainTimeoutSeconds = cc.DCUtilTimeout
					}
					cluster.MinAvailability = cc.MinAvailabilityOrDefault()
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	a.Metrics.ClustersDiscovered.Set(float64(len(clusters)))
	return DiscoverClustersResult{Clusters: clusters, Errors: errs}, nil
}

// ValidateCluster mirrors validate_cluster.
func (a *Activities) ValidateCluster(ctx context.Context, in ValidateClusterInput) (ValidateClusterResult, error) {
	res := ValidateClusterResult{ClusterName: in.Cluster.Name, IsValid: true}
	if in.Cluster.Suspended {
		res.Errors = append(res.Errors, "Cluster is SUSPENDED")
		res.IsValid = false
	}
	if in.Cluster.Health != model.HealthGreen {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Cluster health is %s, not GREEN", in.Cluster.Health))
	}
	if !in.SkipHookWarning {
		if !in.Cluster.HasPrestopHook {
			res.Warnings = append(res.Warnings, "No prestop hook detected")
		} else if !in.Cluster.HasDCUtil {
			res.Warnings = append(res.Warnings, "Prestop hook detected but no decommissioning utility found")
		}
	}
	return res, nil
}

// CheckClusterHealth reads the CR's health field and raises a retryable
// error for any non-GREEN symbol, so the durable retry policy drives the
// Health-Gate's polling loop (§4.3).
func (a *Activities) CheckClusterHealth(ctx context.Context, in HealthCheckInput) (HealthCheckResult, error) {
	if in.DryRun {
		return HealthCheckResult{ClusterName: in.Cluster.Name, Symbol: model.HealthGreen, CheckedAt: nowFromCtx(ctx)}, nil
	}

	symbol, err := a.Clients.ReadClusterHealth(ctx, in.Cluster.Namespace, in.Cluster.CustomResourceName)
	if err != nil {
		return HealthCheckResult{}, classify.New(classify.Transient, "read cluster health: %w", err).ToTemporal()
	}

	obs := HealthCheckResult{ClusterName: in.Cluster.Name, Symbol: symbol, CheckedAt: nowFromCtx(ctx)}
	if symbol == model.HealthGreen {
		return obs, nil
	}
	// Carried as a structured detail (rather than parsed back out of the
	// error message) so the Health-Gate can report the last observed
	// symbol without string-scraping.
	return HealthCheckResult{}, temporal.NewApplicationError(
		fmt.Sprintf("cluster %s health is %s, retrying", in.Cluster.Name, symbol),
		string(classify.HealthNotGreen), string(symbol))
}

// CheckMaintenanceWindow implements §4.1's fail-open predicate.
func (a *Activities) CheckMaintenanceWindow(ctx context.Context, in MaintenanceWindowCheckInput) (MaintenanceWindowCheckResult, error) {
	logger := activity.GetLogger(ctx)
	if in.ConfigPath == "" {
		return MaintenanceWindowCheckResult{
			ClusterName: in.ClusterName, ShouldWait: false,
			Reason: "no maintenance configuration path provided, proceeding without restrictions",
		}, nil
	}

	f, err := maintenance.Load(in.ConfigPath)
	if err != nil {
		logger.Warn("maintenance config error, proceeding (fail-open)", "error", err)
		return MaintenanceWindowCheckResult{
			ClusterName: in.ClusterName, ShouldWait: false,
			Reason: fmt.Sprintf("maintenance config unreadable, proceeding with restart: %v", err),
		}, nil
	}

	checker := maintenance.NewChecker(f)
	result, err := checker.Check(in.ClusterName, in.Now.UTC())
	if err != nil {
		logger.Warn("maintenance window evaluation error, proceeding (fail-open)", "error", err)
		return MaintenanceWindowCheckResult{
			ClusterName: in.ClusterName, ShouldWait: false,
			Reason: fmt.Sprintf("error evaluating maintenance windows, proceeding with restart: %v", err),
		}, nil
	}
	return MaintenanceWindowCheckResult{
		ClusterName:     in.ClusterName,
		ShouldWait:      result.ShouldWait,
		Reason:          result.Reason,
		NextWindowStart: result.NextWindowStart,
		InWindow:        result.InWindow,
	}, nil
}

// DecommissionPod selects the strategy purely as a function of
// cluster.has_dc_util (§4.5, state DECOMMISSION). The Kubernetes-managed
// branch is a no-op here: the subsequent DeletePod's grace period is what
// triggers the pre-stop hook.
func (a *Activities) DecommissionPod(ctx context.Context, in DecommissionPodInput) (DecommissionPodResult, error) {
	start := nowFromCtx(ctx)
	if in.DryRun {
		return DecommissionPodResult{StrategyUsed: strategyLabel(in.Cluster.HasDCUtil), Success: true, Duration: 5 * time.Second}, nil
	}

	if in.Cluster.HasDCUtil {
		return DecommissionPodResult{StrategyUsed: "kubernetes-managed", Success: true, Duration: nowFromCtx(ctx).Sub(start)}, nil
	}

	timeout := time.Duration(in.Cluster.DrainTimeoutSeconds) * time.Second
	stop := heartbeatLoop(ctx, 10*time.Second)
	defer stop()

	for _, stmt := range sqlclient.DecommissionStatements(in.Cluster.DrainTimeoutSeconds, in.Cluster.MinAvailability) {
		if err := a.SQL.Exec(ctx, in.Namespace, in.Pod, stmt); err != nil {
			return DecommissionPodResult{}, classify.ActivityError(err)
		}
	}
	ordinal := in.Cluster.PodOrdinalSuffix(in.Pod)
	if err := a.SQL.ExecDecommission(ctx, in.Namespace, in.Pod, ordinal); err != nil {
		a.Metrics.ObservePodRestart("manual", false, nowFromCtx(ctx).Sub(start))
		return DecommissionPodResult{}, classify.ActivityError(err)
	}

	duration := nowFromCtx(ctx).Sub(start)
	a.Metrics.ObservePodRestart("manual", true, duration)
	return DecommissionPodResult{
		StrategyUsed: "manual",
		Success:      true,
		Duration:     duration,
		Timeout:      timeout,
	}, nil
}

func strategyLabel(hasDCUtil bool) string {
	if hasDCUtil {
		return "kubernetes-managed"
	}
	return "manual"
}

// DeletePod invokes K8s pod delete with the grace period named in §4.1.
func (a *Activities) DeletePod(ctx context.Context, in DeletePodInput) (bool, error) {
	if in.DryRun {
		return true, nil
	}
	grace := k8s.DeleteGracePeriod(in.HasDCUtil, in.DCUtilTimeoutSeconds)
	if err := a.Clients.DeletePod(ctx, in.Namespace, in.Pod, grace); err != nil {
		return false, classify.Wrap(classify.Transient, err).ToTemporal()
	}
	return true, nil
}

// WaitForPodReady polls every 5s until Ready holds continuously for 20s
// (§4.1, B4), heartbeating every 20s.
func (a *Activities) WaitForPodReady(ctx context.Context, in WaitForPodReadyInput) (bool, error) {
	if in.DryRun {
		return true, nil
	}
	deadline := nowFromCtx(ctx).Add(in.PodReadyTimeout)
	var readySince time.Time

	ticker := time.NewTicker(k8s.PodReadyPollInterval)
	defer ticker.Stop()
	lastHeartbeat := nowFromCtx(ctx)

	for {
		ready, terminal, err := a.Clients.PodReadyState(ctx, in.Namespace, in.Pod)
		if err != nil {
			readySince = time.Time{}
		} else if terminal {
			return false, classify.New(classify.ResourceNotFound, "pod %s entered a terminal phase before becoming ready", in.Pod).ToTemporal()
		} else if ready {
			if readySince.IsZero() {
				readySince = nowFromCtx(ctx)
			} else if nowFromCtx(ctx).Sub(readySince) >= k8s.StabilityWindow {
				return true, nil
			}
		} else {
			readySince = time.Time{}
		}

		if nowFromCtx(ctx).Sub(lastHeartbeat) >= 20*time.Second {
			activity.RecordHeartbeat(ctx, in.Pod)
			lastHeartbeat = nowFromCtx(ctx)
		}
		if nowFromCtx(ctx).After(deadline) {
			return false, classify.New(classify.Transient, "pod %s did not become ready within %s", in.Pod, in.PodReadyTimeout).ToTemporal()
		}

		select {
		case <-ctx.Done():
			return false, classify.Wrap(classify.Cancelled, ctx.Err()).ToTemporal()
		case <-ticker.C:
		}
	}
}

// ResetClusterRoutingAllocation is driven to eventual success by the
// durable retry machinery (§4.1); on failure at one pod it tries the
// remaining cluster pods in order.
func (a *Activities) ResetClusterRoutingAllocation(ctx context.Context, in ResetRoutingInput) (bool, error) {
	if in.DryRun {
		return true, nil
	}
	if err := a.SQL.ResetRoutingAllocation(ctx, in.Namespace, in.Pod); err == nil {
		return true, nil
	}
	var lastErr error
	for _, candidate := range in.Cluster.Pods {
		if candidate == in.Pod {
			continue
		}
		if err := a.SQL.ResetRoutingAllocation(ctx, in.Namespace, candidate); err == nil {
			return true, nil
		} else {
			lastErr = err
		}
	}
	return false, classify.Wrap(classify.Transient, fmt.Errorf("reset routing allocation failed on all cluster pods: %w", lastErr)).ToTemporal()
}

// IsPodOnSuspendedNode fails open: exceptions resolve to false.
func (a *Activities) IsPodOnSuspendedNode(ctx context.Context, in IsPodOnSuspendedNodeInput) (bool, error) {
	return a.Clients.IsPodOnSuspendedNode(ctx, in.Namespace, in.Pod), nil
}

// nowFromCtx uses the activity's wall clock. Unlike workflow code, activities
// are exactly where non-deterministic I/O and time reads are permitted
// (§5: "Activities are the only place where non-deterministic I/O occurs").
func nowFromCtx(ctx context.Context) time.Time {
	return time.Now().UTC()
}

func heartbeatLoop(ctx context.Context, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
