// Package activities implements the leaf operations of §4.1: idempotent,
// retryable calls against Kubernetes and the database's SQL endpoint. Each
// activity is single-shot (no internal retry loop) by design — retries are
// centralized in internal/policy and driven by the workflow engine, per
// SPEC_FULL.md §6's design note on durable execution over hand-rolled
// retries.
package activities

import (
	"time"

	"github.com/crateops/rolling-restart/internal/model"
)

type DiscoverClustersInput struct {
	ClusterNames          []string
	Kubeconfig            string
	Context               string
	MaintenanceConfigPath string
}

type DiscoverClustersResult struct {
	Clusters []model.ClusterDescriptor
	Errors   []string
}

type ValidateClusterInput struct {
	Cluster         model.ClusterDescriptor
	SkipHookWarning bool
}

type ValidateClusterResult struct {
	ClusterName string
	IsValid     bool
	Warnings    []string
	Errors      []string
}

type HealthCheckInput struct {
	Cluster model.ClusterDescriptor
	DryRun  bool
}

type HealthCheckResult = model.HealthObservation

type MaintenanceWindowCheckInput struct {
	ClusterName string
	Now         time.Time
	ConfigPath  string
}

type MaintenanceWindowCheckResult struct {
	ClusterName     string
	ShouldWait      bool
	Reason          string
	NextWindowStart *time.Time
	InWindow        bool
}

type DecommissionPodInput struct {
	Pod       string
	Namespace string
	Cluster   model.ClusterDescriptor
	DryRun    bool
}

type DecommissionPodResult struct {
	StrategyUsed string // "kubernetes-managed" | "manual"
	Success      bool
	Duration     time.Duration
	Timeout      time.Duration
}

type DeletePodInput struct {
	Pod                  string
	Namespace            string
	HasDCUtil            bool
	DCUtilTimeoutSeconds int
	DryRun               bool
}

type WaitForPodReadyInput struct {
	Pod             string
	Namespace       string
	PodReadyTimeout time.Duration
	DryRun          bool
}

type ResetRoutingInput struct {
	Pod       string
	Namespace string
	Cluster   model.ClusterDescriptor
	DryRun    bool
}

type IsPodOnSuspendedNodeInput struct {
	Pod       string
	Namespace string
}
