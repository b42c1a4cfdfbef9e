package activities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crateops/rolling-restart/internal/metrics"
	"github.com/crateops/rolling-restart/internal/model"
)

func newTestActivities() *Activities {
	return New(nil, zap.NewNop().Sugar(), metrics.New())
}

func TestValidateClusterRejectsSuspended(t *testing.T) {
	a := newTestActivities()
	res, err := a.ValidateCluster(context.Background(), ValidateClusterInput{
		Cluster: model.ClusterDescriptor{Name: "c1", Suspended: true},
	})
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Contains(t, res.Errors, "Cluster is SUSPENDED")
}

func TestValidateClusterWarnsOnMissingHooks(t *testing.T) {
	a := newTestActivities()
	res, err := a.ValidateCluster(context.Background(), ValidateClusterInput{
		Cluster: model.ClusterDescriptor{Name: "c1", Health: model.HealthGreen, HasPrestopHook: false},
	})
	require.NoError(t, err)
	require.True(t, res.IsValid)
	require.Contains(t, res.Warnings, "No prestop hook detected")
}

func TestDecommissionPodDryRunIsSynthetic(t *testing.T) {
	a := newTestActivities()
	res, err := a.DecommissionPod(context.Background(), DecommissionPodInput{
		Pod: "c2-0", Namespace: "db", DryRun: true,
		Cluster: model.ClusterDescriptor{Name: "c2", HasDCUtil: false},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "manual", res.StrategyUsed)
}

func TestDecommissionPodKubernetesManagedIsNoop(t *testing.T) {
	a := newTestActivities()
	res, err := a.DecommissionPod(context.Background(), DecommissionPodInput{
		Pod: "c1-0", Namespace: "db",
		Cluster: model.ClusterDescriptor{Name: "c1", HasDCUtil: true},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "kubernetes-managed", res.StrategyUsed)
}
