package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/classify"
	"github.com/crateops/rolling-restart/internal/model"
)

// TestHealthGateFlapping exercises S4: YELLOW, YELLOW, GREEN across three
// polls, returning GREEN on the third invocation.
func TestHealthGateFlapping(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions((&activities.Activities{}).CheckClusterHealth, activity.RegisterOptions{Name: activities.NameCheckClusterHealth})

	calls := 0
	env.OnActivity(activities.NameCheckClusterHealth, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.HealthCheckInput) (model.HealthObservation, error) {
			calls++
			if calls < 3 {
				return model.HealthObservation{}, temporal.NewApplicationError("not green", string(classify.HealthNotGreen), "YELLOW")
			}
			return model.HealthObservation{ClusterName: in.Cluster.Name, Symbol: model.HealthGreen}, nil
		})

	env.ExecuteWorkflow(HealthGate, HealthGateInput{
		Cluster: model.ClusterDescriptor{Name: "c1"},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var obs model.HealthObservation
	require.NoError(t, env.GetWorkflowResult(&obs))
	require.Equal(t, model.HealthGreen, obs.Symbol)
	require.Equal(t, 3, calls)
}

func TestHealthGateExhaustsBudget(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions((&activities.Activities{}).CheckClusterHealth, activity.RegisterOptions{Name: activities.NameCheckClusterHealth})

	env.OnActivity(activities.NameCheckClusterHealth, mock.Anything, mock.Anything).
		Return(model.HealthObservation{}, temporal.NewApplicationError("not green", string(classify.HealthNotGreen), "RED"))

	env.ExecuteWorkflow(HealthGate, HealthGateInput{
		Cluster: model.ClusterDescriptor{Name: "c1"}, MaxAttempts: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
