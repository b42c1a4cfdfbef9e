// Package workflow holds the Temporal workflow definitions of §4.3-§4.7.
// Workflow code here must stay deterministic: no wall-clock reads, no
// randomness, no map-iteration-order dependence (§5). Time and sleeps go
// through workflow.Now/workflow.Sleep; any jitter is a pure function of the
// attempt counter (internal/policy.JitterFactor), never a PRNG.
package workflow

import (
	"errors"
	"math"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/classify"
	"github.com/crateops/rolling-restart/internal/model"
	"github.com/crateops/rolling-restart/internal/policy"
)

// HealthGateInput parameterizes one Health-Gate invocation. MaxAttempts
// lets the Cluster-Restart workflow pass a reduced budget for the
// INITIAL_HEALTH state (§4.6 state 3: "reduced attempt budget, ~5 min").
type HealthGateInput struct {
	Cluster     model.ClusterDescriptor
	DryRun      bool
	MaxAttempts int32 // 0 means use the policy table's default
}

// HealthGate polls CheckClusterHealth under the health_check policy,
// applying the deterministic exponential backoff of §4.3, until GREEN or
// the attempt budget is exhausted.
func HealthGate(ctx workflow.Context, in HealthGateInput) (model.HealthObservation, error) {
	entry := policy.Lookup(policy.HealthCheck)
	maxAttempts := entry.MaxAttempts
	if in.MaxAttempts > 0 {
		maxAttempts = in.MaxAttempts
	}

	// Single-shot per attempt: the workflow layer owns retry/backoff, not
	// the activity options, so the jitter sequence stays a deterministic
	// function of the attempt counter (§9 design note, invariant I6).
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: entry.StartToClose,
		HeartbeatTimeout:    entry.Heartbeat,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	actx := workflow.WithActivityOptions(ctx, opts)

	var lastSymbol model.HealthSymbol = model.HealthUnknown

	for attempt := int32(1); attempt <= maxAttempts; attempt++ {
		var obs model.HealthObservation
		err := workflow.ExecuteActivity(actx, activities.NameCheckClusterHealth, activities.HealthCheckInput{
			Cluster: in.Cluster, DryRun: in.DryRun,
		}).Get(actx, &obs)

		if err == nil {
			if obs.IsHealthy() {
				return obs, nil
			}
			// A non-GREEN result without an error is treated as terminal
			// rather than polled again; CheckClusterHealth itself reports
			// every non-GREEN symbol through its error path.
			lastSymbol = obs.Symbol
			return obs, classify.NewHealthNotGreen(string(obs.Symbol), "cluster %s health is %s (terminal)", in.Cluster.Name, obs.Symbol)
		}

		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == string(classify.HealthNotGreen) {
			var symbol string
			if detailsErr := appErr.Details(&symbol); detailsErr == nil && symbol != "" {
				lastSymbol = model.HealthSymbol(symbol)
			}
			if attempt == maxAttempts {
				break
			}
			if err := sleepWithJitter(ctx, entry.InitialInterval, entry.MaxInterval, entry.BackoffCoefficient, attempt); err != nil {
				return model.HealthObservation{}, err
			}
			continue
		}
		// Configuration/Validation or any other non-retryable error: surface
		// immediately.
		return model.HealthObservation{}, err
	}

	return model.HealthObservation{ClusterName: in.Cluster.Name, Symbol: lastSymbol},
		classify.NewHealthNotGreen(string(lastSymbol), "health-gate exhausted %d attempts, last symbol %s", maxAttempts, lastSymbol)
}

// sleepWithJitter computes the deterministic exponential-backoff delay for
// the given attempt and sleeps for it via the workflow's durable timer.
func sleepWithJitter(ctx workflow.Context, initial, max time.Duration, coefficient float64, attempt int32) error {
	base := float64(initial) * math.Pow(coefficient, float64(attempt-1))
	if base > float64(max) {
		base = float64(max)
	}
	jittered := base * (1 + policy.JitterFactor(int64(attempt)))
	return workflow.Sleep(ctx, time.Duration(jittered))
}
