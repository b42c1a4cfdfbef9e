// Package policy is the closed registry of §4.2: every activity invocation
// resolves its timeout and retry policy here rather than hand-rolling
// backoff inside the activity itself (see SPEC_FULL.md §6, "durable
// execution over hand-rolled retries").
package policy

import (
	"time"

	"github.com/crateops/rolling-restart/internal/classify"
	"go.temporal.io/sdk/temporal"
)

// Class names one row of the retry/timeout policy table.
type Class string

const (
	HealthCheck      Class = "health_check"
	Decommission     Class = "decommission"
	PodOperations    Class = "pod_operations"
	APICalls         Class = "api_calls"
	MaintenanceCheck Class = "maintenance_check"
	RoutingReset     Class = "routing_reset"
)

// Entry is one row of the table.
type Entry struct {
	StartToClose       time.Duration
	Heartbeat          time.Duration
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	MaxAttempts        int32
	NonRetryableKinds  []classify.Kind
	BackoffCoefficient float64
}

// table is the closed registry; callers must use Lookup rather than
// constructing Entry values directly so the table stays closed.
var table = map[Class]Entry{
	HealthCheck: {
		StartToClose:       10 * time.Minute,
		Heartbeat:          30 * time.Second,
		InitialInterval:    5 * time.Second,
		MaxInterval:        30 * time.Second,
		MaxAttempts:        30,
		BackoffCoefficient: 2.0,
		NonRetryableKinds:  []classify.Kind{classify.Configuration, classify.Validation},
	},
	Decommission: {
		StartToClose:       15 * time.Minute,
		Heartbeat:          30 * time.Second,
		InitialInterval:    10 * time.Second,
		MaxInterval:        60 * time.Second,
		MaxAttempts:        3,
		BackoffCoefficient: 2.0,
		NonRetryableKinds: []classify.Kind{
			classify.Configuration, classify.Validation, classify.ResourceNotFound, classify.Cancelled,
		},
	},
	PodOperations: {
		StartToClose:       5 * time.Minute,
		Heartbeat:          30 * time.Second,
		InitialInterval:    5 * time.Second,
		MaxInterval:        30 * time.Second,
		MaxAttempts:        5,
		BackoffCoefficient: 2.0,
		NonRetryableKinds: []classify.Kind{
			classify.ResourceNotFound, classify.Validation, classify.Cancelled,
		},
	},
	APICalls: {
		StartToClose:       30 * time.Second,
		Heartbeat:          10 * time.Second,
		InitialInterval:    1 * time.Second,
		MaxInterval:        10 * time.Second,
		MaxAttempts:        3,
		BackoffCoefficient: 2.0,
		NonRetryableKinds: []classify.Kind{
			classify.Configuration, classify.Validation, classify.Cancelled,
		},
	},
	MaintenanceCheck: {
		StartToClose:       30 * time.Second,
		Heartbeat:          10 * time.Second,
		InitialInterval:    1 * time.Second,
		MaxInterval:        10 * time.Second,
		MaxAttempts:        3,
		BackoffCoefficient: 2.0,
		NonRetryableKinds:  []classify.Kind{classify.Configuration, classify.Cancelled},
	},
	RoutingReset: {
		StartToClose:       60 * time.Second,
		Heartbeat:          15 * time.Second,
		InitialInterval:    5 * time.Second,
		MaxInterval:        15 * time.Second,
		MaxAttempts:        2,
		BackoffCoefficient: 2.0,
		NonRetryableKinds: []classify.Kind{
			classify.Configuration, classify.Validation, classify.Cancelled,
		},
	},
}

// Lookup returns the policy entry for a class. Panics on an unknown class:
// the table is closed, so an unknown class is a programming error, not a
// runtime condition to recover from.
func Lookup(c Class) Entry {
	e, ok := table[c]
	if !ok {
		panic("policy: unknown class " + string(c))
	}
	return e
}

// ForDecommission applies the per-cluster drain-timeout override described
// in §4.2: a cluster with dc_util_timeout = T overrides decommission
// start_to_close to T + 120s, and max_attempts drops to 2 when has_dc_util.
func ForDecommission(dcUtilTimeoutSeconds int, hasDCUtil bool) Entry {
	e := Lookup(Decommission)
	if dcUtilTimeoutSeconds > 0 {
		e.StartToClose = time.Duration(dcUtilTimeoutSeconds)*time.Second + 120*time.Second
	}
	if hasDCUtil {
		e.MaxAttempts = 2
	}
	return e
}

// RetryPolicy converts an Entry into a temporal.RetryPolicy. Non-retryable
// kinds are passed as string error types, matching how activities tag
// classify.Error via classify.Error.ToTemporal when constructing the
// application error (see internal/activities).
func (e Entry) RetryPolicy() *temporal.RetryPolicy {
	nonRetryable := make([]string, 0, len(e.NonRetryableKinds))
	for _, k := range e.NonRetryableKinds {
		nonRetryable = append(nonRetryable, string(k))
	}
	return &temporal.RetryPolicy{
		InitialInterval:        e.InitialInterval,
		BackoffCoefficient:     e.BackoffCoefficient,
		MaximumInterval:        e.MaxInterval,
		MaximumAttempts:        e.MaxAttempts,
		NonRetryableErrorTypes: nonRetryable,
	}
}

// JitterFactor is the deterministic jitter function named in §4.3: a pure
// function of the attempt counter, never a PRNG, so replay reproduces the
// identical wait sequence (invariant I6).
func JitterFactor(attempt int64) float64 {
	return 0.1 + float64(attempt%10)*0.02
}
