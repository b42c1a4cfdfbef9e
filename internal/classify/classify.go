// Package classify carries the error taxonomy of §7 across the
// activity/workflow boundary. Activities return *classify.Error; the policy
// table maps Kind to the engine's retryable/non-retryable distinction.
package classify

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// Kind is one of the abstract error kinds named by the core design, not a
// concrete Go type hierarchy — it travels through the workflow engine's
// application-error machinery as a string tag.
type Kind string

const (
	Configuration      Kind = "Configuration"
	Validation         Kind = "Validation"
	ResourceNotFound   Kind = "ResourceNotFound"
	Transient          Kind = "Transient"
	HealthNotGreen     Kind = "HealthNotGreen"
	MaintenanceBlocked Kind = "MaintenanceBlocked"
	Cancelled          Kind = "Cancelled"
)

// Error wraps an underlying error with its classified Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to Transient for
// unclassified errors (the conservative choice: retry rather than give up).
func KindOf(err error) Kind {
	var ce *Error
	if asError(err, &ce) {
		return ce.Kind
	}
	return Transient
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// nonRetryableEverywhere is the set of kinds that should never be retried
// regardless of which policy row is in effect (Cancelled, per §7).
var nonRetryableEverywhere = map[Kind]bool{Cancelled: true}

// ToTemporal converts a classified error into the activity-boundary
// representation the workflow engine actually dispatches on: an
// ApplicationError tagged with the Kind's name, so the policy table's
// NonRetryableErrorTypes (internal/policy) can match it by string. Returning
// a plain Go error across this boundary would lose the classification, so
// every activity that returns a classified error must funnel it through
// this method.
func (e *Error) ToTemporal() error {
	if e == nil {
		return nil
	}
	if nonRetryableEverywhere[e.Kind] {
		return temporal.NewNonRetryableApplicationError(e.Error(), string(e.Kind), e.Err)
	}
	return temporal.NewApplicationErrorWithCause(e.Error(), string(e.Kind), e.Err)
}

// ActivityError converts any classified error in err's chain into its
// Temporal-ready form; unclassified errors pass through unchanged (the
// engine then treats them as generically retryable). Activities should
// funnel every non-nil return through this at their final return statement.
func ActivityError(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if asError(err, &ce) {
		return ce.ToTemporal()
	}
	return err
}

// NewHealthNotGreen builds a HealthNotGreen application error that carries
// the last observed symbol as a structured detail. A Health-Gate invoked as
// a child workflow can only propagate a failure to its caller through this
// error: Temporal does not populate the child's result pointer when the
// child completes with an error, so the caller cannot read the symbol off
// the (zero-valued) result — it must unwrap it from the error instead via
// HealthSymbolFromError.
func NewHealthNotGreen(symbol string, format string, args ...any) error {
	return temporal.NewApplicationError(fmt.Sprintf(format, args...), string(HealthNotGreen), symbol)
}

// HealthSymbolFromError recovers the symbol attached by NewHealthNotGreen,
// unwrapping through whatever ActivityError/ChildWorkflowExecutionError
// envelope the engine added at the activity or child-workflow boundary.
func HealthSymbolFromError(err error) (string, bool) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != string(HealthNotGreen) {
		return "", false
	}
	var symbol string
	if derr := appErr.Details(&symbol); derr != nil || symbol == "" {
		return "", false
	}
	return symbol, true
}
