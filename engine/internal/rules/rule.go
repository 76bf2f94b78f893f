package rules

import (
	"errors"
	"fmt"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// ErrMissingField is wrapped by evaluation errors caused by an event that
// lacks the field a condition compares.
var ErrMissingField = errors.New("missing field")

// Rule is one independent alert condition.
//
// Evaluate receives the event that just arrived and the device's window,
// which already includes that event as its last element. It returns the
// alerts to emit (usually zero or one) and must not retain or modify either
// argument. ID and FiredAt of returned alerts are filled in by the Set.
type Rule interface {
	Name() string
	Kind() telemetry.Kind
	Evaluate(ev telemetry.Event, window []telemetry.Event) ([]telemetry.Alert, error)
}

// EvalError reports a failure of one rule on one event.
type EvalError struct {
	Rule string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// EvalErrors flattens an error returned by Set.Evaluate into its per-rule
// parts.
func EvalErrors(err error) []*EvalError {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]*EvalError, 0, len(errs))
	for _, e := range errs {
		var ee *EvalError
		if errors.As(e, &ee) {
			out = append(out, ee)
		}
	}
	return out
}

// Target selects the devices a rule applies to.
type Target struct {
	all bool
	id  int64
}

// Device targets a single device id.
func Device(id int64) Target { return Target{id: id} }

// AllDevices targets every device.
func AllDevices() Target { return Target{all: true} }

// Matches reports whether the rule applies to deviceID.
func (t Target) Matches(deviceID int64) bool {
	return t.all || t.id == deviceID
}

func (t Target) String() string {
	if t.all {
		return "*"
	}
	return fmt.Sprintf("%d", t.id)
}
