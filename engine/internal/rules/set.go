package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iotwatch/iotwatch/engine/internal/config"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// Set is a fixed, ordered collection of rules.
//
// Set is safe for concurrent use: rules are stateless and the slice is never
// modified after construction.
type Set struct {
	rules []Rule
	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// NewSet creates a Set that evaluates rules in the given order.
// A Set with no rules is valid; Evaluate becomes a no-op.
func NewSet(rules ...Rule) *Set {
	return &Set{
		rules: rules,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// FromConfig builds the rule set described by cfgs. windowSize is the store's
// window length, used for continuous rules that do not set their own.
func FromConfig(cfgs []config.RuleConfig, windowSize int) (*Set, error) {
	out := make([]Rule, 0, len(cfgs))
	for i, rc := range cfgs {
		cond, err := ParseCondition(rc.Condition)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}

		target := AllDevices()
		if rc.DeviceID != nil {
			target = Device(*rc.DeviceID)
		}

		switch telemetry.Kind(rc.Kind) {
		case telemetry.KindInstant:
			out = append(out, NewInstant(rc.Name, target, cond))
		case telemetry.KindContinuous:
			size := rc.Window
			if size == 0 {
				size = windowSize
			}
			if size <= 0 || size > windowSize {
				return nil, fmt.Errorf("rules[%d]: window %d out of range [1, %d]", i, size, windowSize)
			}
			out = append(out, NewContinuous(rc.Name, target, cond, size))
		default:
			return nil, fmt.Errorf("rules[%d]: unknown kind %q: want instant|continuous", i, rc.Kind)
		}
	}
	return NewSet(out...), nil
}

// Rules returns the rules in evaluation order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *Set) Len() int { return len(s.rules) }

// Evaluate runs every rule against ev and window, in order, without early
// termination. A failing rule does not stop the others: its error is
// collected as an *EvalError and the alerts of the remaining rules are still
// returned. The returned error joins all per-rule failures (see EvalErrors).
func (s *Set) Evaluate(ev telemetry.Event, window []telemetry.Event) ([]telemetry.Alert, error) {
	var (
		alerts []telemetry.Alert
		errs   []error
	)
	for _, r := range s.rules {
		out, err := r.Evaluate(ev, window)
		if err != nil {
			errs = append(errs, &EvalError{Rule: r.Name(), Err: err})
			continue
		}
		for _, a := range out {
			a.ID = s.newID()
			a.FiredAt = s.now().UTC()
			alerts = append(alerts, a)
		}
	}
	return alerts, errors.Join(errs...)
}
