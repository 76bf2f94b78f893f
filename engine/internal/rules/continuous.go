package rules

import (
	"fmt"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// ContinuousRule fires when the most recent size events of the target device
// all satisfy its condition. It never fires before the device has size events
// in its window, and it fires again on every further qualifying event while
// the condition keeps holding.
type ContinuousRule struct {
	name   string
	target Target
	cond   Condition
	size   int
}

// NewContinuous creates a ContinuousRule over the last size events. An empty
// name defaults to "<condition> for <size> messages".
func NewContinuous(name string, target Target, cond Condition, size int) *ContinuousRule {
	if name == "" {
		name = fmt.Sprintf("%s for %d messages", cond, size)
	}
	return &ContinuousRule{name: name, target: target, cond: cond, size: size}
}

func (r *ContinuousRule) Name() string         { return r.name }
func (r *ContinuousRule) Kind() telemetry.Kind { return telemetry.KindContinuous }
func (r *ContinuousRule) Target() Target       { return r.target }
func (r *ContinuousRule) Condition() Condition { return r.cond }

// Size is the number of consecutive events the condition must hold for.
func (r *ContinuousRule) Size() int { return r.size }

// Evaluate checks the tail of window. ev must be the last element of window.
func (r *ContinuousRule) Evaluate(ev telemetry.Event, window []telemetry.Event) ([]telemetry.Alert, error) {
	if !r.target.Matches(ev.DeviceID) || r.size <= 0 || len(window) < r.size {
		return nil, nil
	}

	var latest float64
	for _, e := range window[len(window)-r.size:] {
		ok, v, err := r.cond.Holds(e)
		if err != nil || !ok {
			return nil, err
		}
		latest = v
	}
	return []telemetry.Alert{{
		DeviceID:  ev.DeviceID,
		Rule:      r.name,
		Kind:      telemetry.KindContinuous,
		Value:     latest,
		Timestamp: ev.Timestamp,
	}}, nil
}

// Streak counts the consecutive events at the end of window that satisfy the
// condition, stopping at the first one that does not (or lacks the field).
// The rule fires once the streak reaches Size.
func (r *ContinuousRule) Streak(window []telemetry.Event) int {
	n := 0
	for i := len(window) - 1; i >= 0; i-- {
		ok, _, err := r.cond.Holds(window[i])
		if err != nil || !ok {
			break
		}
		n++
	}
	return n
}
