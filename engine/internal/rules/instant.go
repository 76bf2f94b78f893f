package rules

import "github.com/iotwatch/iotwatch/pkg/telemetry"

// InstantRule fires when a single event for the target device satisfies its
// condition. It ignores the window.
type InstantRule struct {
	name   string
	target Target
	cond   Condition
}

// NewInstant creates an InstantRule. An empty name defaults to the condition
// text, e.g. "field_a > 5".
func NewInstant(name string, target Target, cond Condition) *InstantRule {
	if name == "" {
		name = cond.String()
	}
	return &InstantRule{name: name, target: target, cond: cond}
}

func (r *InstantRule) Name() string         { return r.name }
func (r *InstantRule) Kind() telemetry.Kind { return telemetry.KindInstant }
func (r *InstantRule) Target() Target       { return r.target }
func (r *InstantRule) Condition() Condition { return r.cond }

// Evaluate checks the latest event only.
func (r *InstantRule) Evaluate(ev telemetry.Event, _ []telemetry.Event) ([]telemetry.Alert, error) {
	if !r.target.Matches(ev.DeviceID) {
		return nil, nil
	}
	ok, v, err := r.cond.Holds(ev)
	if err != nil || !ok {
		return nil, err
	}
	return []telemetry.Alert{{
		DeviceID:  ev.DeviceID,
		Rule:      r.name,
		Kind:      telemetry.KindInstant,
		Value:     v,
		Timestamp: ev.Timestamp,
	}}, nil
}
