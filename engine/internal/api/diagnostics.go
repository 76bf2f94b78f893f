package api

import (
	"github.com/iotwatch/iotwatch/engine/internal/rules"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// RuleProgress tells how one rule stands for one device.
type RuleProgress struct {
	Rule string `json:"rule"`
	Kind string `json:"kind"`

	// Matching is the number of trailing window events that satisfy the
	// condition (0 or 1 for instant rules).
	Matching int `json:"matching"`

	// Required is how many consecutive matching events the rule needs.
	Required int `json:"required"`

	// Firing reports whether the latest event produced an alert.
	Firing bool `json:"firing"`

	// Error is set when the latest event cannot be evaluated, e.g. a missing
	// field.
	Error string `json:"error,omitempty"`
}

// ruleProgress evaluates every rule that targets deviceID against its window
// without emitting anything. Rules aimed at other devices are left out.
func ruleProgress(rs []rules.Rule, deviceID int64, window []telemetry.Event) []RuleProgress {
	out := make([]RuleProgress, 0, len(rs))
	if len(window) == 0 {
		return out
	}
	latest := window[len(window)-1]

	for _, r := range rs {
		p := RuleProgress{Rule: r.Name(), Kind: string(r.Kind())}
		switch rule := r.(type) {
		case *rules.InstantRule:
			if !rule.Target().Matches(deviceID) {
				continue
			}
			p.Required = 1
			ok, _, err := rule.Condition().Holds(latest)
			if err != nil {
				p.Error = err.Error()
			} else if ok {
				p.Matching = 1
			}
			p.Firing = ok
		case *rules.ContinuousRule:
			if !rule.Target().Matches(deviceID) {
				continue
			}
			p.Required = rule.Size()
			p.Matching = rule.Streak(window)
			p.Firing = p.Matching >= p.Required && len(window) >= p.Required
			if _, _, err := rule.Condition().Holds(latest); err != nil {
				p.Error = err.Error()
			}
		default:
			// Opaque rule: evaluate it and report whether it fires.
			alerts, err := r.Evaluate(latest, window)
			if err != nil {
				p.Error = err.Error()
			}
			p.Firing = len(alerts) > 0
		}
		out = append(out, p)
	}
	return out
}
