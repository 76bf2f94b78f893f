package telemetry

import "time"

// Kind distinguishes single-event rules from window rules.
type Kind string

const (
	KindInstant    Kind = "instant"
	KindContinuous Kind = "continuous"
)

// Alert is the record emitted when a rule's condition holds.
//
// Alerts are not deduplicated: a continuous condition that keeps holding
// produces one alert per qualifying event, and a redelivered message produces
// its alerts again.
type Alert struct {
	ID       string `json:"id"`
	DeviceID int64  `json:"device_id"`

	// Rule is the human-readable rule label, e.g. "field_a > 5".
	Rule string `json:"rule"`
	Kind Kind   `json:"kind"`

	// Value is the triggering field value of the latest event.
	Value float64 `json:"value"`

	// Timestamp is copied from the event that triggered the rule.
	Timestamp float64 `json:"timestamp"`

	FiredAt time.Time `json:"fired_at"`
}
