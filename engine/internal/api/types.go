package api

import "github.com/iotwatch/iotwatch/pkg/telemetry"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"` // ok | degraded | down
	ConsumerState  string `json:"consumer_state"`
	DeviceCount    int    `json:"device_count"`
	EvictedDevices uint64 `json:"evicted_devices"`
	RuleCount      int    `json:"rule_count"`
	AlertCount     int    `json:"alert_count"`
	WindowSize     int    `json:"window_size"`
}

// DeviceSummary is one entry in GET /api/v1/devices.
type DeviceSummary struct {
	DeviceID   int64            `json:"device_id"`
	Events     int              `json:"events"`
	WindowFull bool             `json:"window_full"`
	Latest     *telemetry.Event `json:"latest,omitempty"`
}

// DeviceResponse is the payload for GET /api/v1/devices/{id}.
type DeviceResponse struct {
	DeviceID int64             `json:"device_id"`
	Window   []telemetry.Event `json:"window"`
	Rules    []RuleProgress    `json:"rules"`
}

// RuleResponse is one entry in GET /api/v1/rules.
type RuleResponse struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Target    string `json:"target"` // device id or "*"
	Condition string `json:"condition"`
	Window    int    `json:"window,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
