// Package api implements the HTTP REST API of the rule engine.
//
// New(deps) returns an http.Handler that serves:
//
//	GET /api/v1/health          consumer state, device and rule counts
//	GET /api/v1/devices         every tracked device with its window fill
//	GET /api/v1/devices/{id}    one device: window contents and rule progress
//	GET /api/v1/alerts          recent alerts, newest first (?device_id=, ?limit=)
//	GET /api/v1/rules           the configured rules in evaluation order
//	GET /metrics                Prometheus exposition of deps.Gatherer
//
// All /api/v1 endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Read live state from the window store and the alert history
//
// Health answers 503 once the consumer is Faulted so a supervisor probing it
// restarts the process. JSON types are defined in types.go.
package api
