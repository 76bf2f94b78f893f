// Package rules implements alert rule evaluation for device telemetry.
//
// A Rule looks at the event that just arrived and at the device's window
// (which already contains that event) and returns the alerts to emit. Two
// kinds exist:
//
//   - InstantRule: the condition holds on the latest event.
//   - ContinuousRule: the condition holds on every one of the last N events.
//
// Conditions are a single comparison, "field op value" (see ParseCondition).
// A Set evaluates its rules in order with no early termination and isolates
// per-rule failures. Rules never persist anything; the caller does.
package rules
