// Package telemetry defines the wire types shared by the ingest service, the
// rule engine and the simulator: the device Event received from the transport
// and the Alert produced when a rule fires.
//
// Decode is the single entry point for turning a message body into an Event.
// It enforces the inbound contract (integer device_id, numeric field_a) and
// keeps every other key verbatim in Event.Extra so that re-encoding an Event
// does not lose data the engine does not interpret.
package telemetry
