// Package bus wraps the NATS JetStream transport shared by the ingest service
// and the rule engine.
//
// Config describes the connection and the stream/subject telemetry flows
// through. Connect dials NATS with reconnect handling and logging callbacks,
// EnsureStream declares the stream idempotently (the JetStream equivalent of
// a queue declaration), and Publisher sends encoded events to the subject.
//
// Delivery is at-least-once: consumers ack after processing, so a message
// whose ack is lost is delivered again.
package bus
