// Package transport implements consumer.Source on a NATS JetStream durable
// pull consumer.
//
// Open connects with bus.Connect, makes sure the telemetry stream exists,
// creates or updates the durable consumer (explicit acks, filtered to the
// telemetry subject) and starts a message iterator. Next returns one message
// at a time and is interrupted by its context.
//
// A connection that NATS has closed for good (reconnect attempts exhausted)
// is reported as consumer.ErrTransport. Other fetch errors are returned after
// a jittered backoff so the consumer can count them.
package transport
