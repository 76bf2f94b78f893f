// Package consumer drives the rule engine from a message stream.
//
// A Consumer pulls messages from a Source one at a time and, for each one:
// decodes it as a telemetry.Event, appends it to the device's window in the
// window.Store, evaluates the rules.Set against the event and the refreshed
// window, hands every resulting alert to the Sink, and finally acknowledges
// the message. Processing is strictly sequential; there is no internal
// parallelism.
//
// Per-message failures never stop the loop: undecodable messages are logged
// and acknowledged, failing rules are logged while the other rules still run,
// and sink failures are logged without retry. Only a transport failure
// (Source.Open failing, Source.Next returning ErrTransport, or too many
// consecutive fetch errors) ends Run with an error wrapping ErrTransport and
// leaves the Consumer Faulted.
//
// Cancelling the context passed to Run stops the loop after the in-flight
// message has been fully processed and acknowledged; the Consumer is then
// Stopped. Acknowledging after the sink step gives at-least-once delivery,
// so a redelivered message produces its alerts again.
package consumer
