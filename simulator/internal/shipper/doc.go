// Package shipper posts simulated telemetry readings to the ingest endpoint.
//
// A Client is safe for concurrent use; the generator shares one across every
// simulated device. Responses in the 4xx range are permanent (the reading is
// malformed or the API key is wrong) and wrap ErrRejected. Everything else,
// including connection failures and 5xx responses, is transient: the caller
// sends the next reading on its next tick.
package shipper
