// Package retry provides truncated exponential backoff with jitter, shared by
// the transport source and the simulator's shipper.
package retry
