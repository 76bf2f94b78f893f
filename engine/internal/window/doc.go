// Package window implements the per-device sliding-window state store.
//
// Each device_id owns a fixed-capacity FIFO of its most recent events,
// created lazily on the first event. Update appends and evicts the oldest
// event at capacity; Window returns a copy, oldest first.
//
// Devices are never removed unless WithMaxDevices bounds the store, in which
// case the least recently updated device is dropped to admit a new one.
package window
