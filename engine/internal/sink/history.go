package sink

import (
	"context"
	"sync"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// History keeps the most recent alerts in memory, oldest evicted first.
// It is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	max   int
	items []telemetry.Alert
}

// NewHistory creates a History holding at most capacity alerts. A capacity
// of 0 keeps nothing.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{max: capacity}
}

// Persist records a. It never fails.
func (h *History) Persist(_ context.Context, a telemetry.Alert) error {
	if h.max == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, a)
	if len(h.items) > h.max {
		h.items = h.items[len(h.items)-h.max:]
	}
	return nil
}

// Recent returns alerts newest first, optionally filtered to one device.
// limit <= 0 returns all of them.
func (h *History) Recent(limit int, deviceID *int64) []telemetry.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]telemetry.Alert, 0, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		a := h.items[i]
		if deviceID != nil && a.DeviceID != *deviceID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Cap returns the most alerts History will hold.
func (h *History) Cap() int { return h.max }

// Len returns the number of stored alerts.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
