package window

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// DefaultSize is the per-device window length used when none is configured.
const DefaultSize = 10

// ring is a fixed-capacity FIFO of events for one device.
type ring struct {
	buf  []telemetry.Event
	head int // index of the oldest event
	n    int
}

func newRing(size int) *ring {
	return &ring{buf: make([]telemetry.Event, size)}
}

func (r *ring) push(ev telemetry.Event) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = ev
		r.n++
		return
	}
	// Full: overwrite the oldest slot and advance head.
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
}

// slice returns the events oldest-first in a freshly allocated slice.
func (r *ring) slice() []telemetry.Event {
	out := make([]telemetry.Event, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Store holds the recent-event window for every device seen so far, keyed by
// device_id.
//
// Store is safe for concurrent use. The engine has a single writer (the
// consumer loop); the lock lets the HTTP API read windows while it runs and
// gives per-device mutual exclusion if more writers are ever added.
type Store struct {
	mu      sync.Mutex
	size    int
	devices map[int64]*ring

	// bounded replaces devices when MaxDevices > 0.
	bounded *lru.Cache[int64, *ring]
	evicted uint64

	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxDevices bounds the number of tracked devices. When a new device
// arrives at the bound, the least recently updated device's window is
// dropped. n <= 0 means unbounded.
func WithMaxDevices(n int) Option {
	return func(s *Store) {
		if n <= 0 {
			return
		}
		// lru.NewWithEvict only fails for a non-positive size.
		c, _ := lru.NewWithEvict[int64, *ring](n, func(id int64, _ *ring) {
			s.evicted++
			s.logger.Debug("window: evicted least recently used device", zap.Int64("device_id", id))
		})
		s.bounded = c
	}
}

// WithLogger sets the logger used for eviction messages.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store whose windows hold at most size events.
// A non-positive size falls back to DefaultSize.
func New(size int, opts ...Option) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	s := &Store{
		size:    size,
		devices: make(map[int64]*ring),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size returns the maximum window length.
func (s *Store) Size() int { return s.size }

// Update appends ev to the window of deviceID, evicting the oldest event first
// if the window is already full.
func (s *Store) Update(deviceID int64, ev telemetry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookup(deviceID)
	if !ok {
		r = newRing(s.size)
		s.insert(deviceID, r)
	}
	r.push(ev)
}

// Window returns a copy of the current window for deviceID, oldest first.
// An unknown device has an empty window.
func (s *Store) Window(deviceID int64) []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.peek(deviceID)
	if !ok {
		return []telemetry.Event{}
	}
	return r.slice()
}

// Len returns the number of events currently held for deviceID.
func (s *Store) Len(deviceID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.peek(deviceID)
	if !ok {
		return 0
	}
	return r.n
}

// Count returns the number of tracked devices.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bounded != nil {
		return s.bounded.Len()
	}
	return len(s.devices)
}

// Devices returns the ids of all tracked devices in ascending order.
func (s *Store) Devices() []int64 {
	s.mu.Lock()
	var ids []int64
	if s.bounded != nil {
		ids = s.bounded.Keys()
	} else {
		ids = make([]int64, 0, len(s.devices))
		for id := range s.devices {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Evicted returns how many device windows have been dropped by the device
// bound since the store was created.
func (s *Store) Evicted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// lookup finds a device window and, when bounded, marks it recently used.
func (s *Store) lookup(id int64) (*ring, bool) {
	if s.bounded != nil {
		return s.bounded.Get(id)
	}
	r, ok := s.devices[id]
	return r, ok
}

// peek finds a device window without touching recency.
func (s *Store) peek(id int64) (*ring, bool) {
	if s.bounded != nil {
		return s.bounded.Peek(id)
	}
	r, ok := s.devices[id]
	return r, ok
}

func (s *Store) insert(id int64, r *ring) {
	if s.bounded != nil {
		s.bounded.Add(id, r)
		return
	}
	s.devices[id] = r
}
