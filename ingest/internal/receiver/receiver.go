package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 64 << 10

// Publisher forwards an encoded event to the transport.
// *bus.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// Archiver stores the raw message. *archive.Archive satisfies it.
type Archiver interface {
	Store(ctx context.Context, ev telemetry.Event, body []byte, received time.Time) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithArchive stores every accepted message before it is published.
func WithArchive(a Archiver) Option {
	return func(h *Handler) { h.archive = a }
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxBodyBytes overrides the request body limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// Handler serves POST /data.
type Handler struct {
	pub     Publisher
	archive Archiver
	metrics *Metrics
	maxBody int64
	logger  *zap.Logger
	now     func() time.Time
}

// New returns a Handler publishing accepted messages through pub.
func New(pub Publisher, opts ...Option) *Handler {
	h := &Handler{
		pub:     pub,
		maxBody: DefaultMaxBodyBytes,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.fail(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	received := h.now()
	ev, err := telemetry.Decode(body, received)
	if err != nil {
		h.logger.Debug("receiver: invalid message", zap.Error(err))
		h.fail(w, http.StatusBadRequest, "Invalid data format")
		return
	}

	if h.archive != nil {
		if err := h.archive.Store(r.Context(), ev, body, received); err != nil {
			h.logger.Error("receiver: archive failed", zap.Int64("device_id", ev.DeviceID), zap.Error(err))
			h.fail(w, http.StatusInternalServerError, "archive unavailable")
			return
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid data format")
		return
	}
	start := time.Now()
	if err := h.pub.Publish(r.Context(), data); err != nil {
		h.logger.Error("receiver: publish failed", zap.Int64("device_id", ev.DeviceID), zap.Error(err))
		h.fail(w, http.StatusServiceUnavailable, "transport unavailable")
		return
	}
	h.metrics.published(time.Since(start))

	h.logger.Debug("receiver: message accepted", zap.Int64("device_id", ev.DeviceID))
	h.respond(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) fail(w http.ResponseWriter, code int, msg string) {
	h.respond(w, code, map[string]string{"error": msg})
}

func (h *Handler) respond(w http.ResponseWriter, code int, v any) {
	h.metrics.request(code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
