package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iotwatch/iotwatch/engine/internal/consumer"
	"github.com/iotwatch/iotwatch/engine/internal/rules"
	"github.com/iotwatch/iotwatch/engine/internal/sink"
	"github.com/iotwatch/iotwatch/engine/internal/window"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000
)

// Deps are the engine components the API reads from.
type Deps struct {
	Store   *window.Store
	Rules   *rules.Set
	History *sink.History

	// State reports the consumer state. Nil reports Idle.
	State func() consumer.State

	// Archive serves /api/v1/alerts requests for more alerts than History
	// holds. Nil serves every request from History.
	Archive AlertReader

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// AlertReader reads stored alerts, newest first. *sink.Postgres satisfies it.
type AlertReader interface {
	Recent(ctx context.Context, limit int, deviceID *int64) ([]telemetry.Alert, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a Handler wired to deps and registers all routes.
func New(deps Deps) *Handler {
	h := &Handler{deps: deps, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/devices", h.listDevices)
	h.mux.HandleFunc("/api/v1/devices/", h.getDevice) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/rules", h.rules)
	if deps.Gatherer != nil {
		h.mux.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Health builds the health payload. The websocket hub sends it as its
// periodic stats message.
func (h *Handler) Health() HealthResponse {
	state := consumer.Idle
	if h.deps.State != nil {
		state = h.deps.State()
	}
	resp := HealthResponse{
		ConsumerState:  state.String(),
		DeviceCount:    h.deps.Store.Count(),
		EvictedDevices: h.deps.Store.Evicted(),
		RuleCount:      h.deps.Rules.Len(),
		AlertCount:     h.deps.History.Len(),
		WindowSize:     h.deps.Store.Size(),
	}
	switch state {
	case consumer.Consuming:
		resp.Status = "ok"
	case consumer.Faulted:
		resp.Status = "down"
	default:
		resp.Status = "degraded"
	}
	return resp
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := h.Health()
	code := http.StatusOK
	if resp.Status == "down" {
		code = http.StatusServiceUnavailable
	}
	jsonResp(w, code, resp)
}

// listDevices returns GET /api/v1/devices, ordered by device id.
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ids := h.deps.Store.Devices()
	out := make([]DeviceSummary, 0, len(ids))
	for _, id := range ids {
		win := h.deps.Store.Window(id)
		s := DeviceSummary{
			DeviceID:   id,
			Events:     len(win),
			WindowFull: len(win) == h.deps.Store.Size(),
		}
		if len(win) > 0 {
			latest := win[len(win)-1]
			s.Latest = &latest
		}
		out = append(out, s)
	}
	jsonResp(w, http.StatusOK, out)
}

// getDevice returns GET /api/v1/devices/{id}.
func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	if raw == "" {
		h.listDevices(w, r)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "device id must be an integer")
		return
	}

	win := h.deps.Store.Window(id)
	if len(win) == 0 {
		jsonErr(w, http.StatusNotFound, "device not found")
		return
	}
	jsonResp(w, http.StatusOK, DeviceResponse{
		DeviceID: id,
		Window:   win,
		Rules:    ruleProgress(h.deps.Rules.Rules(), id, win),
	})
}

// alerts returns GET /api/v1/alerts from the in-memory history, or from the
// archive when limit exceeds what the history can hold.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	limit := defaultAlertLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}
	var device *int64
	if v := q.Get("device_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "device_id must be an integer")
			return
		}
		device = &id
	}

	if h.deps.Archive != nil && limit > h.deps.History.Cap() {
		alerts, err := h.deps.Archive.Recent(r.Context(), limit, device)
		if err != nil {
			jsonErr(w, http.StatusServiceUnavailable, "alert archive unavailable")
			return
		}
		jsonResp(w, http.StatusOK, alerts)
		return
	}
	jsonResp(w, http.StatusOK, h.deps.History.Recent(limit, device))
}

// rules returns GET /api/v1/rules in evaluation order.
func (h *Handler) rules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rs := h.deps.Rules.Rules()
	out := make([]RuleResponse, 0, len(rs))
	for _, rule := range rs {
		resp := RuleResponse{Name: rule.Name(), Kind: string(rule.Kind()), Target: "*"}
		switch v := rule.(type) {
		case *rules.InstantRule:
			resp.Target = v.Target().String()
			resp.Condition = v.Condition().String()
		case *rules.ContinuousRule:
			resp.Target = v.Target().String()
			resp.Condition = v.Condition().String()
			resp.Window = v.Size()
		}
		out = append(out, resp)
	}
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
