package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// Target is one webhook destination.
type Target struct {
	Type string // slack | teams | http
	URL  string
}

// Webhook posts every alert to its targets. Targets with an empty URL are
// skipped.
type Webhook struct {
	targets []Target
	client  *http.Client
	logger  *zap.Logger
}

// NewWebhook creates a Webhook sink. A nil client uses http.DefaultClient;
// the per-call deadline comes from the Persist context.
func NewWebhook(targets []Target, client *http.Client, logger *zap.Logger) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{targets: targets, client: client, logger: logger}
}

// Persist delivers a to every target.
func (w *Webhook) Persist(ctx context.Context, a telemetry.Alert) error {
	var errs []error
	for _, t := range w.targets {
		if t.URL == "" {
			continue
		}

		var body []byte
		switch t.Type {
		case "slack":
			body = slackBody(a)
		case "teams":
			body = teamsBody(a)
		case "http":
			body = httpBody(a)
		default:
			w.logger.Warn("sink webhook: unknown type, skipping", zap.String("type", t.Type))
			continue
		}

		if err := w.post(ctx, t.URL, body); err != nil {
			errs = append(errs, fmt.Errorf("sink webhook %s: %w", t.Type, err))
			continue
		}
		w.logger.Debug("sink webhook: delivered",
			zap.String("type", t.Type),
			zap.String("rule", a.Rule),
			zap.Int64("device_id", a.DeviceID))
	}
	return errors.Join(errs...)
}

func slackBody(a telemetry.Alert) []byte {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*[ALERT]* device %d: %s (value %g)", a.DeviceID, a.Rule, a.Value),
	})
	return body
}

func teamsBody(a telemetry.Alert) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": kindColor(a.Kind),
		"summary":    a.Rule,
		"title":      fmt.Sprintf("iotwatch alert: %s", a.Rule),
		"text":       fmt.Sprintf("Device %d triggered %s rule %q with value %g.", a.DeviceID, a.Kind, a.Rule, a.Value),
	})
	return body
}

func httpBody(a telemetry.Alert) []byte {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return body
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func kindColor(k telemetry.Kind) string {
	if k == telemetry.KindContinuous {
		return "FF4F6A"
	}
	return "FFAB40"
}
