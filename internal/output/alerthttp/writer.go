package alerthttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Writer posts alert batches to a remote notification endpoint, such as
// a webhook receiver or an on-call router.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// Config configures the HTTP writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// envelope is the wire format. Receivers that only route on severity
// can read the top-level fields without decoding every alert.
type envelope struct {
	Source  string          `json:"source"`
	SentAt  time.Time       `json:"sent_at"`
	Count   int             `json:"count"`
	MaxTier string          `json:"max_tier"`
	Alerts  []*models.Alert `json:"alerts"`
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http alert URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// WriteAlerts posts one batch as a single envelope. Any non-2xx reply
// is an error so the dispatcher's retry policy applies.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	maxTier := maxSeverity(alerts)
	body, err := json.Marshal(envelope{
		Source:  "secureops360",
		SentAt:  time.Now().UTC(),
		Count:   len(alerts),
		MaxTier: maxTier,
		Alerts:  alerts,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert envelope: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SecureOps-Max-Tier", maxTier)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("alert endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)

	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	return nil
}

func maxSeverity(alerts []*models.Alert) string {
	var top models.SeverityTier
	for _, a := range alerts {
		if a.SeverityTier.Rank() > top.Rank() {
			top = a.SeverityTier
		}
	}
	if top == "" {
		return "unknown"
	}
	return string(top)
}
