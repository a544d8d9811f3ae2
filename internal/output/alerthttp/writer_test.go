package alerthttp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

func batch() []*models.Alert {
	return []*models.Alert{
		{AlertID: "a-1", TenantEventID: "acme/evt-1", SeverityTier: models.TierHigh, RiskFinal: 85},
		{AlertID: "a-2", TenantEventID: "acme/evt-2", SeverityTier: models.TierCritical, RiskFinal: 97},
	}
}

func TestWriteAlertsPostsEnvelopeWithTierHeader(t *testing.T) {
	var got envelope
	var tierHeader, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tierHeader = r.Header.Get("X-SecureOps-Max-Tier")
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer tok"}})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteAlerts(batch()); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got.Source != "secureops360" || got.Count != 2 || len(got.Alerts) != 2 {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if got.MaxTier != "Critical" || tierHeader != "Critical" {
		t.Fatalf("max tier not surfaced: body=%q header=%q", got.MaxTier, tierHeader)
	}
	if auth != "Bearer tok" {
		t.Fatalf("configured header not sent, got %q", auth)
	}
}

func TestWriteAlertsReportsEndpointErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteAlerts(batch()); err == nil {
		t.Fatal("expected an error for a 503 reply")
	}
}

func TestEmptyBatchSendsNothing(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteAlerts(nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request for an empty batch, got %d", calls.Load())
	}
}
