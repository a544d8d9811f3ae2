package alertjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

func readTrail(t *testing.T, path string) []models.Alert {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trail: %v", err)
	}
	defer f.Close()

	var alerts []models.Alert
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var a models.Alert
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			t.Fatalf("decode trail line: %v", err)
		}
		alerts = append(alerts, a)
	}
	return alerts
}

func TestWriterAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.jsonl")

	first, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	batch := []*models.Alert{
		{AlertID: "a-1", TenantEventID: "acme/evt-1", SeverityTier: models.TierHigh, RiskFinal: 85, TS: time.Now().UTC()},
		{AlertID: "a-2", TenantEventID: "acme/evt-2", SeverityTier: models.TierCritical, RiskFinal: 97, TS: time.Now().UTC()},
	}
	if err := first.WriteAlerts(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A restart must append to the trail, never truncate it.
	second, err := NewWriter(path)
	if err != nil {
		t.Fatalf("reopen writer: %v", err)
	}
	if err := second.WriteAlerts([]*models.Alert{{AlertID: "a-3", TenantEventID: "acme/evt-3"}}); err != nil {
		t.Fatalf("write after reopen: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	alerts := readTrail(t, path)
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts in the trail, got %d", len(alerts))
	}
	if alerts[0].AlertID != "a-1" || alerts[2].AlertID != "a-3" {
		t.Fatalf("trail order wrong: %+v", alerts)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "alerts.jsonl"))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
