package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

func TestNormalizeFillsGeneratedFields(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	event := &models.SecurityEvent{
		TenantID: "acme",
		Source:   "auth-svc",
		Actor:    models.Actor{ID: "alice"},
		Action:   "login",
		Resource: models.Resource{Type: "vm", ID: "web-1"},
		Payload:  map[string]interface{}{"source_ip": "198.51.100.7"},
	}

	Normalize(event, now)

	require.NotEmpty(t, event.EventID)
	require.Equal(t, SchemaVersion, event.SchemaVer)
	require.Equal(t, now, event.ArrivalTS)
	require.Equal(t, "198.51.100.7", event.Actor.IP)
}

func TestNormalizeKeepsCallerAssignedIdentity(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	event := &models.SecurityEvent{
		EventID:   "evt-supplied",
		TenantID:  "acme",
		SchemaVer: "0.9",
		Actor:     models.Actor{ID: "alice", IP: "192.0.2.1"},
		Payload:   map[string]interface{}{"source_ip": "198.51.100.7"},
	}

	Normalize(event, now)

	require.Equal(t, "evt-supplied", event.EventID)
	require.Equal(t, "0.9", event.SchemaVer)
	require.Equal(t, "192.0.2.1", event.Actor.IP, "explicit actor ip wins over payload")
}

func TestDecodeEventRequiresAnEventID(t *testing.T) {
	now := time.Now()

	_, err := DecodeEvent([]byte(`{"tenant_id":"acme","source":"s","actor":{"id":"a"},"action":"x","resource":{"type":"vm","id":"web-1"}}`), now)
	var malformed *models.MalformedEventError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Fields, "event_id")
}

func TestDecodeEventStampsMissingArrival(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	event, err := DecodeEvent([]byte(`{
		"event_id": "evt-1",
		"tenant_id": "acme",
		"source": "auth-svc",
		"actor": {"id": "alice"},
		"action": "login",
		"resource": {"type": "vm", "id": "web-1"}
	}`), now)
	require.NoError(t, err)
	require.Equal(t, now, event.ArrivalTS)
	require.Equal(t, SchemaVersion, event.SchemaVer)

	_, err = DecodeEvent([]byte("junk"), now)
	require.Error(t, err)
}
