package models

import (
	"fmt"
	"time"
)

// Actor identifies who performed the action described by an event.
type Actor struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id"`
	IP   string `json:"ip,omitempty"`
}

// Resource identifies what the action was performed against.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SecurityEvent is one immutable telemetry event as delivered by ingress.
// EventID plus TenantID identify the same logical event across redeliveries.
type SecurityEvent struct {
	EventID      string                 `json:"event_id"`
	TenantID     string                 `json:"tenant_id"`
	Source       string                 `json:"source"`
	Actor        Actor                  `json:"actor"`
	Action       string                 `json:"action"`
	Resource     Resource               `json:"resource"`
	SeverityHint int                    `json:"severity_hint,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	SchemaVer    string                 `json:"schema_ver,omitempty"`
	ArrivalTS    time.Time              `json:"arrival_ts"`
}

// TenantEventID returns the dedup and persistence key for the event.
func (e *SecurityEvent) TenantEventID() string {
	return e.TenantID + "/" + e.EventID
}

// PartitionKey groups events from one actor and source onto one partition.
func (e *SecurityEvent) PartitionKey() string {
	return e.Actor.ID + "#" + e.Source
}

// AssetKey returns the tenant-scoped asset context key, or "" when the
// event carries no resource identity.
func (e *SecurityEvent) AssetKey() string {
	if e.Resource.Type == "" || e.Resource.ID == "" {
		return ""
	}
	return e.TenantID + "/" + e.Resource.Type + "/" + e.Resource.ID
}

// PayloadString returns a payload field rendered as a string.
func (e *SecurityEvent) PayloadString(name string) string {
	if e == nil || e.Payload == nil {
		return ""
	}
	v, ok := e.Payload[name]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
