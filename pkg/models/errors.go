package models

import (
	"fmt"
	"strings"
)

// MalformedEventError reports an event missing required fields. Such
// events are rejected up front and never reach enrichment or scoring.
type MalformedEventError struct {
	Fields []string
}

func (e *MalformedEventError) Error() string {
	if len(e.Fields) == 0 {
		return "malformed event"
	}
	return fmt.Sprintf("malformed event: missing %s", strings.Join(e.Fields, ", "))
}

// ValidateEvent checks the required SecurityEvent fields and returns a
// MalformedEventError naming every missing one.
func ValidateEvent(e *SecurityEvent) error {
	if e == nil {
		return &MalformedEventError{Fields: []string{"event"}}
	}
	var missing []string
	if strings.TrimSpace(e.TenantID) == "" {
		missing = append(missing, "tenant_id")
	}
	if strings.TrimSpace(e.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(e.Actor.ID) == "" {
		missing = append(missing, "actor.id")
	}
	if strings.TrimSpace(e.Action) == "" {
		missing = append(missing, "action")
	}
	if strings.TrimSpace(e.Resource.Type) == "" {
		missing = append(missing, "resource.type")
	}
	if strings.TrimSpace(e.Resource.ID) == "" {
		missing = append(missing, "resource.id")
	}
	if len(missing) > 0 {
		return &MalformedEventError{Fields: missing}
	}
	return nil
}
