package alerts

import (
	"strings"
	"sync"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Throttle suppresses repeat alerts for one actor and tier within a
// cooldown window, bounding alert storms from a single noisy source.
// A zero cooldown disables throttling.
type Throttle struct {
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewThrottle creates a throttle with the given cooldown.
func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the alert may be dispatched now, recording the
// send time when it is.
func (t *Throttle) Allow(alert *models.Alert) bool {
	if t == nil || t.cooldown <= 0 {
		return true
	}

	key := throttleKey(alert)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.lastSent[key] = now

	if len(t.lastSent) > 4096 {
		t.prune(now)
	}
	return true
}

func (t *Throttle) prune(now time.Time) {
	for key, last := range t.lastSent {
		if now.Sub(last) >= t.cooldown {
			delete(t.lastSent, key)
		}
	}
}

// throttleKey scopes the cooldown to tenant, actor, and tier.
func throttleKey(alert *models.Alert) string {
	tenant := alert.TenantEventID
	if i := strings.IndexByte(tenant, '/'); i >= 0 {
		tenant = tenant[:i]
	}
	return tenant + "|" + alert.Actor.ID + "|" + string(alert.SeverityTier)
}
