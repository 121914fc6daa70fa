package compliance

import (
	"sync"
	"time"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/models"
)

type cooldownKey struct {
	TrackID int
	Kind    models.ViolationKind
}

// ViolationTracker rate-limits repeat alerts per (person track, violation
// kind). Entries older than sweepFactor cooldowns are evicted on a periodic
// sweep so the map stays bounded over long deployments.
type ViolationTracker struct {
	mu          sync.Mutex
	cooldown    time.Duration
	sweepFactor int
	lastAlert   map[cooldownKey]time.Time
	lastSweep   time.Time
}

func NewViolationTracker(cfg *config.Config) *ViolationTracker {
	return &ViolationTracker{
		cooldown:    cfg.AlertCooldown,
		sweepFactor: cfg.CooldownSweepFactor,
		lastAlert:   make(map[cooldownKey]time.Time),
	}
}

// ShouldAlert reports whether an alert for (trackID, kind) is allowed at
// now, and records now as the last alert time when it is. Allowed means no
// prior alert exists or more than one full cooldown has elapsed.
func (t *ViolationTracker) ShouldAlert(trackID int, kind models.ViolationKind, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked(now)

	key := cooldownKey{TrackID: trackID, Kind: kind}
	last, exists := t.lastAlert[key]
	if exists && now.Sub(last) <= t.cooldown {
		return false
	}

	t.lastAlert[key] = now
	return true
}

// Len is the number of live cooldown entries.
func (t *ViolationTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastAlert)
}

func (t *ViolationTracker) sweepLocked(now time.Time) {
	horizon := t.cooldown * time.Duration(t.sweepFactor)
	if now.Sub(t.lastSweep) < horizon {
		return
	}
	for key, last := range t.lastAlert {
		if now.Sub(last) > horizon {
			delete(t.lastAlert, key)
		}
	}
	t.lastSweep = now
}
