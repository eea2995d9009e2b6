package broadcast

import (
	"sync"
	"time"
)

// LockTable implements the per-broadcast-type cool-down lock. A lock is a
// timestamp, not a mutex: it is never released early, so a batch that fails
// midway still suppresses duplicates for the full lock duration. That
// trade-off (missed retry window vs. double-messaging subscribers) is
// deliberate.
type LockTable struct {
	mu       sync.Mutex
	acquired map[string]time.Time
	duration time.Duration

	now func() time.Time // test seam
}

// NewLockTable constructs a table whose locks self-expire after duration.
func NewLockTable(duration time.Duration) *LockTable {
	return &LockTable{
		acquired: make(map[string]time.Time),
		duration: duration,
		now:      time.Now,
	}
}

// TryAcquire records now as the acquisition time for kind and returns true,
// unless a lock acquired within the duration is still active, in which case
// it returns false and changes nothing.
func (t *LockTable) TryAcquire(kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if at, ok := t.acquired[kind]; ok && now.Sub(at) < t.duration {
		return false
	}
	t.acquired[kind] = now
	return true
}

// Held reports whether a live lock exists for kind.
func (t *LockTable) Held(kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.acquired[kind]
	return ok && t.now().Sub(at) < t.duration
}
