package token

import (
	"sync"
	"time"
)

// Revocations holds the ids (jti) of access tokens ended early by a sign-out of
// all devices. An entry only needs to outlive the token it blocks.
type Revocations interface {
	Revoke(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	Prune() int
}

// MemoryRevocations keeps revoked ids in process memory. Each entry is dropped
// at the token's own expiry, and never later than one access-token lifetime
// after the revocation, so a forged or skewed exp cannot pin an entry forever.
type MemoryRevocations struct {
	lock    sync.RWMutex
	until   map[string]time.Time
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryRevocations builds the store. ttl is the access-token lifetime.
func NewMemoryRevocations(now func() time.Time, ttl time.Duration) *MemoryRevocations {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{
		until:   make(map[string]time.Time),
		ttl:     ttl,
		nowFunc: now,
	}
}

func (r *MemoryRevocations) Revoke(jti string, exp time.Time) error {
	until := exp
	if r.ttl > 0 {
		if limit := r.nowFunc().Add(r.ttl); limit.Before(until) {
			until = limit
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.until[jti] = until
	return nil
}

// IsRevoked reports whether jti is blocked right now. Entries past their
// deadline read as not revoked even before Prune removes them.
func (r *MemoryRevocations) IsRevoked(jti string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	until, ok := r.until[jti]
	return ok && r.nowFunc().Before(until)
}

// Prune removes entries past their deadline and returns how many went.
func (r *MemoryRevocations) Prune() int {
	now := r.nowFunc()
	r.lock.Lock()
	defer r.lock.Unlock()
	removed := 0
	for jti, until := range r.until {
		if !now.Before(until) {
			delete(r.until, jti)
			removed++
		}
	}
	return removed
}

func (r *MemoryRevocations) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.until)
}

// accessLedger records the live access tokens of each user so that signing out
// of all devices can revoke them.
type accessLedger struct {
	lock   sync.Mutex
	byUser map[string]map[string]time.Time
}

func newAccessLedger() *accessLedger {
	return &accessLedger{byUser: make(map[string]map[string]time.Time)}
}

func (l *accessLedger) track(userID, jti string, exp time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.byUser[userID] == nil {
		l.byUser[userID] = make(map[string]time.Time)
	}
	l.byUser[userID][jti] = exp
}

// take removes and returns the tokens of userID that are still live at now.
func (l *accessLedger) take(userID string, now time.Time) map[string]time.Time {
	l.lock.Lock()
	live := l.byUser[userID]
	delete(l.byUser, userID)
	l.lock.Unlock()

	for jti, exp := range live {
		if !exp.After(now) {
			delete(live, jti)
		}
	}
	return live
}

func (l *accessLedger) prune(now time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for userID, live := range l.byUser {
		for jti, exp := range live {
			if !exp.After(now) {
				delete(live, jti)
			}
		}
		if len(live) == 0 {
			delete(l.byUser, userID)
		}
	}
}
