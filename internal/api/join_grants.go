package api

import (
	"sync"
	"time"
)

const joinGrantTTL = 15 * time.Minute

// joinGrants remembers which couples a user looked up by exact join code. Joining a
// couple as a member requires a live grant.
type joinGrants struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[joinGrantKey]time.Time
}

type joinGrantKey struct {
	userID   string
	coupleID string
}

func newJoinGrants(ttl time.Duration) *joinGrants {
	return &joinGrants{
		ttl:     ttl,
		expires: make(map[joinGrantKey]time.Time),
	}
}

func (grants *joinGrants) allow(userID string, coupleID string, now time.Time) {
	grants.mu.Lock()
	defer grants.mu.Unlock()

	grants.pruneLocked(now)
	grants.expires[joinGrantKey{userID: userID, coupleID: coupleID}] = now.Add(grants.ttl)
}

func (grants *joinGrants) allowed(userID string, coupleID string, now time.Time) bool {
	grants.mu.Lock()
	defer grants.mu.Unlock()

	expiresAt, ok := grants.expires[joinGrantKey{userID: userID, coupleID: coupleID}]
	return ok && now.Before(expiresAt)
}

func (grants *joinGrants) pruneLocked(now time.Time) {
	for key, expiresAt := range grants.expires {
		if !now.Before(expiresAt) {
			delete(grants.expires, key)
		}
	}
}
