package api

import (
	"sync"
	"time"
)

// revocationList remembers signed-out token ids until the tokens would have expired anyway.
type revocationList struct {
	mu       sync.Mutex
	expiries map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{expiries: make(map[string]time.Time)}
}

func (list *revocationList) revoke(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}
	list.mu.Lock()
	defer list.mu.Unlock()
	list.expiries[tokenID] = expiresAt
}

func (list *revocationList) isRevoked(tokenID string, now time.Time) bool {
	list.mu.Lock()
	defer list.mu.Unlock()

	for id, expiresAt := range list.expiries {
		if !expiresAt.After(now) {
			delete(list.expiries, id)
		}
	}
	_, revoked := list.expiries[tokenID]
	return revoked
}
