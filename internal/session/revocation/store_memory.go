package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryList is the single-process implementation. Expired markers are
// dropped lazily on read.
type InMemoryList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewInMemoryList() *InMemoryList {
	return &InMemoryList{revoked: make(map[string]time.Time)}
}

func (l *InMemoryList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	l.mu.RLock()
	expiry, ok := l.revoked[jti]
	l.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		l.mu.Lock()
		delete(l.revoked, jti)
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}
