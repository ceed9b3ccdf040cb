package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationList remembers token ids that must be rejected before their natural expiry.
type RevocationList interface {
	Revoke(tokenID string, until time.Time)
	IsRevoked(tokenID string) bool
}

// noRevocation keeps tokens stateless: logout only discards the client copy.
type noRevocation struct{}

func (noRevocation) Revoke(string, time.Time) {}

func (noRevocation) IsRevoked(string) bool { return false }

// MemoryRevocationList is a process-local denylist. Expired entries are ignored on lookup and dropped by Run.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList(now func() time.Time) *MemoryRevocationList {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationList{entries: make(map[string]time.Time), now: now}
}

func (l *MemoryRevocationList) Revoke(tokenID string, until time.Time) {
	if tokenID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tokenID] = until
}

func (l *MemoryRevocationList) IsRevoked(tokenID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.entries[tokenID]
	return ok && l.now().Before(until)
}

// Sweep drops entries whose token has expired and returns how many were removed.
func (l *MemoryRevocationList) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, until := range l.entries {
		if !now.Before(until) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (l *MemoryRevocationList) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *MemoryRevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
