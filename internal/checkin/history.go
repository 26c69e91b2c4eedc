package checkin

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// ScanHistory suppresses repeated reads of the same code. Seen records key
// and reports whether it was already present; Forget drops it so the next
// scan is processed again.
type ScanHistory interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// HistoryProvider hands out the history owned by one terminal session.
type HistoryProvider interface {
	For(terminalID string) ScanHistory
}

// ScanKey fingerprints a raw scan so payload contents never end up as map
// or cache keys.
func ScanKey(terminalID, raw string) string {
	sum := blake3.Sum256([]byte(terminalID + "\x00" + raw))
	return hex.EncodeToString(sum[:])
}

type scanEntry struct {
	key  string
	seen time.Time
}

// RecentScans is a fixed-capacity FIFO of the last few scan keys. When ttl
// is positive, entries older than ttl no longer count as duplicates.
type RecentScans struct {
	mu      sync.Mutex
	entries []scanEntry
	next    int
	ttl     time.Duration
	now     func() time.Time
}

func NewRecentScans(capacity int, ttl time.Duration) *RecentScans {
	if capacity <= 0 {
		capacity = 5
	}
	return &RecentScans{
		entries: make([]scanEntry, capacity),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *RecentScans) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for i := range r.entries {
		entry := &r.entries[i]
		if entry.key != key {
			continue
		}
		if r.ttl > 0 && now.Sub(entry.seen) > r.ttl {
			entry.seen = now
			return false, nil
		}
		return true, nil
	}

	r.entries[r.next] = scanEntry{key: key, seen: now}
	r.next = (r.next + 1) % len(r.entries)
	return false, nil
}

func (r *RecentScans) Forget(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i] = scanEntry{}
		}
	}
	return nil
}

// SessionScans keeps one RecentScans per terminal, created on first use.
type SessionScans struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	sessions map[string]*RecentScans
}

func NewSessionScans(capacity int, ttl time.Duration) *SessionScans {
	return &SessionScans{
		capacity: capacity,
		ttl:      ttl,
		sessions: make(map[string]*RecentScans),
	}
}

func (s *SessionScans) For(terminalID string) ScanHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.sessions[terminalID]
	if !ok {
		history = NewRecentScans(s.capacity, s.ttl)
		s.sessions[terminalID] = history
	}
	return history
}
