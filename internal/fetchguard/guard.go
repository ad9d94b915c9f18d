// Package fetchguard keeps at most one in-flight world fetch per room and world.
package fetchguard

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL bounds how long a key may stay held if its holder never releases
// it. It covers the worst-case fetch latency (3 × two 15s requests + backoff).
const DefaultTTL = 2 * time.Minute

// Guard hands out exclusive, expiring holds on a key.
// When ok is false the key is held elsewhere and release is a no-op.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Key composes the hold key for a room and canonical world id.
func Key(room, canonicalID string) string {
	return strings.TrimSpace(room) + ":" + strings.TrimSpace(canonicalID)
}

func noop() {}

// Nop never refuses.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), bool, error) { return noop, true, nil }

// Memory is an in-process Guard.
type Memory struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{held: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return noop, false, nil
	}
	exp := now.Add(m.ttl)
	m.held[key] = exp

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// a newer holder may own the key after our hold expired
			if cur, ok := m.held[key]; ok && cur.Equal(exp) {
				delete(m.held, key)
			}
		})
	}
	return release, true, nil
}

// Held reports the number of unexpired holds.
func (m *Memory) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, exp := range m.held {
		if now.Before(exp) {
			n++
			continue
		}
		delete(m.held, k)
	}
	return n
}
