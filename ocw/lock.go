package ocw

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Locks are named in-memory locks that expire on their own, so that a worker
// that died half way through a task does not block it forever. The number of
// names held is bounded; the least recently used one is forgotten first.
type Locks struct {
	mu    sync.Mutex
	held  *lru.Cache
	ttl   time.Duration
	clock func() time.Time
}

func NewLocks(size int, ttl time.Duration) (*Locks, error) {
	held, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Locks{held: held, ttl: ttl, clock: time.Now}, nil
}

// TryLock takes the lock name unless it is held and not expired.
func (l *Locks) TryLock(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if until, ok := l.held.Get(name); ok && now.Before(until.(time.Time)) {
		return false
	}
	l.held.Add(name, now.Add(l.ttl))
	return true
}

// Unlock releases name before it expires.
func (l *Locks) Unlock(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held.Remove(name)
}
