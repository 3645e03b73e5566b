package consensus

import (
	"fmt"
	"sync"
)

// Mux routes the winning payload of each feed to the Router registered for
// it.
type Mux struct {
	mu     sync.RWMutex
	routes map[FeedID]Router
}

func NewMux() *Mux {
	return &Mux{routes: make(map[FeedID]Router)}
}

// Handle registers r for feed, replacing any previous router.
func (m *Mux) Handle(feed FeedID, r Router) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[feed] = r
}

func (m *Mux) OnConsensus(feed FeedID, payload []byte, round uint32) error {
	m.mu.RLock()
	r, ok := m.routes[feed]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no router for feed %d", feed)
	}
	return r.OnConsensus(feed, payload, round)
}
