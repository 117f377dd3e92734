package runtime

import (
	"sync"
)

// registry indexes the live subscriptions of a synchronizer by id.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*subscriber
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*subscriber)}
}

// subscribers returns the active subscriptions in no particular order.
func (r *registry) subscribers() []*subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subscribers := make([]*subscriber, 0, len(r.sessions))
	for _, s := range r.sessions {
		subscribers = append(subscribers, s)
	}
	return subscribers
}

func (r *registry) subscribe(s *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

// unsubscribe reports whether id was registered.
func (r *registry) unsubscribe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
