package history

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry hosts trackers for callers that cannot keep their own, such as
// HTTP clients. Idle sessions expire and the least recently used session is
// evicted once the registry is full.
type Registry struct {
	sessions *expirable.LRU[string, *Tracker]
	newID    func() string
}

// NewRegistry builds a registry holding at most size sessions for ttl each.
func NewRegistry(size int, ttl time.Duration, newID func() string) *Registry {
	if size <= 0 {
		size = 256
	}
	return &Registry{
		sessions: expirable.NewLRU[string, *Tracker](size, nil, ttl),
		newID:    newID,
	}
}

// Open starts a session bound to scope and returns its id.
func (r *Registry) Open(scope Scope) (string, *Tracker) {
	id := r.newID()
	tracker := NewTracker(scope)
	r.sessions.Add(id, tracker)
	return id, tracker
}

// Get returns the tracker of a live session.
func (r *Registry) Get(id string) (*Tracker, bool) {
	if id == "" {
		return nil, false
	}
	return r.sessions.Get(id)
}

// Close discards a session.
func (r *Registry) Close(id string) bool {
	return r.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}
