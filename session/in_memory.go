package session

import (
	"context"
	"time"

	"github.com/hupe1980/accountplan/core"
	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long an idle session is kept before eviction.
const DefaultTTL = 24 * time.Hour

// InMemoryStore is a volatile SessionStore backed by an expiring cache.
// Sessions are evicted after TTL without a Save and do not survive a
// restart. Each returned session is cloned to prevent external mutation of
// internal state.
type InMemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewInMemoryStore constructs an empty in‑memory session store. A zero ttl
// uses DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{cache: cache.New(ttl, ttl/4), ttl: ttl}
}

// Get returns a clone of the stored session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return v.(*core.Session).Clone(), nil
}

// Save stores a clone of the provided session snapshot and refreshes its TTL.
func (s *InMemoryStore) Save(_ context.Context, sess *core.Session) error {
	s.cache.Set(sess.ID, sess.Clone(), s.ttl)
	return nil
}

// Delete evicts the session. Deleting an unknown id is not an error.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Len reports the number of live sessions.
func (s *InMemoryStore) Len() int { return s.cache.ItemCount() }
