package session

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Store backed by a TTL cache. Entries expire on
// their own; Count only sees live records. Suitable for single-node
// deployments and tests.
type Memory struct {
	cache *gocache.Cache
	now   func() time.Time
}

// NewMemory constructs an in-memory store. cleanup is how often expired
// entries are evicted; zero picks a minute.
func NewMemory(cleanup time.Duration) *Memory {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Memory{
		cache: gocache.New(gocache.NoExpiration, cleanup),
		now:   time.Now,
	}
}

func (m *Memory) Create(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session: record id is required")
	}
	ttl := rec.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return fmt.Errorf("session: record already expired")
	}
	m.cache.Set(rec.ID, rec, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	rec, ok := v.(Record)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Revoke(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

func (m *Memory) RevokeAll(_ context.Context, principalID string) error {
	for id, item := range m.cache.Items() {
		if rec, ok := item.Object.(Record); ok && rec.PrincipalID == principalID {
			m.cache.Delete(id)
		}
	}
	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	// Items skips expired entries that the janitor has not evicted yet.
	return len(m.cache.Items()), nil
}

var _ Store = (*Memory)(nil)
