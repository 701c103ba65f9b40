// memory.go -- In-process stores for development and tests.
//
// MemoryUserStore mirrors PostgresStore's upsert semantics under a mutex.
// MemorySessionStore is a bounded, expiring LRU used when REDIS_URL is unset.
// Neither survives a restart.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryUserStore keeps users in a map keyed by external subject identifier.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

// NewMemoryUserStore returns an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*User)}
}

// UpsertUserBySubject creates or reconciles the user for p.Subject.
// The whole read-check-write runs under one lock, so concurrent first logins
// for the same subject produce one record.
func (m *MemoryUserStore) UpsertUserBySubject(_ context.Context, id uuid.UUID, p LoginProfile, now time.Time) (*User, error) {
	if p.Subject == "" {
		return nil, ErrEmptySubject
	}
	now = now.UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[p.Subject]
	if !ok {
		u = &User{
			ID:                id,
			ExternalSubjectID: p.Subject,
			Email:             nullable(p.Email),
			DisplayName:       nullable(p.DisplayName),
			PictureURL:        nullable(p.PictureURL),
			LastLoginAt:       now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		m.users[p.Subject] = u
	} else {
		ApplyLogin(u, p, now)
	}

	out := *u
	return &out, nil
}

// GetUserBySubject returns a copy of the stored user.
func (m *MemoryUserStore) GetUserBySubject(_ context.Context, subject string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[subject]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// Count returns the number of stored users.
func (m *MemoryUserStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// CheckHealth reports ErrStoreDisabled; there is no durable store to ping.
func (m *MemoryUserStore) CheckHealth(context.Context) error {
	return ErrStoreDisabled
}

// MemorySessionStore holds session payloads in a size-bounded LRU.
// Each entry carries its own deadline; the LRU's global TTL is only an upper bound.
type MemorySessionStore struct {
	cache *expirable.LRU[string, memorySession]
}

type memorySession struct {
	data      []byte
	expiresAt time.Time
}

// NewMemorySessionStore returns a store holding at most size sessions, none
// older than maxTTL.
func NewMemorySessionStore(size int, maxTTL time.Duration) *MemorySessionStore {
	return &MemorySessionStore{cache: expirable.NewLRU[string, memorySession](size, nil, maxTTL)}
}

// GetSession returns the payload for id, or ErrSessionNotFound.
func (m *MemorySessionStore) GetSession(_ context.Context, id string) ([]byte, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(s.expiresAt) {
		m.cache.Remove(id)
		return nil, ErrSessionNotFound
	}
	return s.data, nil
}

// SetSession stores a copy of data under id for ttl.
func (m *MemorySessionStore) SetSession(_ context.Context, id string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("caching session: non-positive ttl %s", ttl)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.cache.Add(id, memorySession{data: buf, expiresAt: time.Now().Add(ttl)})
	return nil
}

// DeleteSession removes id. Missing keys are not an error.
func (m *MemorySessionStore) DeleteSession(_ context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

// CheckHealth reports ErrStoreDisabled; there is no external cache to ping.
func (m *MemorySessionStore) CheckHealth(context.Context) error {
	return ErrStoreDisabled
}
