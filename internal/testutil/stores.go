// stores.go
//
// Shared mock implementations of backend.UserStore and session.Store.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/MGallo-Code/ferry/internal/store"
	"github.com/gofrs/uuid/v5"
)

// MockUserStore implements backend.UserStore for tests.
// Always stateful...Users is a map keyed by subject, like a real store.
// Use *Err fields to inject errors for specific operations.
type MockUserStore struct {
	// Error injection...zero value means no error
	UpsertErr error
	GetErr    error
	HealthErr error

	Users map[string]*store.User // keyed by external subject id

	// UpsertCalls counts every UpsertUserBySubject call, failed ones included.
	UpsertCalls int

	mu sync.Mutex
}

// NewMockUserStore returns a MockUserStore seeded with the given users.
func NewMockUserStore(users ...*store.User) *MockUserStore {
	m := &MockUserStore{Users: make(map[string]*store.User)}
	for _, u := range users {
		m.Users[u.ExternalSubjectID] = u
	}
	return m
}

func (m *MockUserStore) UpsertUserBySubject(_ context.Context, id uuid.UUID, p store.LoginProfile, now time.Time) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	if p.Subject == "" {
		return nil, store.ErrEmptySubject
	}
	if m.Users == nil {
		m.Users = make(map[string]*store.User)
	}
	u, ok := m.Users[p.Subject]
	if !ok {
		u = &store.User{ID: id, ExternalSubjectID: p.Subject, CreatedAt: now, UpdatedAt: now}
		m.Users[p.Subject] = u
	}
	store.ApplyLogin(u, p, now)
	out := *u
	return &out, nil
}

func (m *MockUserStore) GetUserBySubject(_ context.Context, subject string) (*store.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[subject]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *MockUserStore) CheckHealth(context.Context) error {
	return m.HealthErr
}

// MockSessionStore implements session.Store for tests.
// Always stateful...Sessions is a map of raw payloads. TTLs are recorded, not enforced.
type MockSessionStore struct {
	// Error injection...zero value means no error
	GetSessionErr    error
	SetSessionErr    error
	DeleteSessionErr error
	HealthErr        error

	Sessions map[string][]byte
	TTLs     map[string]time.Duration

	mu sync.Mutex
}

// NewMockSessionStore returns an empty MockSessionStore ready for use.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		Sessions: make(map[string][]byte),
		TTLs:     make(map[string]time.Duration),
	}
}

func (m *MockSessionStore) GetSession(_ context.Context, id string) ([]byte, error) {
	if m.GetSessionErr != nil {
		return nil, m.GetSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return data, nil
}

func (m *MockSessionStore) SetSession(_ context.Context, id string, data []byte, ttl time.Duration) error {
	if m.SetSessionErr != nil {
		return m.SetSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Sessions == nil {
		m.Sessions = make(map[string][]byte)
		m.TTLs = make(map[string]time.Duration)
	}
	m.Sessions[id] = append([]byte(nil), data...)
	m.TTLs[id] = ttl
	return nil
}

func (m *MockSessionStore) DeleteSession(_ context.Context, id string) error {
	if m.DeleteSessionErr != nil {
		return m.DeleteSessionErr
	}
	m.mu.Lock()
	delete(m.Sessions, id)
	delete(m.TTLs, id)
	m.mu.Unlock()
	return nil
}

func (m *MockSessionStore) CheckHealth(context.Context) error {
	return m.HealthErr
}

// Len returns the number of stored sessions.
func (m *MockSessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sessions)
}
