// mocks.go
//
// Mock identity provider and syncer for frontend tests.
package testutil

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/MGallo-Code/ferry/internal/oauth"
	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/syncclient"
)

// MockProvider implements oauth.Provider without any network.
// Exchange returns Tokens (or ExchangeErr) and records what it was given.
type MockProvider struct {
	Tokens      *oauth.Tokens
	ExchangeErr error

	LastCode      string
	LastVerifier  string
	LastChallenge string

	mu sync.Mutex
}

func (m *MockProvider) Name() string { return "mock" }

// AuthCodeURL returns https://idp.test/authorize with state and challenge in the query.
func (m *MockProvider) AuthCodeURL(state, codeChallenge string) string {
	m.mu.Lock()
	m.LastChallenge = codeChallenge
	m.mu.Unlock()
	q := url.Values{}
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	return "https://idp.test/authorize?" + q.Encode()
}

func (m *MockProvider) Exchange(_ context.Context, code, codeVerifier string) (*oauth.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastCode = code
	m.LastVerifier = codeVerifier
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	return m.Tokens, nil
}

// LogoutURL returns https://idp.test/logout?returnTo=<returnTo>.
func (m *MockProvider) LogoutURL(returnTo string) string {
	return "https://idp.test/logout?returnTo=" + url.QueryEscape(returnTo)
}

// MockSyncer implements orchestrator.Syncer, returning Result on every call.
// Block, when non-nil, holds each call until it is closed.
type MockSyncer struct {
	Result syncclient.Result
	Block  chan struct{}

	calls    int
	sessions []*session.Identity
	mu       sync.Mutex
}

func (m *MockSyncer) SyncSession(ctx context.Context, s *session.Identity, _ time.Time) syncclient.Result {
	m.mu.Lock()
	m.calls++
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return syncclient.Result{Outcome: syncclient.Failed, Reason: "cancelled", Err: ctx.Err()}
		}
	}
	return m.Result
}

// Calls returns how many times SyncSession ran.
func (m *MockSyncer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastSession returns the session passed to the most recent call, or nil.
func (m *MockSyncer) LastSession() *session.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1]
}
