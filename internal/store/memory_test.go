package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- UpsertUserBySubject (memory) ---

func TestMemoryUpsertUserBySubject(t *testing.T) {
	upsertContract(t, NewMemoryUserStore(), func(...string) {})
}

func TestMemoryUserStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryUserStore()

	u, err := m.UpsertUserBySubject(ctx, mustNewID(t), LoginProfile{Subject: "idp|1", DisplayName: "Ada"}, at(0))
	if err != nil {
		t.Fatalf("UpsertUserBySubject failed: %v", err)
	}
	u.DisplayName = strPtr("mutated")

	got, err := m.GetUserBySubject(ctx, "idp|1")
	if err != nil {
		t.Fatalf("GetUserBySubject failed: %v", err)
	}
	if deref(got.DisplayName) != "Ada" {
		t.Errorf("stored record mutated through returned pointer: %s", deref(got.DisplayName))
	}
	if m.Count() != 1 {
		t.Errorf("Count: expected 1, got %d", m.Count())
	}
	if !errors.Is(m.CheckHealth(ctx), ErrStoreDisabled) {
		t.Error("CheckHealth: expected ErrStoreDisabled")
	}
}

// --- MemorySessionStore ---

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trip stores and retrieves payload", func(t *testing.T) {
		s := NewMemorySessionStore(10, time.Hour)
		payload := []byte(`{"principal_id":"idp|1"}`)
		if err := s.SetSession(ctx, "sid", payload, time.Minute); err != nil {
			t.Fatalf("SetSession failed: %v", err)
		}
		payload[0] = 'X'

		got, err := s.GetSession(ctx, "sid")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if string(got) != `{"principal_id":"idp|1"}` {
			t.Errorf("payload: got %s", got)
		}
	})

	t.Run("miss returns ErrSessionNotFound", func(t *testing.T) {
		s := NewMemorySessionStore(10, time.Hour)
		if _, err := s.GetSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("entry past its own ttl is gone", func(t *testing.T) {
		s := NewMemorySessionStore(10, time.Hour)
		if err := s.SetSession(ctx, "sid", []byte("x"), time.Millisecond); err != nil {
			t.Fatalf("SetSession failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		if _, err := s.GetSession(ctx, "sid"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after expiry, got %v", err)
		}
	})

	t.Run("delete removes entry", func(t *testing.T) {
		s := NewMemorySessionStore(10, time.Hour)
		s.SetSession(ctx, "sid", []byte("x"), time.Minute)
		if err := s.DeleteSession(ctx, "sid"); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if _, err := s.GetSession(ctx, "sid"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		s := NewMemorySessionStore(10, time.Hour)
		if err := s.SetSession(ctx, "sid", []byte("x"), 0); err == nil {
			t.Error("expected error for zero ttl")
		}
	})
}
