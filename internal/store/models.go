// models.go -- Shared domain types for the store package.
// Used by the Postgres and in-memory user stores and the session stores.
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrUserNotFound is returned by GetUserBySubject when no row matches.
var ErrUserNotFound = errors.New("user not found")

// ErrEmptySubject is returned by UpsertUserBySubject when the profile has no subject.
// The backend rejects such tokens before reaching the store; this guards direct callers.
var ErrEmptySubject = errors.New("empty subject")

// ErrSessionNotFound is returned by session stores when the key is absent or expired.
// Callers use errors.Is to distinguish a true miss from an infrastructure failure.
var ErrSessionNotFound = errors.New("session not found")

// ErrStoreDisabled is returned by CheckHealth on stores that have nothing to ping.
var ErrStoreDisabled = errors.New("store disabled")

// User represents a row in the users table (the canonical user record).
// Nullable columns are pointers, nil means SQL NULL.
type User struct {
	ID                uuid.UUID `json:"id"`
	ExternalSubjectID string    `json:"external_subject_id"`
	Email             *string   `json:"email"`
	DisplayName       *string   `json:"display_name"`
	PictureURL        *string   `json:"picture_url"`
	LastLoginAt       time.Time `json:"last_login_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LoginProfile is the identity data carried by a bearer credential.
// Empty strings mean "not provided" and never overwrite stored values.
type LoginProfile struct {
	Subject     string
	Email       string
	DisplayName string
	PictureURL  string
}

// ApplyLogin reconciles u with an incoming login at now.
// Always moves LastLoginAt; overwrites a profile field only when the incoming
// value is non-empty and differs. UpdatedAt moves only when a profile field changed.
// Reports whether any profile field changed.
func ApplyLogin(u *User, p LoginProfile, now time.Time) bool {
	changed := false
	changed = mergeField(&u.Email, p.Email) || changed
	changed = mergeField(&u.DisplayName, p.DisplayName) || changed
	changed = mergeField(&u.PictureURL, p.PictureURL) || changed

	u.LastLoginAt = now
	if changed {
		u.UpdatedAt = now
	}
	return changed
}

// mergeField sets *dst to v when v is non-empty and differs from the stored value.
func mergeField(dst **string, v string) bool {
	if v == "" {
		return false
	}
	if *dst != nil && **dst == v {
		return false
	}
	*dst = &v
	return true
}

// nullable returns nil for empty strings so they land as SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
