// Package session holds the frontend's server-side authentication session.
//
// identity.go -- The session record produced at login.
package session

import "time"

// Identity is the server-held authentication session for one browser.
// Which credential fields are populated depends on identity-provider
// configuration at login time and must never be assumed.
type Identity struct {
	ID          string `json:"id"`
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PictureURL  string `json:"picture_url,omitempty"`

	// PrimaryCredential is the API access token. Present only when an API
	// audience was requested and the provider honored it.
	PrimaryCredential string `json:"primary_credential,omitempty"`
	// IdentityCredential is the provider's ID token.
	IdentityCredential string `json:"identity_credential,omitempty"`
	// Claims are the provider-issued ID token claims as received.
	Claims map[string]any `json:"claims,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticated reports whether the session names a principal. Nil-safe.
func (s *Identity) Authenticated() bool {
	return s != nil && s.PrincipalID != ""
}

// RawClaims returns the provider claims with sub/email/name/picture filled
// from the session fields wherever the provider left them out.
func (s *Identity) RawClaims() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(s.Claims)+4)
	for k, v := range s.Claims {
		out[k] = v
	}
	fill := func(k, v string) {
		if v == "" {
			return
		}
		if cur, ok := out[k]; !ok || cur == nil || cur == "" {
			out[k] = v
		}
	}
	fill("sub", s.PrincipalID)
	fill("email", s.Email)
	fill("name", s.DisplayName)
	fill("picture", s.PictureURL)
	return out
}
