// provider.go -- OAuth provider interface and shared types.
package oauth

import "context"

// Claims holds the normalized identity claims from a verified ID token.
// Profile fields are optional, empty string means not provided.
type Claims struct {
	Sub           string // provider-specific stable subject (e.g. "auth0|abc")
	Email         string
	EmailVerified bool
	Name          string
	Nickname      string
	Picture       string // avatar URL
}

// Tokens is everything a successful code exchange yields.
// AccessToken is set only when an API audience was requested and the provider
// returned a JWT-shaped token for it; IDToken is always set.
type Tokens struct {
	AccessToken string
	IDToken     string
	Claims      *Claims
	// RawClaims is the full ID token claim set as issued.
	RawClaims map[string]any
}

// Provider is an OAuth2/OIDC identity provider.
// PKCE (RFC 7636) is required: callers pass the code_challenge to AuthCodeURL
// and the matching code_verifier to Exchange.
type Provider interface {
	// Name returns the provider identifier used in logs.
	Name() string

	// AuthCodeURL returns the redirect URL with state and PKCE code_challenge embedded.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades the authorization code for verified tokens and claims.
	Exchange(ctx context.Context, code, codeVerifier string) (*Tokens, error)

	// LogoutURL returns where to send the browser to end the provider session.
	LogoutURL(returnTo string) string
}
