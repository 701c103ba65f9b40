// oidc.go -- Generic OIDC provider (discovery + OAuth2 code flow).
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider implements Provider against any OIDC issuer.
// Uses PKCE (S256) for all authorization requests.
type OIDCProvider struct {
	issuer   string
	clientID string
	audience string
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider fetches the issuer's discovery document and returns a provider.
// audience is optional; when set it is sent on every authorize request so the
// provider can issue an API access token for it.
// Makes an outbound HTTP request at startup; returns an error if unreachable.
func NewOIDCProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL, audience string) (*OIDCProvider, error) {
	if issuer == "" || clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("oidc config missing required fields")
	}
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDCProvider{
		issuer:   strings.TrimRight(issuer, "/"),
		clientID: clientID,
		audience: audience,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     p.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Name returns the issuer host.
func (p *OIDCProvider) Name() string {
	if u, err := url.Parse(p.issuer); err == nil && u.Host != "" {
		return u.Host
	}
	return p.issuer
}

// AuthCodeURL builds the consent page URL with state, PKCE S256 challenge and,
// when configured, the API audience.
func (p *OIDCProvider) AuthCodeURL(state, codeChallenge string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if p.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.audience))
	}
	return p.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens.
// Verifies the returned ID token signature against the issuer's JWKS, checks aud + exp.
// The access token is kept only when an audience was requested and it is a
// three-segment JWT; opaque userinfo-only tokens are useless to the backend.
func (p *OIDCProvider) Exchange(ctx context.Context, code, codeVerifier string) (*Tokens, error) {
	token, err := p.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verifying id token: %w", err)
	}

	var c struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Nickname      string `json:"nickname"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("extracting id token claims: %w", err)
	}
	if c.Sub == "" {
		return nil, errors.New("id token missing sub claim")
	}
	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("extracting raw id token claims: %w", err)
	}

	out := &Tokens{
		IDToken: rawIDToken,
		Claims: &Claims{
			Sub:           c.Sub,
			Email:         c.Email,
			EmailVerified: c.EmailVerified,
			Name:          c.Name,
			Nickname:      c.Nickname,
			Picture:       c.Picture,
		},
		RawClaims: raw,
	}
	if p.audience != "" && isJWT(token.AccessToken) {
		out.AccessToken = token.AccessToken
	}
	return out, nil
}

// LogoutURL returns <issuer>/v2/logout?client_id=..&returnTo=.. , the
// Auth0-style endpoint. Providers without it simply land the user on returnTo
// after showing their own page.
func (p *OIDCProvider) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("returnTo", returnTo)
	return p.issuer + "/v2/logout?" + q.Encode()
}

// isJWT reports whether tok has the three-segment JWT shape.
func isJWT(tok string) bool {
	return tok != "" && strings.Count(tok, ".") == 2
}
