// Package credential picks the bearer credential presented to the backend.
//
// Selection is pure inspection of the session: no network calls, no caching.
// Preference order is fixed: API access token, ID token, then a token
// synthesized from session data. The function is total over every session
// shape, including nil.
package credential

import (
	"log/slog"
	"strings"
	"time"

	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/tokens"
)

// Kind tags which tier a Selected credential came from.
type Kind int

const (
	None Kind = iota
	API
	Identity
	Synthesized
)

// String returns the method name reported by /api/sync-user.
func (k Kind) String() string {
	switch k {
	case API:
		return "api_credential"
	case Identity:
		return "identity_credential"
	case Synthesized:
		return "session_data"
	default:
		return "none"
	}
}

// MarshalText lets Kind serialize as its method name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Selected is one credential ready to present. Token is empty for None.
type Selected struct {
	Kind  Kind
	Token string
}

// Candidates returns every available credential for s in preference order.
// Empty when s is nil or has no principal and no provider-issued token.
func Candidates(s *session.Identity, now time.Time) []Selected {
	if s == nil {
		return nil
	}

	var out []Selected
	if tok := strings.TrimSpace(s.PrimaryCredential); tok != "" {
		out = append(out, Selected{Kind: API, Token: tok})
	}
	if tok := strings.TrimSpace(s.IdentityCredential); tok != "" {
		out = append(out, Selected{Kind: Identity, Token: tok})
	}
	if s.PrincipalID != "" {
		tok, err := tokens.Synthesize(tokens.SessionClaims{
			Subject: s.PrincipalID,
			Email:   s.Email,
			Name:    s.DisplayName,
			Picture: s.PictureURL,
		}, now)
		if err != nil {
			slog.Warn("could not synthesize credential", "error", err)
		} else {
			out = append(out, Selected{Kind: Synthesized, Token: tok})
		}
	}
	return out
}

// Select returns the most preferred available credential, or Kind None.
func Select(s *session.Identity, now time.Time) Selected {
	c := Candidates(s, now)
	if len(c) == 0 {
		return Selected{Kind: None}
	}
	return c[0]
}
