// Package syncclient presents a selected credential to the backend's identity
// endpoint and reports what happened.
//
// One GET per credential, no retries, no timeout beyond the transport's.
// Cascading across credential tiers lives in SyncSession.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MGallo-Code/ferry/internal/credential"
	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/store"
)

// MePath is the backend identity endpoint, relative to the backend base URL.
const MePath = "/api/v1/auth/me"

// maxErrorBody caps how much of a non-2xx body is read for the detail message.
const maxErrorBody = 4 << 10

// Outcome is the tri-state result of one sync attempt.
type Outcome int

const (
	Synced Outcome = iota + 1
	Deferred
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case Deferred:
		return "deferred"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one sync attempt.
// User is set only for Synced. StatusCode is zero unless the backend answered.
type Result struct {
	Outcome    Outcome
	User       *store.User
	Method     credential.Kind
	StatusCode int
	Reason     string
	Hint       string
	Err        error
}

// AuthRejected reports whether the backend refused the credential itself,
// which is the only failure worth trying the next tier for.
func (r Result) AuthRejected() bool {
	return r.Outcome == Failed && (r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden)
}

// Client calls the backend identity endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for baseURL using http.DefaultClient's transport.
func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{}}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Sync presents cred once. None returns Deferred without a network call.
func (c *Client) Sync(ctx context.Context, cred credential.Selected) Result {
	if cred.Kind == credential.None || cred.Token == "" {
		return Result{Outcome: Deferred, Method: credential.None, Reason: "no session"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+MePath, nil)
	if err != nil {
		return Result{Outcome: Failed, Method: cred.Kind, Reason: "building request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Result{
			Outcome: Failed,
			Method:  cred.Kind,
			Reason:  "backend unreachable",
			Hint:    fmt.Sprintf("is the resource server running at %s?", c.BaseURL),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readDetail(resp.Body)
		return Result{
			Outcome:    Failed,
			Method:     cred.Kind,
			StatusCode: resp.StatusCode,
			Reason:     detail,
			Err:        fmt.Errorf("backend returned %d: %s", resp.StatusCode, detail),
		}
	}

	var u store.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Result{Outcome: Failed, Method: cred.Kind, StatusCode: resp.StatusCode, Reason: "undecodable user record", Err: err}
	}
	if u.ExternalSubjectID == "" {
		return Result{Outcome: Failed, Method: cred.Kind, StatusCode: resp.StatusCode, Reason: "undecodable user record",
			Err: errors.New("user record missing external_subject_id")}
	}
	return Result{Outcome: Synced, User: &u, Method: cred.Kind, StatusCode: resp.StatusCode}
}

// SyncSession walks the credential tiers for s in preference order, one call
// per available credential, stopping at the first result that is not an
// authentication rejection. No available credential yields Deferred.
func (c *Client) SyncSession(ctx context.Context, s *session.Identity, now time.Time) Result {
	candidates := credential.Candidates(s, now)
	if len(candidates) == 0 {
		return Result{
			Outcome: Deferred,
			Method:  credential.None,
			Reason:  "no credential available",
			Hint:    "user will sync on first real API call",
		}
	}

	var last Result
	for _, cred := range candidates {
		last = c.Sync(ctx, cred)
		if !last.AuthRejected() {
			return last
		}
		if ctx.Err() != nil {
			break
		}
	}
	return last
}

// readDetail extracts {"detail": "..."} from an error body, falling back to
// the trimmed body text.
func readDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var e struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Detail != "" {
		return e.Detail
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return "no detail"
}
