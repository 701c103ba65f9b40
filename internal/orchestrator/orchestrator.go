// orchestrator.go -- Render-time sync attempts.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MGallo-Code/ferry/internal/session"
	"github.com/MGallo-Code/ferry/internal/syncclient"
)

// DefaultAttemptTimeout bounds a render-time attempt once detached from its request.
const DefaultAttemptTimeout = 10 * time.Second

// Syncer runs the credential cascade for a session.
// Satisfied by *syncclient.Client.
type Syncer interface {
	SyncSession(ctx context.Context, s *session.Identity, now time.Time) syncclient.Result
}

// Orchestrator fires best-effort sync attempts without blocking the caller.
type Orchestrator struct {
	Syncer  Syncer
	Timeout time.Duration
	Now     func() time.Time

	wg sync.WaitGroup
}

// New returns an Orchestrator using DefaultAttemptTimeout.
func New(s Syncer) *Orchestrator {
	return &Orchestrator{Syncer: s, Timeout: DefaultAttemptTimeout, Now: time.Now}
}

// Attempt runs one sync for s under lc, synchronously. Returns false without
// calling the backend when lc has already begun. Failures and panics are
// logged and recorded on lc, never returned.
func (o *Orchestrator) Attempt(ctx context.Context, lc *Lifecycle, s *session.Identity) bool {
	if !lc.Begin() {
		return false
	}
	o.execute(ctx, lc, s)
	return true
}

// RenderAttempt starts Attempt in the background on a context detached from
// ctx's cancellation, so the page response never waits on the backend.
// Returns false when lc has already begun.
func (o *Orchestrator) RenderAttempt(ctx context.Context, lc *Lifecycle, s *session.Identity) bool {
	if !lc.Begin() {
		return false
	}
	bg := context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		timeout := o.Timeout
		if timeout <= 0 {
			timeout = DefaultAttemptTimeout
		}
		actx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()
		o.execute(actx, lc, s)
	}()
	return true
}

// Wait blocks until every background attempt has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute runs one sync for a Lifecycle already in Attempting.
func (o *Orchestrator) execute(ctx context.Context, lc *Lifecycle, s *session.Identity) {
	res := o.run(ctx, s)
	state := lc.Finish(res)
	logResult(res, state, s)
}

// run calls the Syncer, converting a panic into a Failed result.
func (o *Orchestrator) run(ctx context.Context, s *session.Identity) (res syncclient.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = syncclient.Result{Outcome: syncclient.Failed, Reason: "sync panicked", Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return o.Syncer.SyncSession(ctx, s, now())
}

func logResult(res syncclient.Result, state State, s *session.Identity) {
	principal := ""
	if s != nil {
		principal = s.PrincipalID
	}
	switch state {
	case Synced:
		slog.Info("identity sync complete", "principal", principal, "method", res.Method.String())
	case Deferred:
		slog.Info("identity sync deferred", "principal", principal, "reason", res.Reason, "hint", res.Hint)
	default:
		slog.Warn("identity sync failed", "principal", principal, "method", res.Method.String(),
			"status", res.StatusCode, "reason", res.Reason, "hint", res.Hint, "error", res.Err)
	}
}
