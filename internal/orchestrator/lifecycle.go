// Package orchestrator runs identity sync attempts at most once per page
// lifecycle and keeps their failures away from the page itself.
//
// lifecycle.go -- Per-lifecycle state machine.
package orchestrator

import (
	"sync"

	"github.com/MGallo-Code/ferry/internal/syncclient"
)

// State is a Lifecycle's position: Idle → Attempting → {Synced, Deferred, Failed}.
// The three outcomes are terminal; only a new Lifecycle starts over.
type State int

const (
	Idle State = iota
	Attempting
	Synced
	Deferred
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attempting:
		return "attempting"
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

// Terminal reports whether s is one of the three end states.
func (s State) Terminal() bool {
	return s == Synced || s == Deferred || s == Failed
}

// Lifecycle is the sync state for one page lifetime. Safe for concurrent use.
type Lifecycle struct {
	mu     sync.Mutex
	state  State
	result syncclient.Result
}

// NewLifecycle returns a Lifecycle in Idle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Begin moves Idle → Attempting and returns true exactly once per Lifecycle.
// Every later call returns false, whatever the current state.
func (l *Lifecycle) Begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Idle {
		return false
	}
	l.state = Attempting
	return true
}

// Finish records res and moves Attempting to the matching terminal state.
// Calls outside Attempting are ignored.
func (l *Lifecycle) Finish(res syncclient.Result) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Attempting {
		return l.state
	}
	l.result = res
	switch res.Outcome {
	case syncclient.Synced:
		l.state = Synced
	case syncclient.Deferred:
		l.state = Deferred
	default:
		l.state = Failed
	}
	return l.state
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Result returns the recorded result; zero until a terminal state is reached.
func (l *Lifecycle) Result() syncclient.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}
