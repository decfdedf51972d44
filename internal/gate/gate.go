// Package gate decides when a locally-intended start may be forwarded to
// the server. It keeps a host from starting a round while players are still
// mid-handshake, without blocking forever when the authoritative source
// under-reports.
package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mkbrennan/partyquiz/internal/trivia"
)

// DefaultGrace bounds how long a start stays blocked on roster sync lag.
const DefaultGrace = 1500 * time.Millisecond

// Decision is the gate's verdict on a start intent.
type Decision struct {
	CanStart bool
	// Graced is set when starting is permitted only because the grace
	// timeout elapsed while the roster lagged the authoritative count;
	// callers should surface it as a warning.
	Graced bool
	// Reason describes why the start is blocked; empty when allowed.
	Reason string
}

// BlockedError is the typed precondition failure returned to a caller whose
// start intent was rejected.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "start blocked: " + e.Reason
}

// Gate tracks roster synchronization against the authoritative count.
type Gate struct {
	clock clockwork.Clock
	grace time.Duration

	mu           sync.Mutex
	lastCount    int
	lastIncrease time.Time
}

// New creates a gate. A non-positive grace falls back to DefaultGrace.
func New(grace time.Duration, clock clockwork.Clock) *Gate {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{clock: clock, grace: grace}
}

// Observe must be called with every published view so the gate can note
// when the authoritative player count last increased.
func (g *Gate) Observe(view trivia.SessionView) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if view.AuthoritativePlayerCount > g.lastCount {
		g.lastCount = view.AuthoritativePlayerCount
		g.lastIncrease = g.clock.Now()
	}
}

// Evaluate decides whether a start intent may proceed for the given view.
func (g *Gate) Evaluate(view trivia.SessionView) Decision {
	if view.Phase != trivia.PhaseWaiting {
		return Decision{Reason: fmt.Sprintf("session is %s, not waiting", view.Phase)}
	}
	if len(view.Players) == 0 {
		return Decision{Reason: "no players have joined yet"}
	}
	if len(view.Players) >= view.AuthoritativePlayerCount {
		return Decision{CanStart: true}
	}

	g.mu.Lock()
	lastIncrease := g.lastIncrease
	g.mu.Unlock()

	if lastIncrease.IsZero() || g.clock.Now().Sub(lastIncrease) >= g.grace {
		// The roster never caught up; let the host proceed with a warning
		// rather than blocking indefinitely on an under-reporting source.
		return Decision{CanStart: true, Graced: true}
	}

	return Decision{Reason: fmt.Sprintf(
		"waiting for players to sync: %d of %d joined",
		len(view.Players), view.AuthoritativePlayerCount,
	)}
}
