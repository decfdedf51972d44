package reconcile

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/codec"
	"github.com/mkbrennan/partyquiz/internal/snapshot"
	"github.com/mkbrennan/partyquiz/internal/trivia"
)

// Options tunes merge heuristics that are deliberately overridable.
type Options struct {
	// TrustEmptyRoster applies an authoritative roster even when it is
	// empty while the session is active. The default (false) treats such
	// a roster as transient and ignores it, so the leaderboard does not
	// flicker empty during a reconnect race.
	TrustEmptyRoster bool
}

// Reconciler folds push events and pull snapshots into one canonical
// SessionView. It is the single writer of the view; merges are
// non-regressive so the two channels need no ordering guarantee.
type Reconciler struct {
	mu          sync.RWMutex
	view        trivia.SessionView
	opts        Options
	subscribers map[chan trivia.SessionView]struct{}
}

// New creates a reconciler with the empty view for a session.
func New(sessionCode string, opts Options) *Reconciler {
	return &Reconciler{
		view:        trivia.NewSessionView(sessionCode),
		opts:        opts,
		subscribers: make(map[chan trivia.SessionView]struct{}),
	}
}

// Snapshot returns a copy of the current view.
func (r *Reconciler) Snapshot() trivia.SessionView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.Clone()
}

// Subscribe returns a channel receiving every published view, seeded with
// the current one. The caller must invoke cancel to avoid leaks.
func (r *Reconciler) Subscribe() (<-chan trivia.SessionView, func()) {
	ch := make(chan trivia.SessionView, 8)

	r.mu.Lock()
	// Seed under the lock so no commit can land ahead of the initial view;
	// the fresh buffered channel cannot block here.
	ch <- r.view.Clone()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// ApplyEvent folds one inbound push event into the view. Unknown event
// types are ignored for forward compatibility; duplicates are safe because
// every merge is a keyed upsert.
func (r *Reconciler) ApplyEvent(env codec.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.view.Phase.Terminal() && env.Type != codec.EventSessionStats {
		return
	}

	next := r.view.Clone()
	changed := false

	switch env.Type {
	case codec.EventInitialState:
		var doc snapshot.Document
		if err := json.Unmarshal(env.Data, &doc); err != nil {
			log.Warn().Err(err).Str("session_code", r.view.SessionCode).Msg("dropping malformed initial_state payload")
			break
		}
		changed = r.mergeDocument(&next, doc, false)

	case codec.EventPlayerJoined:
		changed = mergeJoin(&next, env.Data)

	case codec.EventPlayerLeft:
		changed = mergeLeave(&next, env.Data)

	case codec.EventGameStarted:
		changed = setPhase(&next, trivia.PhaseActive)

	case codec.EventGamePaused:
		changed = setPhase(&next, trivia.PhasePaused)

	case codec.EventGameResumed:
		changed = setPhase(&next, trivia.PhaseActive)

	case codec.EventGameEnded:
		changed = setPhase(&next, trivia.PhaseEnded)

	case codec.EventQuestionStarted, codec.EventNewQuestion:
		changed = mergeQuestionPayload(&next, env.Data)
		if changed && next.Phase == trivia.PhaseWaiting {
			// A live question implies the round is underway even if the
			// game_started broadcast was lost.
			setPhase(&next, trivia.PhaseActive)
		}

	case codec.EventPlayerAnswered:
		changed = mergeAnswered(&next, env.Data)

	case codec.EventSessionStats:
		if len(env.Data) > 0 {
			next.Stats = env.Data
			changed = true
		}

	case codec.EventPong:
		// Liveness only; carries no state.

	case codec.EventError:
		log.Warn().
			Str("session_code", r.view.SessionCode).
			RawJSON("data", nonEmptyJSON(env.Data)).
			Msg("server reported error event")

	default:
		log.Debug().
			Str("session_code", r.view.SessionCode).
			Str("event_type", env.Type).
			Msg("ignoring unrecognized event type")
	}

	if changed {
		r.commitLocked(next)
	}
}

// ApplySnapshot folds one authoritative pull snapshot into the view using
// the same non-regressive rules as push events.
func (r *Reconciler) ApplySnapshot(doc snapshot.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.view.Phase.Terminal() {
		return
	}

	next := r.view.Clone()
	if r.mergeDocument(&next, doc, true) {
		r.commitLocked(next)
	}
}

// commitLocked bumps the version, replaces the view and publishes it.
func (r *Reconciler) commitLocked(next trivia.SessionView) {
	next.Version = r.view.Version + 1
	r.view = next

	published := next.Clone()
	for ch := range r.subscribers {
		select {
		case ch <- published:
		default:
			// Slow subscriber: drop its stale view so the latest wins.
			select {
			case <-ch:
			default:
			}
			ch <- published
		}
	}
}

func nonEmptyJSON(data []byte) []byte {
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}
