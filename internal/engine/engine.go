// Package engine wires one session's transport connection, fallback
// poller, reconciler and lifecycle gate behind a small command surface.
// Exactly one instance of each exists per session view; every UI surface
// observes the same canonical state through it.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/codec"
	"github.com/mkbrennan/partyquiz/internal/dispatch"
	"github.com/mkbrennan/partyquiz/internal/gate"
	"github.com/mkbrennan/partyquiz/internal/poller"
	"github.com/mkbrennan/partyquiz/internal/reconcile"
	"github.com/mkbrennan/partyquiz/internal/snapshot"
	"github.com/mkbrennan/partyquiz/internal/transport"
	"github.com/mkbrennan/partyquiz/internal/trivia"
)

// Client roles accepted by the push endpoint.
const (
	RoleHost   = "web"
	RolePlayer = "mobile"
)

// Config describes one session attachment.
type Config struct {
	SessionCode string
	Role        string
	PlayerID    string // required for RolePlayer

	APIBaseURL string // e.g. http://localhost:8080
	WSBaseURL  string // e.g. ws://localhost:8080

	PollInterval    time.Duration
	SnapshotTimeout time.Duration
	Grace           time.Duration

	Transport transport.Config
	Reconcile reconcile.Options
}

// Engine is the per-session composition root and single event loop.
type Engine struct {
	cfg   Config
	clock clockwork.Clock

	conn       *transport.Conn
	reconciler *reconcile.Reconciler
	poll       *poller.Poller
	gate       *gate.Gate
	dispatcher *dispatch.Dispatcher

	mu           sync.Mutex
	connectivity trivia.ConnectivityState
	cancel       context.CancelFunc
	closed       bool
}

// Option customizes an engine, mainly for tests.
type Option func(*options)

type options struct {
	clock  clockwork.Clock
	dialer transport.Dialer
	fetch  poller.FetchFunc
}

// WithClock substitutes the clock for every timer the engine owns.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithDialer substitutes the websocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithFetch substitutes the authoritative snapshot fetch.
func WithFetch(fetch poller.FetchFunc) Option {
	return func(o *options) { o.fetch = fetch }
}

// New builds the engine for one session. It does not connect; call Run.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.SessionCode == "" {
		return nil, fmt.Errorf("engine: session code is required")
	}
	if cfg.Role == "" {
		cfg.Role = RoleHost
	}
	if cfg.Role == RolePlayer && cfg.PlayerID == "" {
		return nil, fmt.Errorf("engine: player role requires a player id")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	fetch := o.fetch
	if fetch == nil {
		client := snapshot.NewClient(cfg.APIBaseURL, cfg.SnapshotTimeout)
		code := cfg.SessionCode
		fetch = func(ctx context.Context) (snapshot.Document, error) {
			return client.Fetch(ctx, code)
		}
	}

	connOpts := []transport.Option{transport.WithClock(o.clock)}
	if o.dialer != nil {
		connOpts = append(connOpts, transport.WithDialer(o.dialer))
	}
	conn := transport.NewConn(pushURL(cfg), nil, cfg.Transport, connOpts...)

	reconciler := reconcile.New(cfg.SessionCode, cfg.Reconcile)

	e := &Engine{
		cfg:          cfg,
		clock:        o.clock,
		conn:         conn,
		reconciler:   reconciler,
		poll:         poller.New(fetch, reconciler.ApplySnapshot, o.clock),
		gate:         gate.New(cfg.Grace, o.clock),
		dispatcher:   dispatch.New(conn, o.clock),
		connectivity: trivia.ConnectivityConnecting,
	}
	return e, nil
}

// pushURL builds the duplex endpoint URL for a session code and role.
func pushURL(cfg Config) string {
	q := url.Values{}
	q.Set("code", cfg.SessionCode)
	q.Set("role", cfg.Role)
	if cfg.Role == RolePlayer {
		q.Set("player_id", cfg.PlayerID)
	}
	return fmt.Sprintf("%s/ws/session?%s", cfg.WSBaseURL, q.Encode())
}

// Run starts the transport, the fallback poller and the event loop. It
// returns immediately; Close tears everything down.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.closed || e.cancel != nil {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	// Pull is the primary source until the push connection reaches open.
	e.poll.Start(runCtx, e.cfg.PollInterval)
	e.conn.Open(runCtx)

	go e.loop(runCtx)

	log.Info().
		Str("session_code", e.cfg.SessionCode).
		Str("role", e.cfg.Role).
		Msg("session engine running")
}

// loop is the single-threaded dispatcher for everything that mutates the
// session view; the reconciler is only ever driven from here.
func (e *Engine) loop(ctx context.Context) {
	views, cancelViews := e.reconciler.Subscribe()
	defer cancelViews()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-e.conn.Events():
			switch ev.Kind {
			case transport.EventMessage:
				env, err := codec.Decode(ev.Message)
				if err != nil {
					log.Warn().
						Err(err).
						Str("session_code", e.cfg.SessionCode).
						Msg("dropping malformed message")
					continue
				}
				e.reconciler.ApplyEvent(env)
			case transport.EventStateChange:
				e.handleStateChange(ctx, ev)
			}

		case view, ok := <-views:
			if !ok {
				return
			}
			e.gate.Observe(view)
		}
	}
}

// handleStateChange tracks connectivity and swaps the primary source
// between push and pull.
func (e *Engine) handleStateChange(ctx context.Context, ev transport.Event) {
	connectivity := connectivityFor(ev.State)

	e.mu.Lock()
	changed := e.connectivity != connectivity
	e.connectivity = connectivity
	e.mu.Unlock()

	if changed {
		log.Info().
			Str("session_code", e.cfg.SessionCode).
			Str("connectivity", string(connectivity)).
			Msg("connectivity changed")
	}

	switch ev.State {
	case transport.StateOpen:
		// Prime the snapshot once, then let push take over.
		go e.poll.FetchOnce(ctx)
		e.poll.Stop()
	case transport.StateReconnecting, transport.StateDisconnected, transport.StateConnecting:
		if !e.poll.Running() {
			e.poll.Start(ctx, e.cfg.PollInterval)
		}
	}
}

func connectivityFor(state transport.State) trivia.ConnectivityState {
	switch state {
	case transport.StateConnecting:
		return trivia.ConnectivityConnecting
	case transport.StateOpen:
		return trivia.ConnectivityOpen
	case transport.StateReconnecting:
		return trivia.ConnectivityReconnecting
	default:
		return trivia.ConnectivityDisconnected
	}
}

// Snapshot returns the current canonical session view.
func (e *Engine) Snapshot() trivia.SessionView {
	return e.reconciler.Snapshot()
}

// Subscribe returns a stream of published session views.
func (e *Engine) Subscribe() (<-chan trivia.SessionView, func()) {
	return e.reconciler.Subscribe()
}

// Connectivity returns the UI-facing connection state.
func (e *Engine) Connectivity() trivia.ConnectivityState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectivity
}

// CanStart evaluates the lifecycle gate against the current view. The view
// is observed first so a count the subscription loop has not seen yet still
// starts the grace window instead of bypassing it.
func (e *Engine) CanStart() gate.Decision {
	view := e.reconciler.Snapshot()
	e.gate.Observe(view)
	return e.gate.Evaluate(view)
}

// StartRound forwards a start intent if the lifecycle gate allows it.
// A blocked start returns *gate.BlockedError with the reason.
func (e *Engine) StartRound() error {
	view := e.reconciler.Snapshot()
	e.gate.Observe(view)
	decision := e.gate.Evaluate(view)
	if !decision.CanStart {
		return &gate.BlockedError{Reason: decision.Reason}
	}
	if decision.Graced {
		log.Warn().
			Str("session_code", e.cfg.SessionCode).
			Msg("starting before roster caught up to authoritative count")
	}
	return e.dispatcher.StartRound()
}

// AdvanceQuestion moves to the next question.
func (e *Engine) AdvanceQuestion() error { return e.dispatcher.AdvanceQuestion() }

// PreviousQuestion moves back one question.
func (e *Engine) PreviousQuestion() error { return e.dispatcher.PreviousQuestion() }

// EndRound ends the game.
func (e *Engine) EndRound() error { return e.dispatcher.EndRound() }

// SubmitAnswer submits an answer for a question.
func (e *Engine) SubmitAnswer(questionID, value string) error {
	return e.dispatcher.SubmitAnswer(questionID, value)
}

// PressBuzzer signals a buzzer press.
func (e *Engine) PressBuzzer() error { return e.dispatcher.PressBuzzer() }

// RequestStats asks for a session_stats push.
func (e *Engine) RequestStats() error { return e.dispatcher.RequestStats() }

// PollerError exposes the last snapshot fetch failure, if any.
func (e *Engine) PollerError() error { return e.poll.LastError() }

// Close tears the session view down: transport, poller and all timers are
// cancelled as a group and auto-reconnect is disabled for good.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel := e.cancel
	e.mu.Unlock()

	e.conn.Close()
	e.poll.Stop()
	if cancel != nil {
		cancel()
	}
	log.Info().Str("session_code", e.cfg.SessionCode).Msg("session engine closed")
}
