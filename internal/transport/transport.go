// Package transport owns the push connection to a session endpoint: one
// websocket per handle, with heartbeat, reconnection backoff and a single
// event stream consumed by the engine loop. Transport failures surface as
// state changes on that stream, never as errors unwinding a caller.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/codec"
)

// ErrNotConnected is returned by Send while the connection is not open.
var ErrNotConnected = errors.New("transport: not connected")

// State is the transport connection state machine.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// EventKind discriminates events on the transport stream.
type EventKind int

const (
	// EventStateChange reports a connection state transition.
	EventStateChange EventKind = iota
	// EventMessage carries one raw inbound envelope.
	EventMessage
)

// Event is one item on the transport event stream.
type Event struct {
	Kind    EventKind
	State   State
	Message []byte
	Code    int
	Reason  string
}

// Config holds transport connection tuning.
type Config struct {
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	MaxAttempts       int
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	EventBuffer       int

	// TerminalCloseCodes stop reconnection; everything else is treated
	// as recoverable.
	TerminalCloseCodes []int
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		BackoffBase:       3 * time.Second,
		BackoffCap:        10 * time.Second,
		MaxAttempts:       10,
		HeartbeatInterval: 15 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		EventBuffer:       256,
		TerminalCloseCodes: []int{
			websocket.CloseNormalClosure,
			CloseSessionNotFound,
		},
	}
}

// CloseSessionNotFound is the application close code the server sends when
// the session code does not exist. Retrying cannot help.
const CloseSessionNotFound = 4004

// WireConn is the subset of *websocket.Conn the transport needs, kept as an
// interface so tests can substitute a scripted connection.
type WireConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer establishes one wire connection.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (WireConn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) DialContext(ctx context.Context, url string, header http.Header) (WireConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Conn is one push connection handle for a session.
type Conn struct {
	id     string
	url    string
	header http.Header
	cfg    Config
	dialer Dialer
	clock  clockwork.Clock

	events chan Event

	mu     sync.Mutex
	state  State
	ws     WireConn
	closed bool
	cancel context.CancelFunc
}

// Option customizes a Conn, mainly for tests.
type Option func(*Conn)

// WithDialer substitutes the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

// WithClock substitutes the clock driving backoff and heartbeat timers.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Conn) { c.clock = clock }
}

// NewConn creates an unopened connection handle for an endpoint URL.
func NewConn(url string, header http.Header, cfg Config, opts ...Option) *Conn {
	c := &Conn{
		id:     uuid.New().String()[:8],
		url:    url,
		header: header,
		cfg:    cfg,
		dialer: gorillaDialer{},
		clock:  clockwork.NewRealClock(),
		state:  StateIdle,
	}
	if c.cfg.EventBuffer <= 0 {
		c.cfg.EventBuffer = 256
	}
	c.events = make(chan Event, c.cfg.EventBuffer)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the stream of transport events. The engine loop is the
// single consumer.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts the connect/serve/reconnect loop. Dial failures are not
// returned to the caller; they feed the retry schedule.
func (c *Conn) Open(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.cancel != nil {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
}

// Send writes one outbound envelope. While the connection is not open it is
// a no-op reporting ErrNotConnected; write failures on an open socket are
// handled internally by forcing a reconnect.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	ws := c.ws
	open := c.state == StateOpen && ws != nil
	c.mu.Unlock()

	if !open {
		return ErrNotConnected
	}

	ws.SetWriteDeadline(c.clock.Now().Add(c.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn().Err(err).Str("conn_id", c.id).Msg("write failed, forcing reconnect")
		ws.Close()
	}
	return nil
}

// Close shuts the handle down and disables auto-reconnect permanently.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	ws := c.ws
	c.state = StateClosing
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.setState(StateIdle, 0, "closed by caller")
}

func (c *Conn) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting, 0, "")

		ws, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			log.Warn().
				Err(err).
				Str("conn_id", c.id).
				Int("attempt", attempt).
				Msg("dial failed")
			if !c.scheduleRetry(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		c.attach(ws)
		c.setState(StateOpen, 0, "")
		log.Info().Str("conn_id", c.id).Str("url", c.url).Msg("push connection open")

		code, reason := c.serve(ctx, ws)
		c.detach()

		if ctx.Err() != nil {
			return
		}
		if c.isTerminalClose(code) {
			log.Info().
				Str("conn_id", c.id).
				Int("close_code", code).
				Str("reason", reason).
				Msg("terminal close, not reconnecting")
			c.setState(StateDisconnected, code, reason)
			return
		}

		attempt++
		log.Warn().
			Str("conn_id", c.id).
			Int("close_code", code).
			Str("reason", reason).
			Msg("push connection lost")
		if !c.scheduleRetry(ctx, attempt) {
			return
		}
	}
}

// scheduleRetry waits out the backoff delay for the given consecutive
// failure count. It reports false when retrying must stop.
func (c *Conn) scheduleRetry(ctx context.Context, attempt int) bool {
	if c.cfg.MaxAttempts > 0 && attempt >= c.cfg.MaxAttempts {
		log.Error().
			Str("conn_id", c.id).
			Int("attempts", attempt).
			Msg("max reconnect attempts exceeded")
		c.setState(StateDisconnected, 0, "max attempts exceeded")
		return false
	}

	delay := BackoffDelay(c.cfg.BackoffBase, c.cfg.BackoffCap, attempt)
	c.setState(StateReconnecting, 0, "")
	log.Debug().
		Str("conn_id", c.id).
		Dur("delay", delay).
		Int("attempt", attempt).
		Msg("scheduling reconnect")

	timer := c.clock.NewTimer(delay)
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		stopAndDrainTimer(timer)
		return false
	}
}

// BackoffDelay returns the delay before the k-th consecutive retry:
// base doubled per attempt, capped at limit.
func BackoffDelay(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

func (c *Conn) dial(ctx context.Context) (WireConn, error) {
	dialCtx := ctx
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}
	return c.dialer.DialContext(dialCtx, c.url, c.header)
}

// serve reads inbound messages until the connection fails, running the
// heartbeat alongside. Returns the close code and reason when known.
func (c *Conn) serve(ctx context.Context, ws WireConn) (int, string) {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeat(hbCtx, ws)

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code, closeErr.Text
			}
			return 0, err.Error()
		}
		c.emit(ctx, Event{Kind: EventMessage, Message: message})
	}
}

// heartbeat sends the application-level ping on a fixed interval. Replies
// confirm liveness but their absence is not a failure signal; only read or
// write errors drive reconnection.
func (c *Conn) heartbeat(ctx context.Context, ws WireConn) {
	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			ping, err := codec.EncodeCommand(codec.CommandPing, nil, c.clock.Now())
			if err != nil {
				return
			}
			ws.SetWriteDeadline(c.clock.Now().Add(c.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, ping); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("heartbeat write failed")
				ws.Close()
				return
			}
		}
	}
}

func (c *Conn) attach(ws WireConn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Conn) detach() {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()
}

func (c *Conn) setState(state State, code int, reason string) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	if c.closed && state != StateIdle && state != StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	select {
	case c.events <- Event{Kind: EventStateChange, State: state, Code: code, Reason: reason}:
	default:
		log.Warn().Str("conn_id", c.id).Str("state", string(state)).Msg("event buffer full, dropping state change")
	}
}

func (c *Conn) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Conn) isTerminalClose(code int) bool {
	for _, terminal := range c.cfg.TerminalCloseCodes {
		if code == terminal {
			return true
		}
	}
	return false
}

// stopAndDrainTimer safely stops a timer and drains its channel so no
// goroutine leaks across repeated open/close cycles.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
