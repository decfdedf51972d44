// Package poller implements the fallback pull loop used while the push
// connection is not healthy. Every fetched snapshot goes through the same
// reconciler merge path as push events, so a poll result never needs
// special-cased precedence.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/snapshot"
)

// MinInterval is the hard floor on the poll interval; it prevents runaway
// calls if Start is invoked reentrantly with a tiny value.
const MinInterval = time.Second

// FetchFunc retrieves the authoritative snapshot.
type FetchFunc func(ctx context.Context) (snapshot.Document, error)

// ApplyFunc feeds a snapshot into the reconciler.
type ApplyFunc func(snapshot.Document)

// Poller periodically fetches the authoritative snapshot and applies it.
type Poller struct {
	fetch FetchFunc
	apply ApplyFunc
	clock clockwork.Clock

	mu      sync.Mutex
	cancel  context.CancelFunc
	lastErr error
}

// New creates a stopped poller.
func New(fetch FetchFunc, apply ApplyFunc, clock clockwork.Clock) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{fetch: fetch, apply: apply, clock: clock}
}

// Start begins polling at the given interval, clamped to MinInterval.
// Calling Start while running restarts the loop with the new interval.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	if interval < MinInterval {
		interval = MinInterval
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(runCtx, interval)
}

// Stop halts the polling loop. Safe to call when not running.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()
}

// Running reports whether the poll loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// LastError returns the most recent fetch failure, cleared by a success.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// FetchOnce performs a single fetch-and-apply outside the loop; the engine
// uses it to prime the view when the push connection opens.
func (p *Poller) FetchOnce(ctx context.Context) {
	doc, err := p.fetch(ctx)

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("snapshot fetch failed")
		}
		return
	}
	p.apply(doc)
}

func (p *Poller) run(ctx context.Context, interval time.Duration) {
	log.Debug().Dur("interval", interval).Msg("fallback poller started")

	// Fetch immediately so a fresh session view does not wait a full tick.
	p.FetchOnce(ctx)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("fallback poller stopped")
			return
		case <-ticker.Chan():
			p.FetchOnce(ctx)
		}
	}
}
