package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"polydash/clients/botapi"
	"polydash/config"

	"go.uber.org/zap"
)

// SnapshotFetcher fetches one status snapshot. Satisfied by botapi.BotApiClient.
type SnapshotFetcher interface {
	GetStatus(ctx context.Context) (*botapi.StatusSnapshot, error)
}

// Poller drives the status refresh loop. Each fetch is stamped with a
// monotonic generation; a response is applied only if no newer response
// landed while it was in flight, so a slow request can never overwrite
// fresher state.
type Poller struct {
	logger  *zap.Logger
	fetcher SnapshotFetcher
	timeout time.Duration

	onSnapshot func(*botapi.StatusSnapshot)
	onError    func(error)

	interval   atomic.Int64 // nanoseconds
	generation atomic.Uint64

	applyMu     sync.Mutex
	lastApplied uint64

	paused atomic.Bool

	kickCh     chan struct{}
	intervalCh chan time.Duration
}

// ensure Poller reacts to config hot-reloads
var _ config.ConfigObserver = (*Poller)(nil)

func NewPoller(
	logger *zap.Logger,
	fetcher SnapshotFetcher,
	cfg *config.Config,
	onSnapshot func(*botapi.StatusSnapshot),
	onError func(error),
) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Poller{
		logger:     logger,
		fetcher:    fetcher,
		timeout:    cfg.Bot.Timeout,
		onSnapshot: onSnapshot,
		onError:    onError,
		kickCh:     make(chan struct{}, 1),
		intervalCh: make(chan time.Duration, 1),
	}
	p.interval.Store(int64(cfg.Poller.StatusInterval))
	return p
}

// Interval returns the current poll interval.
func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// OnConfigUpdate picks up interval changes from the live config.
// Implements config.ConfigObserver interface.
func (p *Poller) OnConfigUpdate(cfg *config.Config) {
	newInterval := cfg.Poller.StatusInterval
	if time.Duration(p.interval.Swap(int64(newInterval))) == newInterval {
		return
	}

	p.logger.Info("poll interval updated", zap.Duration("interval", newInterval))
	select {
	case p.intervalCh <- newInterval:
	default:
	}
}

// Kick forces an immediate fetch, used right after a control action so
// the UI reflects it without waiting for the next tick.
func (p *Poller) Kick() {
	select {
	case p.kickCh <- struct{}{}:
	default:
	}
}

// Pause suspends ticking; a paused poller still honors Kick.
func (p *Poller) Pause() {
	p.paused.Store(true)
}

// Resume re-enables ticking.
func (p *Poller) Resume() {
	p.paused.Store(false)
	p.Kick()
}

// Paused reports whether the ticker is suspended.
func (p *Poller) Paused() bool {
	return p.paused.Load()
}

// Run polls until the context is canceled. Fetch failures are reported
// through onError and never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("status poller started", zap.Duration("interval", interval))

	// Initial poll
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("status poller shutting down")
			return
		case <-ticker.C:
			if p.paused.Load() {
				continue
			}
			p.poll(ctx)
		case <-p.kickCh:
			p.poll(ctx)
		case newInterval := <-p.intervalCh:
			ticker.Reset(newInterval)
		}
	}
}

// poll dispatches one generation-stamped fetch. The fetch runs in its own
// goroutine so a slow response cannot stall the tick loop; the guard in
// apply keeps an overtaken response from landing.
func (p *Poller) poll(ctx context.Context) {
	gen := p.generation.Add(1)
	go p.fetch(ctx, gen)
}

func (p *Poller) fetch(ctx context.Context, gen uint64) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snap, err := p.fetcher.GetStatus(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("status fetch failed", zap.Error(err))
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	// Check and apply in one critical section: releasing the lock
	// between the guard and the callback would let two overlapping
	// fetches that both passed the guard land in inverted order.
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	if gen <= p.lastApplied {
		p.logger.Debug("discarding stale snapshot",
			zap.Uint64("generation", gen),
			zap.Uint64("lastApplied", p.lastApplied),
		)
		return
	}
	p.lastApplied = gen
	if p.onSnapshot != nil {
		p.onSnapshot(snap)
	}
}
