package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/observability"
)

// PollFunc performs one poll. It must honour ctx cancellation.
type PollFunc func(ctx context.Context) error

// Poll outcomes recorded in metrics.
const (
	PollOK       = "ok"
	PollError    = "error"
	PollSkipped  = "skipped"
	PollCanceled = "canceled"
)

// Poller runs a PollFunc on a fixed interval. At most one poll is in flight; ticks that
// arrive while a poll is running are skipped. Stop cancels the in-flight poll.
type Poller struct {
	name     string
	interval time.Duration
	fn       PollFunc
	logger   *zap.Logger
	metrics  *observability.Metrics

	inFlight atomic.Bool
	polls    sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	loop    chan struct{}
	stopped bool
}

// NewPoller builds a stopped poller.
func NewPoller(name string, interval time.Duration, fn PollFunc, logger *zap.Logger, metrics *observability.Metrics) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger.With(zap.String("feed", name)),
		metrics:  metrics,
	}
}

// Start polls once immediately, then on every interval until Stop or parent cancellation.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	if p.cancel != nil || p.stopped {
		p.mu.Unlock()
		return
	}
	p.ctx, p.cancel = context.WithCancel(parent)
	p.loop = make(chan struct{})
	ctx, loop := p.ctx, p.loop
	p.mu.Unlock()

	go func() {
		defer close(loop)
		p.tick(ctx)

		if p.interval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

// Trigger requests an immediate poll. It reports false when a poll is already running
// or the poller is not started.
func (p *Poller) Trigger() bool {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return false
	}
	return p.tick(ctx)
}

// Running reports whether a poll is in flight.
func (p *Poller) Running() bool {
	return p.inFlight.Load()
}

// Stop cancels the loop and any in-flight poll, then waits for both to return.
// A stopped poller cannot be restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, loop := p.cancel, p.loop
	p.stopped = true
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-loop
	p.polls.Wait()
}

// tick registers the poll under mu so Stop never waits on polls while one is added.
func (p *Poller) tick(ctx context.Context) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.mu.Unlock()
		p.metrics.RecordPoll(p.name, PollSkipped)
		p.logger.Debug("poll skipped; previous poll still in flight")
		return false
	}
	p.polls.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.polls.Done()
		defer p.inFlight.Store(false)

		err := p.fn(ctx)
		switch {
		case err == nil:
			p.metrics.RecordPoll(p.name, PollOK)
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			p.metrics.RecordPoll(p.name, PollCanceled)
		default:
			p.metrics.RecordPoll(p.name, PollError)
			p.logger.Warn("poll failed", zap.Error(err))
		}
	}()
	return true
}
