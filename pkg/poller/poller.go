package poller

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RefreshFunc pulls fresh state from wherever it lives.
type RefreshFunc func(ctx context.Context) error

// Poller runs a RefreshFunc on a fixed interval and on demand.
// At most one refresh is in flight; overlapping requests are dropped.
type Poller struct {
	interval time.Duration
	refresh  RefreshFunc
	log      *zap.Logger

	inFlight atomic.Bool
	trigger  chan struct{}
}

func New(interval time.Duration, refresh RefreshFunc, log *zap.Logger) *Poller {
	return &Poller{
		interval: interval,
		refresh:  refresh,
		log:      log.Named("poller"),
		trigger:  make(chan struct{}, 1),
	}
}

// Run refreshes once, then on every tick and Trigger until ctx is done.
// A non-positive interval disables the ticker.
func (p *Poller) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			p.Refresh(ctx)
		case <-p.trigger:
			p.Refresh(ctx)
		}
	}
}

// Trigger asks Run for a refresh without waiting for the next tick.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Refresh runs the refresh now and reports whether it ran.
// Errors are logged, the previous state stays in place.
func (p *Poller) Refresh(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug("refresh already in flight")
		return false
	}
	defer p.inFlight.Store(false)

	if err := p.refresh(ctx); err != nil {
		p.log.Warn("refresh", zap.Error(err))
	}
	return true
}
