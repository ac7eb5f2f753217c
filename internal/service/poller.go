package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultActiveInterval = time.Second
	DefaultIdleInterval   = 10 * time.Second

	defaultRefreshTimeout = 30 * time.Second
)

// Refresher runs one refresh cycle
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// ClientCounter reports how many event consumers are connected
type ClientCounter interface {
	ClientCount() int
}

// Poller refreshes periodically. It uses the active interval while at
// least one event consumer is connected and the idle interval otherwise.
type Poller struct {
	refresher Refresher
	clients   ClientCounter
	logger    zerolog.Logger

	mu     sync.Mutex
	active time.Duration
	idle   time.Duration

	wake chan struct{}
}

// NewPoller creates a poller; clients may be nil, in which case the
// active interval is always used
func NewPoller(r Refresher, clients ClientCounter, active, idle time.Duration, logger zerolog.Logger) *Poller {
	p := &Poller{
		refresher: r,
		clients:   clients,
		logger:    logger.With().Str("component", "poller").Logger(),
		wake:      make(chan struct{}, 1),
	}
	p.setIntervals(active, idle)
	return p
}

// SetIntervals changes the intervals and restarts the current wait
func (p *Poller) SetIntervals(active, idle time.Duration) {
	p.setIntervals(active, idle)
	p.Trigger()
}

func (p *Poller) setIntervals(active, idle time.Duration) {
	if active <= 0 {
		active = DefaultActiveInterval
	}
	if idle <= 0 {
		idle = DefaultIdleInterval
	}
	if idle < active {
		idle = active
	}

	p.mu.Lock()
	p.active, p.idle = active, idle
	p.mu.Unlock()
}

// Trigger cuts the current wait short
func (p *Poller) Trigger() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Interval is the wait before the next cycle
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients != nil && p.clients.ClientCount() == 0 {
		return p.idle
	}
	return p.active
}

// Run refreshes until ctx ends
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.Interval()).Msg("Poller started")
	defer p.logger.Info().Msg("Poller stopped")

	for {
		p.refresh(ctx)

		timer := time.NewTimer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, defaultRefreshTimeout)
	defer cancel()

	changed, err := p.refresher.Refresh(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Warn().Err(err).Msg("Refresh did not complete")
		return
	}
	if changed {
		p.logger.Debug().Msg("Refresh produced a new topology")
	}
}
