package watchlist

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule refreshes market rows every five minutes.
const DefaultSchedule = "@every 5m"

// Poller refreshes a tracker's market rows on a cron schedule. Results that
// arrive after Stop are dropped.
type Poller struct {
	tracker  *Tracker
	schedule string
	cron     *cron.Cron
	log      zerolog.Logger

	stopped atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPoller(t *Tracker, schedule string, log zerolog.Logger) *Poller {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Poller{
		tracker:  t,
		schedule: schedule,
		cron:     cron.New(),
		log:      log.With().Str("component", "watchlist-poller").Logger(),
	}
}

// Start loads once immediately and then on every tick.
func (p *Poller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	if _, err := p.cron.AddFunc(p.schedule, func() { p.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("register watchlist poll %q: %w", p.schedule, err)
	}

	p.tracker.RefreshEntries(ctx)
	p.tick(ctx)

	p.cron.Start()
	p.log.Info().Str("schedule", p.schedule).Msg("watchlist poller started")
	return nil
}

func (p *Poller) tick(ctx context.Context) {
	if p.stopped.Load() {
		return
	}
	rows, err := p.tracker.FetchRows(ctx)
	if p.stopped.Load() {
		p.log.Debug().Msg("dropping poll result after stop")
		return
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("watchlist poll failed")
	}
	p.tracker.ApplyRows(rows, err)
}

// Stop halts the schedule, cancels an in-flight fetch and waits for the
// running tick to return.
func (p *Poller) Stop() {
	p.stopped.Store(true)
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-p.cron.Stop().Done()
	p.log.Info().Msg("watchlist poller stopped")
}
