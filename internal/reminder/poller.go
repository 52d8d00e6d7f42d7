package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule polls every ten seconds so the configured minute is never missed.
const DefaultSchedule = "@every 10s"

// Poller runs the checker on a cron schedule.
type Poller struct {
	checker *Checker
	cron    *cron.Cron
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewPoller schedules checker on schedule, a cron spec or descriptor such as
// "@every 10s". An empty schedule uses DefaultSchedule.
func NewPoller(checker *Checker, schedule string) (*Poller, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	p := &Poller{
		checker: checker,
		now:     time.Now,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}

	if _, err := p.cron.AddFunc(schedule, func() { p.check(false) }); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start runs one check that ignores the configured time, as on launch, and
// then starts the schedule. Checks stop when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.check(true)
	p.cron.Start()
	slog.Info("Reminder poller started")
}

// Stop halts the schedule and waits for a running check, up to ctx's deadline.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	select {
	case <-p.cron.Stop().Done():
		slog.Info("Reminder poller stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reminder poller did not stop: %w", ctx.Err())
	}
}

// Run starts the poller and blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Stop(stopCtx)
}

func (p *Poller) check(ignoreTime bool) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	res, err := p.checker.Check(ctx, p.now(), ignoreTime)
	if err != nil {
		slog.Error("Reminder check failed", "error", err)
		return
	}
	slog.Debug("Reminder check", "outcome", res.Outcome, "ignore_time", ignoreTime)
}
