package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest"
	"claimforge/compliance/pkg/telemetry/logging"
)

// Rebuilder runs a rebuild of the rule snapshot. *gate.Gate implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context, kinds ...edits.Kind) (*ingest.Report, error)
}

// Scheduler rebuilds every edit kind on a cron schedule. Runs that would
// overlap a rebuild still in progress are skipped.
type Scheduler struct {
	rebuilder Rebuilder
	spec      string
	timeout   time.Duration
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewScheduler creates a Scheduler from the refresh configuration.
func NewScheduler(cfg config.RefreshConfig, rebuilder Rebuilder) *Scheduler {
	return &Scheduler{
		rebuilder: rebuilder,
		spec:      cfg.Schedule,
		timeout:   cfg.BuildTimeout,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    slog.Default().With("component", "ingest.scheduler"),
	}
}

// Start schedules rebuilds using a standard five-field cron expression,
// for example "0 4 * * 1" for Mondays at 04:00. An empty schedule does
// nothing. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec == "" {
		s.logger.Info("refresh schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.spec, err)
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("scheduling rebuild: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("refresh scheduler started", "schedule", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	ctx = logging.WithTrigger(ctx, "schedule")
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.InfoContext(ctx, "starting scheduled rebuild")
	report, err := s.rebuilder.Rebuild(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled rebuild failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "scheduled rebuild completed",
		"build_id", report.BuildID,
		"rows", report.Rows(),
	)
}

// Stop stops the scheduler and waits for a running rebuild to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("refresh scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled rebuild time, or nil when nothing is
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
