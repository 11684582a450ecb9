// Package scheduler runs the periodic relation count audit.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/store"
)

// AuditRunner runs count audits. *service.AuditService implements it.
type AuditRunner interface {
	RunSync(ctx context.Context, trigger string, progress func(domain.AuditProgress)) (domain.AuditJob, error)
	Running() bool
}

// Scheduler triggers a count audit on a cron schedule. A tick that finds an
// audit already running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	audits   AuditRunner
	logger   *slog.Logger
	schedule string

	ctx    context.Context //nolint:containedctx // cancels a scheduled audit on Stop
	cancel context.CancelFunc

	mu      sync.Mutex
	lastRun time.Time
	started bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is a usable cron expression.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// New creates a scheduler for spec. It does not start ticking until Start.
func New(spec string, audits AuditRunner, logger *slog.Logger) (*Scheduler, error) {
	if err := ValidateSchedule(spec); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		audits:   audits,
		logger:   logger,
		schedule: spec,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the audit job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runAudit); err != nil {
		return fmt.Errorf("schedule count audit: %w", err)
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("scheduler started", "schedule", s.schedule, "next_run", s.NextRun())
	return nil
}

// Stop cancels a scheduled audit in progress and waits for the cron loop to
// finish, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun returns the next scheduled tick, or the zero time before Start.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastRun returns when the last scheduled audit began.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) runAudit() {
	if s.audits.Running() {
		s.logger.Info("scheduled count audit skipped, one is already running")
		return
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	job, err := s.audits.RunSync(s.ctx, service.TriggerSchedule, nil)
	switch {
	case err == nil:
		corrections := 0
		if job.Result != nil {
			corrections = len(job.Result.Corrections)
		}
		s.logger.Info("scheduled count audit finished", "job_id", job.ID, "corrections", corrections)
	case errors.Is(err, domainerrors.ErrConflict):
		// Lost the race against an API or CLI trigger.
		s.logger.Info("scheduled count audit skipped", "reason", err.Error())
	case errors.Is(err, store.ErrAuditCancelled):
		s.logger.Info("scheduled count audit cancelled", "job_id", job.ID)
	default:
		s.logger.Error("scheduled count audit failed", "job_id", job.ID, "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
