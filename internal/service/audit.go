package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/id"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// Audit triggers recorded on jobs.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// AuditService runs relation count audits, one at a time. Start runs a job
// on a worker goroutine; RunSync runs one in the caller's goroutine. Either
// way a second audit is refused while one is running.
type AuditService struct {
	store   *sqlstore.Store
	emitter store.EventEmitter
	logger  *slog.Logger

	// Worker lifecycle
	ctx    context.Context //nolint:containedctx // cancels running jobs on Shutdown
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	job       domain.AuditJob
	jobCancel context.CancelFunc // non-nil while a job runs
}

// NewAuditService creates a new audit service.
func NewAuditService(st *sqlstore.Store, emitter store.EventEmitter, logger *slog.Logger) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AuditService{
		store:   st,
		emitter: emitter,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		job:     domain.AuditJob{State: domain.AuditIdle},
	}
}

// Start launches an audit on a worker goroutine and returns the running
// job. It fails with a conflict error when an audit is already running.
func (s *AuditService) Start(trigger string) (domain.AuditJob, error) {
	ctx, job, err := s.claim(s.ctx, trigger)
	if err != nil {
		return job, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(ctx, nil)
	}()
	return job, nil
}

// RunSync runs an audit in the calling goroutine. progress, when not nil,
// is called after every term. The returned error wraps
// store.ErrAuditCancelled when ctx was cancelled.
func (s *AuditService) RunSync(ctx context.Context, trigger string, progress func(domain.AuditProgress)) (domain.AuditJob, error) {
	jobCtx, _, err := s.claim(ctx, trigger)
	if err != nil {
		return s.Status(), err
	}
	return s.run(jobCtx, progress)
}

// Cancel cancels the running audit. The job reports cancelled once the
// worker has rolled back.
func (s *AuditService) Cancel() (domain.AuditJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobCancel == nil {
		return s.job, domainerrors.Conflict("no count audit is running")
	}
	s.jobCancel()
	s.logger.Info("count audit cancel requested", "job_id", s.job.ID)
	return s.job, nil
}

// Status returns a snapshot of the running or most recent job.
func (s *AuditService) Status() domain.AuditJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// Running reports whether an audit is in progress.
func (s *AuditService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobCancel != nil
}

// Wait blocks until jobs started with Start have finished.
func (s *AuditService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels a running audit and waits for the worker, or for ctx.
func (s *AuditService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim takes the single audit slot and derives the job context from parent.
// The job is also cancelled when the service shuts down.
func (s *AuditService) claim(parent context.Context, trigger string) (context.Context, domain.AuditJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobCancel != nil {
		return nil, s.job, domainerrors.Conflictf("count audit %s is already running", s.job.ID)
	}
	if s.ctx.Err() != nil {
		return nil, s.job, domainerrors.Conflict("audit service is shutting down")
	}

	jobID, err := id.Generate("audit")
	if err != nil {
		return nil, s.job, err
	}

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	s.jobCancel = func() {
		stop()
		cancel()
	}

	s.job = domain.AuditJob{
		ID:        jobID,
		State:     domain.AuditRunning,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}

	s.logger.Info("count audit started", "job_id", jobID, "trigger", trigger)
	s.emitter.Emit(sse.NewAuditEvent(sse.EventAuditStarted, s.job))
	return ctx, s.job, nil
}

func (s *AuditService) run(ctx context.Context, progress func(domain.AuditProgress)) (domain.AuditJob, error) {
	result, err := s.store.AuditCounts(ctx, func(p domain.AuditProgress) {
		s.mu.Lock()
		s.job.Progress = p
		snapshot := s.job
		s.mu.Unlock()

		if progress != nil {
			progress(p)
		}
		// At most ~100 progress events per job.
		if step := max(1, p.Total/100); p.Done%step == 0 || p.Done == p.Total {
			s.emitter.Emit(sse.NewAuditEvent(sse.EventAuditProgress, snapshot))
		}
	})

	s.mu.Lock()
	finished := time.Now()
	s.job.FinishedAt = &finished

	var eventType sse.EventType
	switch {
	case err == nil:
		s.job.State = domain.AuditCompleted
		s.job.Result = &result
		eventType = sse.EventAuditCompleted
	case errors.Is(err, store.ErrAuditCancelled):
		s.job.State = domain.AuditCancelled
		eventType = sse.EventAuditCancelled
	default:
		s.job.State = domain.AuditFailed
		s.job.Error = err.Error()
		eventType = sse.EventAuditFailed
	}
	s.jobCancel()
	s.jobCancel = nil
	job := s.job
	s.mu.Unlock()

	elapsed := finished.Sub(job.StartedAt)
	switch job.State {
	case domain.AuditCompleted:
		s.logger.Info("count audit completed",
			"job_id", job.ID,
			"checked", result.Checked,
			"corrections", len(result.Corrections),
			"duration", elapsed)
	case domain.AuditCancelled:
		s.logger.Info("count audit cancelled, nothing committed", "job_id", job.ID, "done", job.Progress.Done)
	default:
		s.logger.Error("count audit failed", "job_id", job.ID, "error", err)
	}

	s.emitter.Emit(sse.NewAuditEvent(eventType, job))
	return job, err
}
