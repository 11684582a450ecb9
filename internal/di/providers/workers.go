package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/scheduler"
)

// SchedulerHandle wraps the audit scheduler with shutdown capability.
// Scheduler is nil when no schedule is configured.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	if h.Scheduler == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideScheduler provides the periodic count audit.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	auditHandle := do.MustInvoke[*AuditServiceHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Audit.Schedule == "" {
		log.Info("Scheduled count audit disabled")
		return &SchedulerHandle{}, nil
	}

	s, err := scheduler.New(cfg.Audit.Schedule, auditHandle.AuditService, log.Component("scheduler"))
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}

	return &SchedulerHandle{Scheduler: s}, nil
}
