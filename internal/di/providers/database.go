package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the SQL store with shutdown capability.
type StoreHandle struct {
	*sqlstore.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the catalog database and applies pending migrations.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	st, err := sqlstore.Open(sqlstore.Config{
		Dialect: dialect,
		Path:    cfg.Database.Path,
		DSN:     cfg.Database.DSN,
	}, log.Component("store"))
	if err != nil {
		return nil, err
	}

	if dialect == sqlstore.DialectSQLite {
		log.Info("Database initialized", "driver", dialect, "path", cfg.Database.Path)
	} else {
		log.Info("Database initialized", "driver", dialect)
	}

	return &StoreHandle{Store: st}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
