package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/filecatman/catalog/internal/api"
	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	auditHandle := do.MustInvoke[*AuditServiceHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Terms:     do.MustInvoke[*service.TermService](i),
		Items:     do.MustInvoke[*service.ItemService](i),
		Relations: do.MustInvoke[*service.RelationService](i),
		Trees:     do.MustInvoke[*service.TreeService](i),
		Catalog:   do.MustInvoke[*service.CatalogService](i),
		Audit:     auditHandle.AuditService,
		Search:    do.MustInvoke[*service.SearchService](i),
		Transfer:  do.MustInvoke[*service.TransferService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, sseHandle.Manager, cfg.Server, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
