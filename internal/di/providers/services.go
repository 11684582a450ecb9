package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/treequery"
)

// ProvideTermService provides the term service.
func ProvideTermService(i do.Injector) (*service.TermService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTermService(storeHandle.Store, sseHandle.Manager, indexHandle.Indexer(),
		cfg.Catalog.CategoryLevels, log.Logger), nil
}

// ProvideItemService provides the item service.
func ProvideItemService(i do.Injector) (*service.ItemService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewItemService(storeHandle.Store, sseHandle.Manager, indexHandle.Indexer(), log.Logger), nil
}

// ProvideRelationService provides the relation service.
func ProvideRelationService(i do.Injector) (*service.RelationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRelationService(storeHandle.Store, sseHandle.Manager, indexHandle.Indexer(), log.Logger), nil
}

// ProvideTreeService provides the tree service.
func ProvideTreeService(i do.Injector) (*service.TreeService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	strategy, err := treequery.ParseStrategy(cfg.Catalog.TreeStrategy)
	if err != nil {
		return nil, err
	}

	return service.NewTreeService(storeHandle.Store, cfg.Catalog.CategoryLevels, strategy, log.Logger), nil
}

// ProvideCatalogService provides the item type, taxonomy and option service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, log.Logger), nil
}

// ProvideTransferService provides the XML import and export service.
func ProvideTransferService(i do.Injector) (*service.TransferService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTransferService(storeHandle.Store, sseHandle.Manager, indexHandle.Indexer(), log.Logger), nil
}

// AuditServiceHandle wraps the audit service so a running audit is
// cancelled and rolled back on shutdown.
type AuditServiceHandle struct {
	*service.AuditService
}

// Shutdown implements do.Shutdownable.
func (h *AuditServiceHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.AuditService.Shutdown(ctx)
}

// ProvideAuditService provides the count audit service.
func ProvideAuditService(i do.Injector) (*AuditServiceHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewAuditService(storeHandle.Store, sseHandle.Manager, log.Component("audit"))
	return &AuditServiceHandle{AuditService: svc}, nil
}
