package api

import (
	"github.com/filecatman/catalog/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Terms     *service.TermService
	Items     *service.ItemService
	Relations *service.RelationService
	Trees     *service.TreeService
	Catalog   *service.CatalogService // Item types, taxonomies and options
	Audit     *service.AuditService
	Search    *service.SearchService // Answers 409 when the index is disabled
	Transfer  *service.TransferService
}
