package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/logger"
	"github.com/filecatman/catalog/internal/search"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/store"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// SearchIndex is nil when search is disabled.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.SearchIndex == nil {
		return nil
	}
	return h.Close()
}

// Indexer returns the index as a write hook for services, or a no-op when
// search is disabled.
func (h *SearchIndexHandle) Indexer() store.SearchIndexer {
	if h.SearchIndex == nil {
		return store.NewNoopSearchIndexer()
	}
	return h.SearchIndex
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search disabled by configuration")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewSearchIndex(search.Options{
		Path:   cfg.Search.IndexPath,
		Logger: log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "path", cfg.Search.IndexPath, "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, storeHandle.Store, log.Logger), nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index in the background
// when the catalog already holds items or terms, e.g. after the index was
// recreated for a new mapping version.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchService := do.MustInvoke[*service.SearchService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !searchService.Enabled() {
		return
	}
	if docCount, _ := searchService.DocumentCount(); docCount > 0 {
		return
	}

	ctx := context.Background()
	items, err := storeHandle.CountItems(ctx, store.ItemFilter{})
	if err != nil {
		log.Warn("Could not count items for reindex check", "error", err)
		return
	}
	terms, err := storeHandle.ListAllTerms(ctx)
	if err != nil {
		log.Warn("Could not list terms for reindex check", "error", err)
		return
	}
	if items == 0 && len(terms) == 0 {
		return
	}

	log.Info("Search index is empty but the catalog is not, triggering reindex",
		"items", items,
		"terms", len(terms),
	)

	go func() {
		items, terms, err := searchService.Reindex(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "items", items, "terms", terms)
	}()
}
