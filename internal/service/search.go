package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/search"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// SearchService answers full-text queries over items and terms. index is
// nil when search is disabled.
type SearchService struct {
	index  *search.SearchIndex
	store  *sqlstore.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, st *sqlstore.Store, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, store: st, logger: logger}
}

// Enabled reports whether a search index is available.
func (s *SearchService) Enabled() bool {
	return s.index != nil
}

// DocumentCount returns the number of indexed documents.
func (s *SearchService) DocumentCount() (uint64, error) {
	if s.index == nil {
		return 0, domainerrors.Conflict("search is disabled")
	}
	return s.index.DocumentCount()
}

// SearchRequest is a search query from the API.
type SearchRequest struct {
	Query    string
	Kind     string // "item", "term" or "" for both
	ItemType string
	Taxonomy string
	Limit    int
	Offset   int
	SortBy   string
}

// Search runs a query against the index.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*search.SearchResult, error) {
	if s.index == nil {
		return nil, domainerrors.Conflict("search is disabled")
	}

	kind, err := search.ParseDocType(req.Kind)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	params := search.DefaultSearchParams()
	params.Query = req.Query
	params.Type = kind
	params.ItemType = req.ItemType
	params.Taxonomy = req.Taxonomy
	params.Offset = max(req.Offset, 0)
	if req.Limit > 0 {
		params.Limit = min(req.Limit, 100)
	}
	if req.SortBy != "" {
		params.SortBy = req.SortBy
	}

	return s.index.Search(ctx, params)
}

// Reindex rebuilds the index from the catalog and returns the number of
// items and terms indexed.
func (s *SearchService) Reindex(ctx context.Context) (items, terms int, err error) {
	if s.index == nil {
		return 0, 0, domainerrors.Conflict("search is disabled")
	}

	start := time.Now()
	allItems, err := s.store.ListItems(ctx, store.ItemFilter{})
	if err != nil {
		return 0, 0, err
	}
	allTerms, err := s.store.ListAllTerms(ctx)
	if err != nil {
		return 0, 0, err
	}

	itemVals := make([]domain.Item, len(allItems))
	for i, it := range allItems {
		itemVals[i] = *it
	}
	termVals := make([]domain.Term, len(allTerms))
	for i, t := range allTerms {
		termVals[i] = *t
	}

	if err := s.index.Reindex(itemVals, termVals); err != nil {
		return 0, 0, err
	}

	s.logger.Info("search index rebuilt", "items", len(itemVals), "terms", len(termVals), "duration", time.Since(start))
	return len(itemVals), len(termVals), nil
}
