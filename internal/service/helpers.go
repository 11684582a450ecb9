package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// categoryLevels returns the effective number of category levels: the
// configured override when it is set (>= 0), otherwise the catLvls option.
func categoryLevels(ctx context.Context, r interface {
	CategoryLevels(ctx context.Context) (int, error)
}, override int) (int, error) {
	if override >= 0 {
		return domain.ClampCategoryLevels(override), nil
	}
	return r.CategoryLevels(ctx)
}

// refreshTermIndex re-indexes terms whose counts changed. Index failures are
// logged; the catalog write has already committed.
func refreshTermIndex(ctx context.Context, st *sqlstore.Store, indexer store.SearchIndexer, logger *slog.Logger, ids []int64) {
	if len(ids) == 0 {
		return
	}
	terms, err := st.GetTermsByIDs(ctx, ids)
	if err != nil {
		logger.Warn("failed to load terms for search index", "error", err)
		return
	}
	for _, t := range terms {
		if err := indexer.IndexTerm(ctx, t); err != nil {
			logger.Warn("failed to index term", "term_id", t.ID, "error", err)
		}
	}
}

// notFoundAsValidation turns a missing referenced entity into a validation
// error: the request named something that does not exist.
func notFoundAsValidation(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.Validationf(format, args...).WithCause(err)
	}
	return err
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
