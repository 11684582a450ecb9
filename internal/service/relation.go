package service

import (
	"context"
	"log/slog"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// RelationService edits item-term relations. Every change goes through the
// store's paired relation and count updates.
type RelationService struct {
	store   *sqlstore.Store
	emitter store.EventEmitter
	indexer store.SearchIndexer
	logger  *slog.Logger
}

// NewRelationService creates a new relation service.
func NewRelationService(st *sqlstore.Store, emitter store.EventEmitter, indexer store.SearchIndexer, logger *slog.Logger) *RelationService {
	return &RelationService{store: st, emitter: emitter, indexer: indexer, logger: logger}
}

// AddRelation relates an item to a term. It returns false when the relation
// already existed.
func (s *RelationService) AddRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	added, err := s.store.AddRelation(ctx, itemID, termID)
	if err != nil || !added {
		return added, err
	}

	s.logger.Debug("relation added", "item_id", itemID, "term_id", termID)
	s.emitter.Emit(sse.NewRelationEvent(sse.EventRelationAdded, itemID, termID))
	refreshTermIndex(ctx, s.store, s.indexer, s.logger, []int64{termID})
	return true, nil
}

// RemoveRelation removes one relation. It returns false when there was none.
func (s *RelationService) RemoveRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	removed, err := s.store.RemoveRelation(ctx, itemID, termID)
	if err != nil || !removed {
		return removed, err
	}

	s.logger.Debug("relation removed", "item_id", itemID, "term_id", termID)
	s.emitter.Emit(sse.NewRelationEvent(sse.EventRelationRemoved, itemID, termID))
	refreshTermIndex(ctx, s.store, s.indexer, s.logger, []int64{termID})
	return true, nil
}

// CheckRelation reports whether the relation exists.
func (s *RelationService) CheckRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	return s.store.CheckRelation(ctx, itemID, termID)
}

// RemoveAllRelationsFor removes every relation of one item or one term and
// returns how many rows went away.
func (s *RelationService) RemoveAllRelationsFor(ctx context.Context, id int64, side domain.RelationSide) (int64, error) {
	var touched []int64
	switch side {
	case domain.SideItem:
		if _, err := s.store.GetItem(ctx, id); err != nil {
			return 0, err
		}
		ids, err := s.store.ItemTermIDs(ctx, id)
		if err != nil {
			return 0, err
		}
		touched = ids
	case domain.SideTerm:
		if _, err := s.store.GetTerm(ctx, id); err != nil {
			return 0, err
		}
		touched = []int64{id}
	default:
		return 0, domainerrors.Validationf("unknown relation side %d", side)
	}

	removed, err := s.store.RemoveAllRelationsFor(ctx, id, side)
	if err != nil {
		return 0, err
	}

	s.logger.Info("relations cleared", "side", side.String(), "id", id, "removed", removed)
	if removed > 0 {
		s.emitter.Emit(sse.NewRelationsClearedEvent(side.String(), id, removed))
		refreshTermIndex(ctx, s.store, s.indexer, s.logger, touched)
	}
	return removed, nil
}

// SetItemRelations makes termIDs the exact relation set of an item.
func (s *RelationService) SetItemRelations(ctx context.Context, itemID int64, termIDs []int64) (store.RelationChange, error) {
	termIDs = uniqueIDs(termIDs)
	change, err := s.store.SetItemRelations(ctx, itemID, termIDs)
	if err != nil {
		return change, err
	}

	if len(change.Added)+len(change.Removed) > 0 {
		s.logger.Info("item relations replaced",
			"item_id", itemID,
			"added", len(change.Added),
			"removed", len(change.Removed))
		s.emitter.Emit(sse.NewRelationsReplacedEvent(itemID, change.Added, change.Removed))
		refreshTermIndex(ctx, s.store, s.indexer, s.logger, append(append([]int64{}, change.Added...), change.Removed...))
	}
	return change, nil
}

// ItemTerms returns the terms an item is related to.
func (s *RelationService) ItemTerms(ctx context.Context, itemID int64) ([]*domain.Term, error) {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.store.ItemTerms(ctx, itemID)
}
