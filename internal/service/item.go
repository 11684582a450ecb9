package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
	"github.com/filecatman/catalog/internal/store/sqlstore"
	"github.com/filecatman/catalog/internal/validation"
)

// Paging bounds for item listings.
const (
	DefaultItemLimit       = 50
	MaxItemLimit           = 500
	maxBulkDelete          = 1000
	maxRelationConstraints = 20
)

// ItemService orchestrates item operations.
type ItemService struct {
	store     *sqlstore.Store
	emitter   store.EventEmitter
	indexer   store.SearchIndexer
	logger    *slog.Logger
	validator *validation.Validator
}

// NewItemService creates a new item service.
func NewItemService(st *sqlstore.Store, emitter store.EventEmitter, indexer store.SearchIndexer, logger *slog.Logger) *ItemService {
	return &ItemService{
		store:     st,
		emitter:   emitter,
		indexer:   indexer,
		logger:    logger,
		validator: validation.New(),
	}
}

// GetItem returns a single item.
func (s *ItemService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.store.GetItem(ctx, id)
}

// ItemList is one page of items.
type ItemList struct {
	Items  []*domain.Item `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListItems returns one page of items matching f.
func (s *ItemService) ListItems(ctx context.Context, f store.ItemFilter) (*ItemList, error) {
	if err := normalizeItemFilter(&f); err != nil {
		return nil, err
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultItemLimit
	case f.Limit > MaxItemLimit:
		f.Limit = MaxItemLimit
	}
	f.Offset = max(f.Offset, 0)

	items, err := s.store.ListItems(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountItems(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ItemList{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// dateLayout is accepted for time bounds that carry no clock time.
const dateLayout = "2006-01-02"

// normalizeItemFilter validates the search fields of f and widens bare dates
// to the start (TimeFrom) or end (TimeTo) of that day.
func normalizeItemFilter(f *store.ItemFilter) error {
	switch f.Field {
	case "", store.ItemFieldName, store.ItemFieldSource, store.ItemFieldDescription, store.ItemFieldAny:
	default:
		return domainerrors.Validationf("unknown search field %q", f.Field)
	}

	var err error
	if f.TimeFrom, err = normalizeTimeBound(f.TimeFrom, "00:00:00"); err != nil {
		return err
	}
	if f.TimeTo, err = normalizeTimeBound(f.TimeTo, "23:59:59"); err != nil {
		return err
	}
	if f.TimeFrom != "" && f.TimeTo != "" && f.TimeFrom > f.TimeTo {
		return domainerrors.Validation("time_from is after time_to")
	}

	if len(f.Relations) > maxRelationConstraints {
		return domainerrors.Validationf("at most %d relation constraints", maxRelationConstraints)
	}
	for _, rc := range f.Relations {
		if rc.Taxonomy == "" && rc.TermID == 0 {
			return domainerrors.Validation("a relation constraint needs a taxonomy or a term")
		}
	}
	return nil
}

func normalizeTimeBound(v, clock string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if t, err := time.Parse(domain.ItemTimeLayout, v); err == nil {
		return t.Format(domain.ItemTimeLayout), nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t.Format(dateLayout) + " " + clock, nil
	}
	return "", domainerrors.Validationf("time %q must look like %s or %s", v, dateLayout, domain.ItemTimeLayout)
}

// CreateItemRequest contains fields for creating an item.
type CreateItemRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Type        string  `json:"type" validate:"required,tablename"`
	Source      string  `json:"source,omitempty" validate:"max=4096"`
	Time        *string `json:"time,omitempty"`
	Description string  `json:"description,omitempty" validate:"max=65535"`
	TermIDs     []int64 `json:"term_ids,omitempty" validate:"max=1000,dive,gt=0"`
}

// CreateItem creates an item and relates it to TermIDs in one transaction.
func (s *ItemService) CreateItem(ctx context.Context, req CreateItemRequest) (*domain.Item, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	item := &domain.Item{
		Name:        req.Name,
		Type:        req.Type,
		Source:      strings.TrimSpace(req.Source),
		Time:        req.Time,
		Description: req.Description,
	}
	if err := s.checkItem(ctx, item); err != nil {
		return nil, err
	}

	termIDs := uniqueIDs(req.TermIDs)
	err := s.store.WithTx(ctx, func(tx *sqlstore.Tx) error {
		if err := tx.CreateItem(ctx, item); err != nil {
			return err
		}
		for _, termID := range termIDs {
			if _, err := tx.AddRelation(ctx, item.ID, termID); err != nil {
				return notFoundAsValidation(err, "term %d does not exist", termID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created", "item_id", item.ID, "name", item.Name, "type", item.Type, "relations", len(termIDs))
	s.emitter.Emit(sse.NewItemEvent(sse.EventItemCreated, item))
	s.index(ctx, item)
	refreshTermIndex(ctx, s.store, s.indexer, s.logger, termIDs)
	return item, nil
}

// UpdateItemRequest contains the fields to change. Nil fields are kept; an
// empty Time clears the date.
type UpdateItemRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Type        *string `json:"type,omitempty" validate:"omitempty,tablename"`
	Source      *string `json:"source,omitempty" validate:"omitempty,max=4096"`
	Time        *string `json:"time,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=65535"`
}

// UpdateItem changes an item's fields. Relations are edited through the
// relation service.
func (s *ItemService) UpdateItem(ctx context.Context, id int64, req UpdateItemRequest) (*domain.Item, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Type != nil {
		item.Type = *req.Type
	}
	if req.Source != nil {
		item.Source = strings.TrimSpace(*req.Source)
	}
	if req.Time != nil {
		item.Time = req.Time
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if err := s.checkItem(ctx, item); err != nil {
		return nil, err
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("item updated", "item_id", item.ID, "name", item.Name)
	s.emitter.Emit(sse.NewItemEvent(sse.EventItemUpdated, item))
	s.index(ctx, item)
	return item, nil
}

// DeleteItem deletes an item and its relations, decrementing term counts.
func (s *ItemService) DeleteItem(ctx context.Context, id int64) error {
	termIDs, err := s.store.ItemTermIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}

	s.logger.Info("item deleted", "item_id", id, "relations_removed", len(termIDs))
	s.emitter.Emit(sse.NewItemsDeletedEvent([]int64{id}))
	if err := s.indexer.DeleteItem(ctx, id); err != nil {
		s.logger.Warn("failed to remove item from search index", "item_id", id, "error", err)
	}
	refreshTermIndex(ctx, s.store, s.indexer, s.logger, termIDs)
	return nil
}

// BulkDeleteItems deletes several items in one transaction and returns the
// ids that existed.
func (s *ItemService) BulkDeleteItems(ctx context.Context, ids []int64) ([]int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, domainerrors.Validation("no item ids given")
	}
	if len(ids) > maxBulkDelete {
		return nil, domainerrors.Validationf("at most %d items can be deleted at once", maxBulkDelete)
	}

	var touched []int64
	for _, id := range ids {
		termIDs, err := s.store.ItemTermIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		touched = append(touched, termIDs...)
	}

	deleted, err := s.store.BulkDeleteItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	s.logger.Info("items deleted", "requested", len(ids), "deleted", len(deleted))
	if len(deleted) > 0 {
		s.emitter.Emit(sse.NewItemsDeletedEvent(deleted))
	}
	for _, id := range deleted {
		if err := s.indexer.DeleteItem(ctx, id); err != nil {
			s.logger.Warn("failed to remove item from search index", "item_id", id, "error", err)
		}
	}
	refreshTermIndex(ctx, s.store, s.indexer, s.logger, uniqueIDs(touched))
	return deleted, nil
}

// checkItem validates references and formats that need the store: the item
// type must exist, weblink sources must be URLs and the time must use the
// stored layout.
func (s *ItemService) checkItem(ctx context.Context, item *domain.Item) error {
	itemType, err := s.store.GetItemType(ctx, item.Type)
	if err != nil {
		return notFoundAsValidation(err, "unknown item type %q", item.Type)
	}
	if itemType.IsWeblink() && item.Source != "" {
		if err := s.validator.ValidateVar("source", item.Source, "url"); err != nil {
			return err
		}
	}

	item.Time = domain.NormalizeItemTime(item.Time)
	if item.Time != nil {
		if _, err := time.Parse(domain.ItemTimeLayout, *item.Time); err != nil {
			return domainerrors.ValidationWithDetails("validation failed", map[string]string{
				"time": "must use the layout YYYY-MM-DD HH:MM:SS",
			})
		}
	}
	return nil
}

func (s *ItemService) index(ctx context.Context, item *domain.Item) {
	if err := s.indexer.IndexItem(ctx, item); err != nil {
		s.logger.Warn("failed to index item", "item_id", item.ID, "error", err)
	}
}
