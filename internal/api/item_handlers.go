package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/store"
)

func (s *Server) registerItemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listItems",
		Method:      http.MethodGet,
		Path:        "/api/v1/items",
		Summary:     "List items",
		Description: "Returns one page of items filtered by type, text, date and relation constraints",
		Tags:        []string{tagItems},
	}, s.handleListItems)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createItem",
		Method:        http.MethodPost,
		Path:          "/api/v1/items",
		Summary:       "Create item",
		Description:   "Creates an item and relates it to the given terms in one transaction",
		Tags:          []string{tagItems},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "getItem",
		Method:      http.MethodGet,
		Path:        "/api/v1/items/{id}",
		Summary:     "Get item",
		Description: "Returns an item by ID",
		Tags:        []string{tagItems},
	}, s.handleGetItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateItem",
		Method:      http.MethodPatch,
		Path:        "/api/v1/items/{id}",
		Summary:     "Update item",
		Description: "Updates an item's fields. An empty time clears the date",
		Tags:        []string{tagItems},
	}, s.handleUpdateItem)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteItem",
		Method:        http.MethodDelete,
		Path:          "/api/v1/items/{id}",
		Summary:       "Delete item",
		Description:   "Deletes an item and its relations",
		Tags:          []string{tagItems},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "bulkDeleteItems",
		Method:      http.MethodPost,
		Path:        "/api/v1/items/bulk-delete",
		Summary:     "Delete items",
		Description: "Deletes several items in one transaction and returns the ids that existed",
		Tags:        []string{tagItems},
	}, s.handleBulkDeleteItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "listItemRelations",
		Method:      http.MethodGet,
		Path:        "/api/v1/items/{id}/relations",
		Summary:     "List item relations",
		Description: "Returns the terms an item is related to",
		Tags:        []string{tagItems, tagRelations},
	}, s.handleListItemRelations)

	huma.Register(s.api, huma.Operation{
		OperationID: "setItemRelations",
		Method:      http.MethodPut,
		Path:        "/api/v1/items/{id}/relations",
		Summary:     "Set item relations",
		Description: "Makes the given terms the exact relation set of an item",
		Tags:        []string{tagItems, tagRelations},
	}, s.handleSetItemRelations)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeItemRelations",
		Method:      http.MethodDelete,
		Path:        "/api/v1/items/{id}/relations",
		Summary:     "Remove all relations of an item",
		Description: "Unrelates the item from every term",
		Tags:        []string{tagItems, tagRelations},
	}, s.handleRemoveItemRelations)
}

// === DTOs ===

// ListItemsInput contains parameters for listing items.
type ListItemsInput struct {
	Type      string   `query:"type" doc:"Item type table name"`
	TypeOp    string   `query:"type_op" doc:"eq (default) or ne"`
	TermID    int64    `query:"term_id" doc:"Only items related to this term"`
	Query     string   `query:"q" doc:"Case-insensitive text to find"`
	Match     string   `query:"match" doc:"phrase (default) or keywords: every word must appear"`
	Field     string   `query:"field" doc:"name (default), source, description or any"`
	Relations []string `query:"relation" doc:"Comma-separated taxonomy[:term_id] constraints; a leading ! excludes matching items"`
	TimeFrom  string   `query:"time_from" doc:"Earliest item time, YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"`
	TimeTo    string   `query:"time_to" doc:"Latest item time, YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"`
	TimeNull  string   `query:"time_null" doc:"true: only undated items, false: only dated items"`
	Limit     int      `query:"limit" minimum:"0" doc:"Page size (default 50, max 500)"`
	Offset    int      `query:"offset" minimum:"0" doc:"Items to skip"`
}

// ItemListOutput wraps a page of items for Huma.
type ItemListOutput struct {
	Body *service.ItemList
}

// CreateItemInput wraps the create item request for Huma.
type CreateItemInput struct {
	Body service.CreateItemRequest
}

// ItemOutput wraps an item for Huma.
type ItemOutput struct {
	Body *domain.Item
}

// ItemIDInput identifies an item by path.
type ItemIDInput struct {
	ID int64 `path:"id" doc:"Item ID"`
}

// UpdateItemInput wraps the update item request for Huma.
type UpdateItemInput struct {
	ID   int64 `path:"id" doc:"Item ID"`
	Body service.UpdateItemRequest
}

// BulkDeleteRequest lists items to delete.
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids" minItems:"1" maxItems:"1000" doc:"Item IDs"`
}

// BulkDeleteInput wraps the bulk delete request for Huma.
type BulkDeleteInput struct {
	Body BulkDeleteRequest
}

// BulkDeleteResponse lists the deleted items.
type BulkDeleteResponse struct {
	Deleted []int64 `json:"deleted" doc:"IDs that existed and were deleted"`
}

// BulkDeleteOutput wraps the bulk delete response for Huma.
type BulkDeleteOutput struct {
	Body BulkDeleteResponse
}

// SetItemRelationsRequest is the complete relation set of an item.
type SetItemRelationsRequest struct {
	TermIDs []int64 `json:"term_ids" maxItems:"1000" doc:"Term IDs; empty clears every relation"`
}

// SetItemRelationsInput wraps the relation set for Huma.
type SetItemRelationsInput struct {
	ID   int64 `path:"id" doc:"Item ID"`
	Body SetItemRelationsRequest
}

// RelationChangeOutput wraps the relation diff for Huma.
type RelationChangeOutput struct {
	Body store.RelationChange
}

// === Handlers ===

func (s *Server) handleListItems(ctx context.Context, input *ListItemsInput) (*ItemListOutput, error) {
	f, err := input.filter()
	if err != nil {
		return nil, err
	}
	list, err := s.services.Items.ListItems(ctx, f)
	if err != nil {
		return nil, err
	}
	if list.Items == nil {
		list.Items = []*domain.Item{}
	}
	return &ItemListOutput{Body: list}, nil
}

func (s *Server) handleCreateItem(ctx context.Context, input *CreateItemInput) (*ItemOutput, error) {
	item, err := s.services.Items.CreateItem(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: item}, nil
}

func (s *Server) handleGetItem(ctx context.Context, input *ItemIDInput) (*ItemOutput, error) {
	item, err := s.services.Items.GetItem(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: item}, nil
}

func (s *Server) handleUpdateItem(ctx context.Context, input *UpdateItemInput) (*ItemOutput, error) {
	item, err := s.services.Items.UpdateItem(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: item}, nil
}

func (s *Server) handleDeleteItem(ctx context.Context, input *ItemIDInput) (*struct{}, error) {
	if err := s.services.Items.DeleteItem(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleBulkDeleteItems(ctx context.Context, input *BulkDeleteInput) (*BulkDeleteOutput, error) {
	deleted, err := s.services.Items.BulkDeleteItems(ctx, input.Body.IDs)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		deleted = []int64{}
	}
	return &BulkDeleteOutput{Body: BulkDeleteResponse{Deleted: deleted}}, nil
}

func (s *Server) handleListItemRelations(ctx context.Context, input *ItemIDInput) (*TermsOutput, error) {
	terms, err := s.services.Relations.ItemTerms(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if terms == nil {
		terms = []*domain.Term{}
	}
	return &TermsOutput{Body: TermsResponse{Terms: terms}}, nil
}

func (s *Server) handleSetItemRelations(ctx context.Context, input *SetItemRelationsInput) (*RelationChangeOutput, error) {
	change, err := s.services.Relations.SetItemRelations(ctx, input.ID, input.Body.TermIDs)
	if err != nil {
		return nil, err
	}
	if change.Added == nil {
		change.Added = []int64{}
	}
	if change.Removed == nil {
		change.Removed = []int64{}
	}
	return &RelationChangeOutput{Body: change}, nil
}

func (s *Server) handleRemoveItemRelations(ctx context.Context, input *ItemIDInput) (*RelationsRemovedOutput, error) {
	removed, err := s.services.Relations.RemoveAllRelationsFor(ctx, input.ID, domain.SideItem)
	if err != nil {
		return nil, err
	}
	return &RelationsRemovedOutput{Body: RelationsRemovedResponse{Removed: removed}}, nil
}

func (in *ListItemsInput) filter() (store.ItemFilter, error) {
	f := store.ItemFilter{
		Type:     in.Type,
		TermID:   in.TermID,
		Query:    in.Query,
		Field:    strings.ToLower(strings.TrimSpace(in.Field)),
		TimeFrom: in.TimeFrom,
		TimeTo:   in.TimeTo,
		Limit:    in.Limit,
		Offset:   in.Offset,
	}

	switch strings.ToLower(in.TypeOp) {
	case "", "eq":
	case "ne":
		f.TypeNot = true
	default:
		return f, domainerrors.Validationf("type_op must be eq or ne, not %q", in.TypeOp)
	}

	switch strings.ToLower(in.Match) {
	case "", "phrase":
	case "keywords":
		f.Keywords = true
	default:
		return f, domainerrors.Validationf("match must be phrase or keywords, not %q", in.Match)
	}

	if in.TimeNull != "" {
		v, err := strconv.ParseBool(in.TimeNull)
		if err != nil {
			return f, domainerrors.Validationf("time_null must be true or false, not %q", in.TimeNull)
		}
		f.TimeNull = &v
	}

	for _, raw := range in.Relations {
		rc, err := parseRelationConstraint(raw)
		if err != nil {
			return f, err
		}
		f.Relations = append(f.Relations, rc)
	}
	return f, nil
}

// parseRelationConstraint reads "subject", "subject:12", ":12" and the same
// forms prefixed with "!" to exclude.
func parseRelationConstraint(raw string) (store.RelationConstraint, error) {
	var rc store.RelationConstraint
	v := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(v, "!"); ok {
		rc.Exclude = true
		v = rest
	}
	tax, term, hasTerm := strings.Cut(v, ":")
	rc.Taxonomy = strings.TrimSpace(tax)
	if hasTerm {
		id, err := strconv.ParseInt(strings.TrimSpace(term), 10, 64)
		if err != nil || id <= 0 {
			return rc, domainerrors.Validationf("relation %q has an invalid term id", raw)
		}
		rc.TermID = id
	}
	if rc.Taxonomy == "" && rc.TermID == 0 {
		return rc, domainerrors.Validationf("relation %q names neither a taxonomy nor a term", raw)
	}
	return rc, nil
}
