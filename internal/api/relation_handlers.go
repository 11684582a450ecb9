package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerRelationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "addRelation",
		Method:      http.MethodPost,
		Path:        "/api/v1/relations",
		Summary:     "Relate item to term",
		Description: "Adds a relation and increments the term count. An existing pair answers 200 with created false",
		Tags:        []string{tagRelations},
	}, s.handleAddRelation)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeRelation",
		Method:      http.MethodDelete,
		Path:        "/api/v1/relations",
		Summary:     "Unrelate item from term",
		Description: "Removes a relation and decrements the term count",
		Tags:        []string{tagRelations},
	}, s.handleRemoveRelation)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkRelation",
		Method:      http.MethodGet,
		Path:        "/api/v1/relations",
		Summary:     "Check relation",
		Description: "Reports whether an item is related to a term",
		Tags:        []string{tagRelations},
	}, s.handleCheckRelation)
}

// === DTOs ===

// RelationRequest names one item-term pair.
type RelationRequest struct {
	ItemID int64 `json:"item_id" minimum:"1" doc:"Item ID"`
	TermID int64 `json:"term_id" minimum:"1" doc:"Term ID"`
}

// AddRelationInput wraps the pair for Huma.
type AddRelationInput struct {
	Body RelationRequest
}

// RelationQueryInput names one pair in the query string.
type RelationQueryInput struct {
	ItemID int64 `query:"item_id" required:"true" minimum:"1" doc:"Item ID"`
	TermID int64 `query:"term_id" required:"true" minimum:"1" doc:"Term ID"`
}

// AddRelationResponse reports whether a relation was created.
type AddRelationResponse struct {
	ItemID  int64 `json:"item_id" doc:"Item ID"`
	TermID  int64 `json:"term_id" doc:"Term ID"`
	Created bool  `json:"created" doc:"False when the relation already existed"`
}

// AddRelationOutput wraps the add response for Huma.
type AddRelationOutput struct {
	Status int
	Body   AddRelationResponse
}

// RemoveRelationResponse reports whether a relation was removed.
type RemoveRelationResponse struct {
	Removed bool `json:"removed" doc:"False when there was no such relation"`
}

// RemoveRelationOutput wraps the remove response for Huma.
type RemoveRelationOutput struct {
	Body RemoveRelationResponse
}

// CheckRelationResponse reports whether a relation exists.
type CheckRelationResponse struct {
	Related bool `json:"related" doc:"True when the item is related to the term"`
}

// CheckRelationOutput wraps the check response for Huma.
type CheckRelationOutput struct {
	Body CheckRelationResponse
}

// === Handlers ===

func (s *Server) handleAddRelation(ctx context.Context, input *AddRelationInput) (*AddRelationOutput, error) {
	created, err := s.services.Relations.AddRelation(ctx, input.Body.ItemID, input.Body.TermID)
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return &AddRelationOutput{
		Status: status,
		Body: AddRelationResponse{
			ItemID:  input.Body.ItemID,
			TermID:  input.Body.TermID,
			Created: created,
		},
	}, nil
}

func (s *Server) handleRemoveRelation(ctx context.Context, input *RelationQueryInput) (*RemoveRelationOutput, error) {
	removed, err := s.services.Relations.RemoveRelation(ctx, input.ItemID, input.TermID)
	if err != nil {
		return nil, err
	}
	return &RemoveRelationOutput{Body: RemoveRelationResponse{Removed: removed}}, nil
}

func (s *Server) handleCheckRelation(ctx context.Context, input *RelationQueryInput) (*CheckRelationOutput, error) {
	related, err := s.services.Relations.CheckRelation(ctx, input.ItemID, input.TermID)
	if err != nil {
		return nil, err
	}
	return &CheckRelationOutput{Body: CheckRelationResponse{Related: related}}, nil
}
