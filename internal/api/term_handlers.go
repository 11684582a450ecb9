package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/store"
)

func (s *Server) registerTermRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTerms",
		Method:      http.MethodGet,
		Path:        "/api/v1/terms",
		Summary:     "List terms",
		Description: "Returns terms, optionally narrowed to a taxonomy or to the children of one term",
		Tags:        []string{tagTerms},
	}, s.handleListTerms)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTerm",
		Method:        http.MethodPost,
		Path:          "/api/v1/terms",
		Summary:       "Create term",
		Description:   "Creates a term. The slug is derived from the name unless given",
		Tags:          []string{tagTerms},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTerm)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTerm",
		Method:      http.MethodGet,
		Path:        "/api/v1/terms/{id}",
		Summary:     "Get term",
		Description: "Returns a term with its ancestors, root first",
		Tags:        []string{tagTerms},
	}, s.handleGetTerm)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTerm",
		Method:      http.MethodPatch,
		Path:        "/api/v1/terms/{id}",
		Summary:     "Update term",
		Description: "Renames, re-slugs, re-describes or moves a term. parent_id 0 makes it a root",
		Tags:        []string{tagTerms},
	}, s.handleUpdateTerm)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTerm",
		Method:      http.MethodDelete,
		Path:        "/api/v1/terms/{id}",
		Summary:     "Delete term",
		Description: "Deletes a term and its relations. Its children move up to its parent",
		Tags:        []string{tagTerms},
	}, s.handleDeleteTerm)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeTermRelations",
		Method:      http.MethodDelete,
		Path:        "/api/v1/terms/{id}/relations",
		Summary:     "Remove all relations of a term",
		Description: "Unrelates every item from the term and zeroes its count",
		Tags:        []string{tagTerms, tagRelations},
	}, s.handleRemoveTermRelations)
}

// === DTOs ===

// ListTermsInput contains parameters for listing terms.
type ListTermsInput struct {
	Taxonomy string `query:"taxonomy" doc:"Taxonomy table name"`
	ParentID int64  `query:"parent_id" doc:"Only children of this term"`
	RootOnly bool   `query:"root_only" doc:"Only root terms"`
}

// TermsResponse contains a list of terms.
type TermsResponse struct {
	Terms []*domain.Term `json:"terms" doc:"Terms ordered by name"`
}

// TermsOutput wraps a term list for Huma.
type TermsOutput struct {
	Body TermsResponse
}

// CreateTermInput wraps the create term request for Huma.
type CreateTermInput struct {
	Body service.CreateTermRequest
}

// TermOutput wraps a term for Huma.
type TermOutput struct {
	Body *domain.Term
}

// TermIDInput identifies a term by path.
type TermIDInput struct {
	ID int64 `path:"id" doc:"Term ID"`
}

// TermDetailResponse is a term with its ancestor chain.
type TermDetailResponse struct {
	domain.Term
	Ancestors []*domain.Term `json:"ancestors" doc:"Ancestors, root first"`
}

// TermDetailOutput wraps a term detail for Huma.
type TermDetailOutput struct {
	Body TermDetailResponse
}

// UpdateTermInput wraps the update term request for Huma.
type UpdateTermInput struct {
	ID   int64 `path:"id" doc:"Term ID"`
	Body service.UpdateTermRequest
}

// DeleteTermResponse reports the side effects of a term deletion.
type DeleteTermResponse struct {
	ID               int64 `json:"id" doc:"Deleted term ID"`
	RelationsRemoved int64 `json:"relations_removed" doc:"Relations removed with the term"`
	ChildrenLifted   int64 `json:"children_lifted" doc:"Children moved to the term's parent"`
}

// DeleteTermOutput wraps the delete response for Huma.
type DeleteTermOutput struct {
	Body DeleteTermResponse
}

// RelationsRemovedResponse reports how many relations were cleared.
type RelationsRemovedResponse struct {
	Removed int64 `json:"removed" doc:"Relations removed"`
}

// RelationsRemovedOutput wraps the clear response for Huma.
type RelationsRemovedOutput struct {
	Body RelationsRemovedResponse
}

// === Handlers ===

func (s *Server) handleListTerms(ctx context.Context, input *ListTermsInput) (*TermsOutput, error) {
	f := store.TermFilter{Taxonomy: input.Taxonomy, RootOnly: input.RootOnly}
	if input.ParentID > 0 {
		f.ParentID = &input.ParentID
	}

	terms, err := s.services.Terms.ListTerms(ctx, f)
	if err != nil {
		return nil, err
	}
	if terms == nil {
		terms = []*domain.Term{}
	}
	return &TermsOutput{Body: TermsResponse{Terms: terms}}, nil
}

func (s *Server) handleCreateTerm(ctx context.Context, input *CreateTermInput) (*TermOutput, error) {
	term, err := s.services.Terms.CreateTerm(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &TermOutput{Body: term}, nil
}

func (s *Server) handleGetTerm(ctx context.Context, input *TermIDInput) (*TermDetailOutput, error) {
	term, err := s.services.Terms.GetTerm(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.services.Terms.Ancestors(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if ancestors == nil {
		ancestors = []*domain.Term{}
	}
	return &TermDetailOutput{Body: TermDetailResponse{Term: *term, Ancestors: ancestors}}, nil
}

func (s *Server) handleUpdateTerm(ctx context.Context, input *UpdateTermInput) (*TermOutput, error) {
	term, err := s.services.Terms.UpdateTerm(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &TermOutput{Body: term}, nil
}

func (s *Server) handleDeleteTerm(ctx context.Context, input *TermIDInput) (*DeleteTermOutput, error) {
	res, err := s.services.Terms.DeleteTerm(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteTermOutput{Body: DeleteTermResponse{
		ID:               input.ID,
		RelationsRemoved: res.RelationsRemoved,
		ChildrenLifted:   res.ChildrenLifted,
	}}, nil
}

func (s *Server) handleRemoveTermRelations(ctx context.Context, input *TermIDInput) (*RelationsRemovedOutput, error) {
	removed, err := s.services.Relations.RemoveAllRelationsFor(ctx, input.ID, domain.SideTerm)
	if err != nil {
		return nil, err
	}
	return &RelationsRemovedOutput{Body: RelationsRemovedResponse{Removed: removed}}, nil
}
