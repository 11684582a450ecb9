package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/filecatman/catalog/internal/search"
	"github.com/filecatman/catalog/internal/service"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search",
		Description: "Full-text search over item names, sources and descriptions and term names. Answers 409 when search is disabled",
		Tags:        []string{tagSearch},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindex",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the index and re-indexes every item and term",
		Tags:        []string{tagSearch},
	}, s.handleReindex)
}

// SearchInput contains parameters for searching.
type SearchInput struct {
	Query    string `query:"q" maxLength:"500" doc:"Search query"`
	Kind     string `query:"kind" doc:"item, term, or empty for both"`
	ItemType string `query:"type" doc:"Only items of this item type"`
	Taxonomy string `query:"taxonomy" doc:"Only terms of this taxonomy"`
	Limit    int    `query:"limit" minimum:"0" maximum:"100" doc:"Results per page (default 20)"`
	Offset   int    `query:"offset" minimum:"0" doc:"Results to skip"`
	Sort     string `query:"sort" doc:"Sort field, prefix with - for descending; default is relevance"`
}

// SearchOutput wraps search results for Huma.
type SearchOutput struct {
	Body *search.SearchResult
}

// ReindexResponse reports what was indexed.
type ReindexResponse struct {
	Items int `json:"items" doc:"Items indexed"`
	Terms int `json:"terms" doc:"Terms indexed"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	res, err := s.services.Search.Search(ctx, service.SearchRequest{
		Query:    input.Query,
		Kind:     input.Kind,
		ItemType: input.ItemType,
		Taxonomy: input.Taxonomy,
		Limit:    input.Limit,
		Offset:   input.Offset,
		SortBy:   input.Sort,
	})
	if err != nil {
		return nil, err
	}
	if res.Hits == nil {
		res.Hits = []search.SearchHit{}
	}
	return &SearchOutput{Body: res}, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	items, terms, err := s.services.Search.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Items: items, Terms: terms}}, nil
}
