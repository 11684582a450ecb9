package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/tree"
)

func (s *Server) registerTreeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "buildTaxonomyTree",
		Method:      http.MethodGet,
		Path:        "/api/v1/taxonomies/{table}/tree",
		Summary:     "Build taxonomy tree",
		Description: "Returns the category tree of one taxonomy, truncated to the category levels",
		Tags:        []string{tagTree},
	}, s.handleBuildTaxonomyTree)

	huma.Register(s.api, huma.Operation{
		OperationID: "buildForest",
		Method:      http.MethodGet,
		Path:        "/api/v1/tree",
		Summary:     "Build forest",
		Description: "Returns the category trees of every enabled taxonomy",
		Tags:        []string{tagTree},
	}, s.handleBuildForest)
}

// === DTOs ===

// TreeQuery contains the options shared by the tree endpoints.
type TreeQuery struct {
	Complete bool    `query:"complete" doc:"Include slug and count of every term"`
	Levels   int     `query:"levels" default:"-1" minimum:"-1" doc:"Deepest level to return (0 = roots only, -1 = configured)"`
	Strategy string  `query:"strategy" doc:"Query strategy: joins or recursive"`
	Checked  []int64 `query:"checked" doc:"Term ids to pre-check"`
	ItemID   int64   `query:"item_id" doc:"Pre-check the terms this item is related to"`
	Check    string  `query:"check" doc:"Apply after pre-checking: all, none or inverse"`
	Toggle   []int64 `query:"toggle" doc:"Term ids to flip after the check operation"`
	Sort     bool    `query:"sort" doc:"Sort siblings by name, ignoring case and accents"`
	Flat     bool    `query:"flat" doc:"Return the leveled pre-order list instead of nested nodes"`
}

func (q TreeQuery) request(taxonomy string) service.TreeRequest {
	req := service.TreeRequest{
		Taxonomy: taxonomy,
		Complete: q.Complete,
		Strategy: q.Strategy,
		Checked:  q.Checked,
		ItemID:   q.ItemID,
		Check:    q.Check,
		Toggle:   q.Toggle,
		Sort:     q.Sort,
	}
	if q.Levels >= 0 {
		levels := q.Levels
		req.Levels = &levels
	}
	return req
}

// BuildTaxonomyTreeInput contains parameters for one taxonomy's tree.
type BuildTaxonomyTreeInput struct {
	Taxonomy string `path:"table" doc:"Taxonomy table name"`
	TreeQuery
}

// BuildForestInput contains parameters for the forest.
type BuildForestInput struct {
	TreeQuery
}

// TreeNodeResponse is one term in a nested tree.
type TreeNodeResponse struct {
	ID       int64              `json:"id" doc:"Term ID"`
	Name     string             `json:"name" doc:"Term name"`
	Slug     string             `json:"slug" doc:"Term slug"`
	Taxonomy string             `json:"taxonomy" doc:"Taxonomy table name"`
	Count    int64              `json:"count" doc:"Related item count"`
	Level    int                `json:"level" doc:"Depth, 0 for roots"`
	Checked  bool               `json:"checked" doc:"Checkbox state"`
	Children []TreeNodeResponse `json:"children,omitempty" doc:"Child terms"`
}

// TreeResponse contains a built tree.
type TreeResponse struct {
	Taxonomy string             `json:"taxonomy,omitempty" doc:"Taxonomy, empty for the forest"`
	Levels   int                `json:"levels" doc:"Deepest level returned"`
	Strategy string             `json:"strategy" doc:"Query strategy used"`
	Total    int                `json:"total" doc:"Number of terms in the tree"`
	Nodes    []TreeNodeResponse `json:"nodes,omitempty" doc:"Root terms with their subtrees"`
	Entries  []tree.Entry       `json:"entries,omitempty" doc:"Leveled pre-order list, when flat"`
	Checked  []tree.Checked     `json:"checked" doc:"Checked terms, children before parents"`
}

// TreeOutput wraps the tree response for Huma.
type TreeOutput struct {
	Body TreeResponse
}

// === Handlers ===

func (s *Server) handleBuildTaxonomyTree(ctx context.Context, input *BuildTaxonomyTreeInput) (*TreeOutput, error) {
	return s.buildTree(ctx, input.TreeQuery.request(input.Taxonomy), input.TreeQuery)
}

func (s *Server) handleBuildForest(ctx context.Context, input *BuildForestInput) (*TreeOutput, error) {
	return s.buildTree(ctx, input.TreeQuery.request(""), input.TreeQuery)
}

func (s *Server) buildTree(ctx context.Context, req service.TreeRequest, q TreeQuery) (*TreeOutput, error) {
	result, err := s.services.Trees.BuildTree(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := TreeResponse{
		Taxonomy: result.Taxonomy,
		Levels:   result.Levels,
		Strategy: string(result.Strategy),
		Total:    result.Model.Len(),
		Checked:  result.Model.Collect(),
	}
	if resp.Checked == nil {
		resp.Checked = []tree.Checked{}
	}
	if q.Flat {
		resp.Entries = result.Model.Entries()
	} else {
		resp.Nodes = toNodeResponses(result.Model.Roots())
	}

	return &TreeOutput{Body: resp}, nil
}

func toNodeResponses(nodes []*tree.Node) []TreeNodeResponse {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]TreeNodeResponse, len(nodes))
	for i, n := range nodes {
		out[i] = TreeNodeResponse{
			ID:       n.ID,
			Name:     n.Name,
			Slug:     n.Slug,
			Taxonomy: n.Taxonomy,
			Count:    n.Count,
			Level:    n.Level,
			Checked:  n.Checked,
			Children: toNodeResponses(n.Children),
		}
	}
	return out
}
