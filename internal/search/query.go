package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string
	Type  DocType // empty = items and terms

	// Filters
	ItemType string // items of this type only
	Taxonomy string // terms of this taxonomy only

	Limit  int
	Offset int

	// "relevance" (default) or "name"
	SortBy string

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         int64             `json:"id"`
	Type       DocType           `json:"type"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	Source     string            `json:"source,omitempty"`
	ItemType   string            `json:"item_type,omitempty"`
	Slug       string            `json:"slug,omitempty"`
	Taxonomy   string            `json:"taxonomy,omitempty"`
	Count      int64             `json:"count,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Types      []FacetCount `json:"types,omitempty"`
	ItemTypes  []FacetCount `json:"item_types,omitempty"`
	Taxonomies []FacetCount `json:"taxonomies,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

var facetFields = []string{"type", "item_type", "taxonomy"}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)

	if params.SortBy == "name" {
		req.SortBy([]string{"name", "entity_id"})
	} else {
		req.SortBy([]string{"-_score", "entity_id"})
	}

	if params.IncludeFacets {
		for _, field := range facetFields {
			req.AddFacet(field, bleve.NewFacetRequest(field, 20))
		}
	}

	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("name")
	}

	req.Fields = []string{"type", "entity_id", "name", "source", "item_type", "slug", "taxonomy", "count"}

	searchResult, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := SearchHit{Score: hit.Score}

		if t, ok := hit.Fields["type"].(string); ok {
			h.Type = DocType(t)
		}
		if id, ok := hit.Fields["entity_id"].(float64); ok {
			h.ID = int64(id)
		}
		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if v, ok := hit.Fields["source"].(string); ok {
			h.Source = v
		}
		if v, ok := hit.Fields["item_type"].(string); ok {
			h.ItemType = v
		}
		if v, ok := hit.Fields["slug"].(string); ok {
			h.Slug = v
		}
		if v, ok := hit.Fields["taxonomy"].(string); ok {
			h.Taxonomy = v
		}
		if c, ok := hit.Fields["count"].(float64); ok {
			h.Count = int64(c)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")

		sourceMatch := bleve.NewMatchQuery(q)
		sourceMatch.SetField("source")
		sourceMatch.SetBoost(0.7)

		// typo tolerance
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, descMatch, sourceMatch, fuzzy}

		// autocomplete
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Type != "" {
		queries = append(queries, termQuery("type", string(params.Type)))
	}
	if params.ItemType != "" {
		queries = append(queries, termQuery("item_type", params.ItemType))
	}
	if params.Taxonomy != "" {
		queries = append(queries, termQuery("taxonomy", params.Taxonomy))
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

func termQuery(field, value string) query.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	var facets SearchFacets

	collect := func(name string) []FacetCount {
		f, ok := result.Facets[name]
		if !ok || f.Terms == nil {
			return nil
		}
		var out []FacetCount
		for _, term := range f.Terms.Terms() {
			out = append(out, FacetCount{Value: term.Term, Count: term.Count})
		}
		return out
	}

	facets.Types = collect("type")
	facets.ItemTypes = collect("item_type")
	facets.Taxonomies = collect("taxonomy")
	return facets
}
