package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{Path: filepath.Join(t.TempDir(), "search.bleve")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func seedIndex(t *testing.T, index *SearchIndex) {
	t.Helper()
	ctx := context.Background()

	items := []domain.Item{
		{ID: 1, Name: "Quarterly Report", Type: "document", Source: "report-q1.pdf", Description: "finance numbers"},
		{ID: 2, Name: "Holiday Photos", Type: "image", Source: "beach.jpg"},
		{ID: 3, Name: "Go Blog", Type: "weblink", Source: "https://go.dev/blog"},
	}
	for i := range items {
		require.NoError(t, index.IndexItem(ctx, &items[i]))
	}

	terms := []domain.Term{
		{ID: 10, Name: "Reports", Slug: "reports", Taxonomy: "category", Count: 1},
		{ID: 11, Name: "Holidays", Slug: "holidays", Taxonomy: "tag", Count: 1},
	}
	for i := range terms {
		require.NoError(t, index.IndexTerm(ctx, &terms[i]))
	}
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_RequiresPath(t *testing.T) {
	_, err := NewSearchIndex(Options{})
	assert.Error(t, err)
}

func TestSearchIndex_IndexAndDelete(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)
	ctx := context.Background()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	require.NoError(t, index.DeleteItem(ctx, 2))
	require.NoError(t, index.DeleteTerm(ctx, 11))

	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	// re-indexing replaces rather than duplicates
	require.NoError(t, index.IndexItem(ctx, &domain.Item{ID: 1, Name: "Annual Report", Type: "document"}))
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestSearchIndex_Search_Basic(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	result, err := index.Search(context.Background(), SearchParams{Query: "report", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)

	var kinds []DocType
	for _, h := range result.Hits {
		kinds = append(kinds, h.Type)
	}
	assert.Contains(t, kinds, DocTypeItem)
	assert.Contains(t, kinds, DocTypeTerm)
}

func TestSearchIndex_Search_ByType(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	result, err := index.Search(context.Background(), SearchParams{Query: "report", Type: DocTypeTerm, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	hit := result.Hits[0]
	assert.Equal(t, int64(10), hit.ID)
	assert.Equal(t, "reports", hit.Slug)
	assert.Equal(t, "category", hit.Taxonomy)
	assert.Equal(t, int64(1), hit.Count)
}

func TestSearchIndex_Search_Filters(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)
	ctx := context.Background()

	result, err := index.Search(ctx, SearchParams{ItemType: "image", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "Holiday Photos", result.Hits[0].Name)
	assert.Equal(t, "beach.jpg", result.Hits[0].Source)

	result, err = index.Search(ctx, SearchParams{Taxonomy: "tag", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(11), result.Hits[0].ID)
}

func TestSearchIndex_Search_Prefix(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	result, err := index.Search(context.Background(), SearchParams{Query: "quart", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, int64(1), result.Hits[0].ID)
}

func TestSearchIndex_Search_Facets(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	params := DefaultSearchParams()
	result, err := index.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), result.Total)

	byType := map[string]int{}
	for _, f := range result.Facets.Types {
		byType[f.Value] = f.Count
	}
	assert.Equal(t, 3, byType["item"])
	assert.Equal(t, 2, byType["term"])
}

func TestSearchIndex_Reindex(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	err := index.Reindex(
		[]domain.Item{{ID: 7, Name: "Only Item", Type: "document"}},
		[]domain.Term{{ID: 8, Name: "Only Term", Slug: "only-term", Taxonomy: "category"}},
	)
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")

	index, err := NewSearchIndex(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, index.IndexItem(context.Background(), &domain.Item{ID: 1, Name: "Kept", Type: "document"}))
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_VersionMismatchRebuilds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")

	index, err := NewSearchIndex(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, index.IndexItem(context.Background(), &domain.Item{ID: 1, Name: "Stale", Type: "document"}))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(path+".version", []byte("old"), 0o644))

	reopened, err := NewSearchIndex(Options{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_LargeBatch(t *testing.T) {
	index := setupTestIndex(t)

	docs := make([]*SearchDocument, 1200)
	for i := range docs {
		docs[i] = ItemToSearchDocument(&domain.Item{ID: int64(i + 1), Name: fmt.Sprintf("File %d", i), Type: "document"})
	}
	require.NoError(t, index.IndexDocuments(docs))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), count)
}

func TestParseDocType(t *testing.T) {
	for in, want := range map[string]DocType{"": "", "item": DocTypeItem, " Term ": DocTypeTerm} {
		got, err := ParseDocType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDocType("book")
	assert.Error(t, err)
}

func TestTermToSearchDocument(t *testing.T) {
	doc := TermToSearchDocument(&domain.Term{ID: 4, Name: "Music", Slug: "music", Taxonomy: "category"})
	assert.Equal(t, "term-4", doc.ID)
	m := doc.ToMap()
	assert.Equal(t, int64(0), m["count"])
	assert.Equal(t, "music", m["slug"])
	_, hasSource := m["source"]
	assert.False(t, hasSource)
}
