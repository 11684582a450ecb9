package api

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/service"
)

const xmlContentType = "Content-Type: application/xml"

func TestExportImport(t *testing.T) {
	src := setupTestServer(t)
	science := src.createTerm(t, "subject", "Science", 0)
	physics := src.createTerm(t, "subject", "Physics", science.ID)
	src.createItem(t, "Lecture Notes", physics.ID)

	resp := src.api.Get("/api/v1/export")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Type"), "application/xml"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), `attachment; filename="catalog-`)
	assert.Equal(t, CacheNoStore, resp.Header().Get("Cache-Control"))

	doc := resp.Body.Bytes()
	assert.Contains(t, string(doc), "<category_parent>science</category_parent>")

	dst := setupTestServer(t)
	resp = dst.api.Post("/api/v1/import", xmlContentType, bytes.NewReader(doc))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	sum := decodeData[service.ImportSummary](t, resp)
	assert.Equal(t, 2, sum.TermsCreated)
	assert.Equal(t, 1, sum.ItemsCreated)
	assert.Equal(t, 1, sum.RelationsAdded)

	resp = dst.api.Get("/api/v1/terms?taxonomy=subject&root_only=true")
	roots := decodeData[TermsResponse](t, resp).Terms
	require.Len(t, roots, 1)
	assert.Equal(t, "Science", roots[0].Name)

	resp = dst.api.Get("/api/v1/search?q=lecture")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, decodeData[searchHits](t, resp).Hits, "imported items are searchable")
}

type searchHits struct {
	Hits []struct {
		ID int64 `json:"id"`
	} `json:"hits"`
}

func TestImport_BadDocuments(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/import", xmlContentType, strings.NewReader("<channel><category>"))
	requireError(t, resp, http.StatusBadRequest, "VALIDATION")

	resp = ts.api.Post("/api/v1/import", xmlContentType, strings.NewReader("   "))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusUnprocessableEntity}, resp.Code)
}
