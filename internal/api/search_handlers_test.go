package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/search"
	"github.com/filecatman/catalog/internal/service"
)

func TestSearch(t *testing.T) {
	ts := setupTestServer(t)
	astronomy := ts.createTerm(t, "subject", "Astronomy", 0)
	item := ts.createItem(t, "Telescope Manual", astronomy.ID)

	resp := ts.api.Get("/api/v1/search?q=telescope")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decodeData[search.SearchResult](t, resp)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, item.ID, res.Hits[0].ID)
	assert.Equal(t, search.DocTypeItem, res.Hits[0].Type)

	resp = ts.api.Get("/api/v1/search?q=astronomy&kind=term")
	require.Equal(t, http.StatusOK, resp.Code)
	res = decodeData[search.SearchResult](t, resp)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, astronomy.ID, res.Hits[0].ID)
	assert.EqualValues(t, 1, res.Hits[0].Count)

	resp = ts.api.Get("/api/v1/search?q=nothing-matches-this")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotNil(t, decodeData[search.SearchResult](t, resp).Hits)

	resp = ts.api.Get("/api/v1/search?q=x&kind=folder")
	requireError(t, resp, http.StatusBadRequest, "VALIDATION")

	resp = ts.api.Get("/api/v1/search?q=x&limit=101")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestReindex(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTerm(t, "tag", "Reading List", 0)
	ts.createItem(t, "Moby Dick")

	resp := ts.api.Post("/api/v1/search/reindex")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, ReindexResponse{Items: 1, Terms: 1}, decodeData[ReindexResponse](t, resp))

	resp = ts.api.Get("/api/v1/search?q=moby")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeData[search.SearchResult](t, resp).Hits, 1)
}

func TestSearch_Disabled(t *testing.T) {
	ts := setupTestServer(t)
	ts.services.Search = service.NewSearchService(nil, ts.store, discardLogger())

	resp := ts.api.Get("/api/v1/search?q=anything")
	requireError(t, resp, http.StatusConflict, "CONFLICT")

	resp = ts.api.Post("/api/v1/search/reindex")
	requireError(t, resp, http.StatusConflict, "CONFLICT")
}
