package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/domain"
)

// createTerm creates a term through the API. parent 0 makes a root.
func (ts *testServer) createTerm(t *testing.T, taxonomy, name string, parent int64) domain.Term {
	t.Helper()
	body := map[string]any{"name": name, "taxonomy": taxonomy}
	if parent != 0 {
		body["parent_id"] = parent
	}
	resp := ts.api.Post("/api/v1/terms", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeData[domain.Term](t, resp)
}

func termPath(id int64) string {
	return "/api/v1/terms/" + strconv.FormatInt(id, 10)
}

func TestCreateTerm(t *testing.T) {
	ts := setupTestServer(t)

	science := ts.createTerm(t, "subject", "Natural Science", 0)
	assert.Positive(t, science.ID)
	assert.Equal(t, "natural-science", science.Slug)
	assert.Nil(t, science.ParentID)
	assert.Zero(t, science.Count)

	physics := ts.createTerm(t, "subject", "Physics", science.ID)
	require.NotNil(t, physics.ParentID)
	assert.Equal(t, science.ID, *physics.ParentID)
}

func TestCreateTerm_Errors(t *testing.T) {
	ts := setupTestServer(t)
	author := ts.createTerm(t, "author", "Ursula Le Guin", 0)

	t.Run("missing name", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/terms", map[string]any{"taxonomy": "subject"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("unknown taxonomy", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/terms", map[string]any{"name": "X", "taxonomy": "genre"})
		requireError(t, resp, http.StatusBadRequest, "VALIDATION")
	})

	t.Run("duplicate slug", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/terms", map[string]any{"name": "Ursula  le Guin", "taxonomy": "author"})
		requireError(t, resp, http.StatusConflict, "ALREADY_EXISTS")
	})

	t.Run("parent in taxonomy without children", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/terms", map[string]any{
			"name": "Pseudonym", "taxonomy": "author", "parent_id": author.ID,
		})
		requireError(t, resp, http.StatusBadRequest, "VALIDATION")
	})
}

func TestCreateTerm_LevelLimit(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Put("/api/v1/options/catLvls", map[string]any{"value": "1"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	root := ts.createTerm(t, "subject", "Root", 0)
	child := ts.createTerm(t, "subject", "Child", root.ID)

	resp = ts.api.Post("/api/v1/terms", map[string]any{
		"name": "Grandchild", "taxonomy": "subject", "parent_id": child.ID,
	})
	env := requireError(t, resp, http.StatusBadRequest, "VALIDATION")
	assert.JSONEq(t, `{"deepest_level":2,"max_level":1}`, string(env.Details))
}

func TestGetTerm_WithAncestors(t *testing.T) {
	ts := setupTestServer(t)
	a := ts.createTerm(t, "subject", "A", 0)
	b := ts.createTerm(t, "subject", "B", a.ID)
	c := ts.createTerm(t, "subject", "C", b.ID)

	resp := ts.api.Get(termPath(c.ID))
	require.Equal(t, http.StatusOK, resp.Code)

	got := decodeData[TermDetailResponse](t, resp)
	assert.Equal(t, "C", got.Name)
	require.Len(t, got.Ancestors, 2)
	assert.Equal(t, a.ID, got.Ancestors[0].ID)
	assert.Equal(t, b.ID, got.Ancestors[1].ID)

	resp = ts.api.Get(termPath(a.ID))
	assert.Empty(t, decodeData[TermDetailResponse](t, resp).Ancestors)

	resp = ts.api.Get(termPath(9999))
	requireError(t, resp, http.StatusNotFound, "NOT_FOUND")
}

func TestListTerms(t *testing.T) {
	ts := setupTestServer(t)
	science := ts.createTerm(t, "subject", "Science", 0)
	ts.createTerm(t, "subject", "Physics", science.ID)
	ts.createTerm(t, "subject", "Biology", science.ID)
	ts.createTerm(t, "tag", "Favourite", 0)

	resp := ts.api.Get("/api/v1/terms?taxonomy=subject")
	assert.Len(t, decodeData[TermsResponse](t, resp).Terms, 3)

	resp = ts.api.Get("/api/v1/terms?parent_id=" + strconv.FormatInt(science.ID, 10))
	children := decodeData[TermsResponse](t, resp).Terms
	require.Len(t, children, 2)
	assert.Equal(t, "Biology", children[0].Name)

	resp = ts.api.Get("/api/v1/terms?root_only=true")
	assert.Len(t, decodeData[TermsResponse](t, resp).Terms, 2)
}

func TestUpdateTerm_MoveAndCycle(t *testing.T) {
	ts := setupTestServer(t)
	a := ts.createTerm(t, "subject", "A", 0)
	b := ts.createTerm(t, "subject", "B", a.ID)
	other := ts.createTerm(t, "subject", "Other", 0)

	resp := ts.api.Patch(termPath(b.ID), map[string]any{"parent_id": other.ID, "name": "B2"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	moved := decodeData[domain.Term](t, resp)
	assert.Equal(t, "B2", moved.Name)
	assert.Equal(t, "b", moved.Slug, "slug kept unless given")
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, other.ID, *moved.ParentID)

	resp = ts.api.Patch(termPath(other.ID), map[string]any{"parent_id": b.ID})
	requireError(t, resp, http.StatusBadRequest, "VALIDATION")

	resp = ts.api.Patch(termPath(b.ID), map[string]any{"parent_id": 0})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, decodeData[domain.Term](t, resp).ParentID)
}

func TestDeleteTerm_LiftsChildren(t *testing.T) {
	ts := setupTestServer(t)
	a := ts.createTerm(t, "subject", "A", 0)
	b := ts.createTerm(t, "subject", "B", a.ID)
	c := ts.createTerm(t, "subject", "C", b.ID)
	ts.createItem(t, "Notes", b.ID)

	resp := ts.api.Delete(termPath(b.ID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	got := decodeData[DeleteTermResponse](t, resp)
	assert.Equal(t, DeleteTermResponse{ID: b.ID, RelationsRemoved: 1, ChildrenLifted: 1}, got)

	resp = ts.api.Get(termPath(c.ID))
	lifted := decodeData[TermDetailResponse](t, resp)
	require.NotNil(t, lifted.ParentID)
	assert.Equal(t, a.ID, *lifted.ParentID)

	resp = ts.api.Delete(termPath(b.ID))
	requireError(t, resp, http.StatusNotFound, "NOT_FOUND")
}

func TestRemoveTermRelations(t *testing.T) {
	ts := setupTestServer(t)
	tag := ts.createTerm(t, "tag", "Later", 0)
	ts.createItem(t, "One", tag.ID)
	ts.createItem(t, "Two", tag.ID)

	resp := ts.api.Delete(termPath(tag.ID) + "/relations")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 2, decodeData[RelationsRemovedResponse](t, resp).Removed)

	resp = ts.api.Get(termPath(tag.ID))
	assert.Zero(t, decodeData[TermDetailResponse](t, resp).Count)
}
