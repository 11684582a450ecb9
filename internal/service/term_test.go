package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/domain"
	domainerrors "github.com/filecatman/catalog/internal/errors"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store"
)

func TestTermService_CreateTerm(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	term, err := env.terms.CreateTerm(ctx, CreateTermRequest{
		Name:     "  Science Fiction ",
		Taxonomy: "subject",
	})
	require.NoError(t, err)
	assert.NotZero(t, term.ID)
	assert.Equal(t, "Science Fiction", term.Name)
	assert.Equal(t, "science-fiction", term.Slug)
	assert.True(t, term.IsRoot())
	assert.Equal(t, []sse.EventType{sse.EventTermCreated}, env.emitter.types())

	got, err := env.terms.GetTermBySlug(ctx, "subject", "science-fiction")
	require.NoError(t, err)
	assert.Equal(t, term.ID, got.ID)
}

func TestTermService_CreateTerm_Validation(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateTermRequest
	}{
		{"missing name", CreateTermRequest{Taxonomy: "subject"}},
		{"blank name", CreateTermRequest{Name: "   ", Taxonomy: "subject"}},
		{"bad slug", CreateTermRequest{Name: "Physics", Slug: "Not A Slug", Taxonomy: "subject"}},
		{"bad taxonomy name", CreateTermRequest{Name: "Physics", Taxonomy: "Sub ject"}},
		{"unknown taxonomy", CreateTermRequest{Name: "Physics", Taxonomy: "genre"}},
		{"unknown parent", CreateTermRequest{Name: "Physics", Taxonomy: "subject", ParentID: domain.Int64Ptr(999)}},
		{"no slug from name", CreateTermRequest{Name: "!!!", Taxonomy: "subject"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.terms.CreateTerm(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
	assert.Empty(t, env.emitter.types())
}

func TestTermService_CreateTerm_DuplicateSlug(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	env.term(t, "subject", "Physics", nil)

	_, err := env.terms.CreateTerm(ctx, CreateTermRequest{Name: "PHYSICS", Taxonomy: "subject"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)

	// The same slug in another taxonomy is fine.
	_, err = env.terms.CreateTerm(ctx, CreateTermRequest{Name: "Physics", Taxonomy: "tag"})
	assert.NoError(t, err)
}

func TestTermService_CreateTerm_ParentRules(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	author := env.term(t, "author", "Ursula Le Guin", nil)
	subject := env.term(t, "subject", "Fiction", nil)

	// Authors do not have children.
	_, err := env.terms.CreateTerm(ctx, CreateTermRequest{
		Name: "Earthsea", Taxonomy: "author", ParentID: domain.Int64Ptr(author.ID),
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	// A parent from another taxonomy is rejected.
	_, err = env.terms.CreateTerm(ctx, CreateTermRequest{
		Name: "Fantasy", Taxonomy: "subject", ParentID: domain.Int64Ptr(author.ID),
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	child, err := env.terms.CreateTerm(ctx, CreateTermRequest{
		Name: "Fantasy", Taxonomy: "subject", ParentID: domain.Int64Ptr(subject.ID),
	})
	require.NoError(t, err)
	assert.True(t, child.HasParent(subject.ID))

	// Parent 0 means root.
	root, err := env.terms.CreateTerm(ctx, CreateTermRequest{
		Name: "History", Taxonomy: "subject", ParentID: domain.Int64Ptr(0),
	})
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
}

func TestTermService_CreateTerm_LevelLimit(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	// Levels 0, 1 and 2 fit.
	chain := env.chain(t, 3)

	_, err := env.terms.CreateTerm(ctx, CreateTermRequest{
		Name: "Too Deep", Taxonomy: "subject", ParentID: domain.Int64Ptr(chain[2].ID),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	var derr *domainerrors.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, map[string]int{"deepest_level": 3, "max_level": 2}, derr.Details)
}

func TestTermService_CreateTerm_LevelsFromOption(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	_, err := env.catalog.SetOption(ctx, domain.OptionCategoryLevels, "0")
	require.NoError(t, err)

	root := env.term(t, "subject", "Only Roots", nil)
	_, err = env.terms.CreateTerm(ctx, CreateTermRequest{
		Name: "Child", Taxonomy: "subject", ParentID: domain.Int64Ptr(root.ID),
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestTermService_UpdateTerm_Move(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	a := env.term(t, "subject", "A", nil)
	b := env.term(t, "subject", "B", nil)
	c := env.term(t, "subject", "C", a)

	moved, err := env.terms.UpdateTerm(ctx, c.ID, UpdateTermRequest{ParentID: domain.Int64Ptr(b.ID)})
	require.NoError(t, err)
	assert.True(t, moved.HasParent(b.ID))

	chain, err := env.terms.Ancestors(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, b.ID, chain[0].ID)

	// Back to the root.
	moved, err = env.terms.UpdateTerm(ctx, c.ID, UpdateTermRequest{ParentID: domain.Int64Ptr(0)})
	require.NoError(t, err)
	assert.True(t, moved.IsRoot())
	assert.Equal(t, 3, env.emitter.count(sse.EventTermCreated))
	assert.Equal(t, 2, env.emitter.count(sse.EventTermUpdated))
}

func TestTermService_UpdateTerm_RejectsCycles(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	chain := env.chain(t, 3)

	_, err := env.terms.UpdateTerm(ctx, chain[0].ID, UpdateTermRequest{ParentID: domain.Int64Ptr(chain[0].ID)})
	assert.ErrorIs(t, err, domainerrors.ErrValidation, "own parent")

	_, err = env.terms.UpdateTerm(ctx, chain[0].ID, UpdateTermRequest{ParentID: domain.Int64Ptr(chain[2].ID)})
	assert.ErrorIs(t, err, domainerrors.ErrValidation, "under own descendant")

	root, err := env.terms.GetTerm(ctx, chain[0].ID)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
}

func TestTermService_UpdateTerm_MoveCountsSubtreeHeight(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()

	// X -> Y -> Z is two levels tall below X.
	x := env.term(t, "subject", "X", nil)
	y := env.term(t, "subject", "Y", x)
	env.term(t, "subject", "Z", y)

	deep := env.chain(t, 3)

	// Under the level-1 term, Z would land on level 4.
	_, err := env.terms.UpdateTerm(ctx, x.ID, UpdateTermRequest{ParentID: domain.Int64Ptr(deep[1].ID)})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	// Under the level-0 term, Z lands on level 3.
	_, err = env.terms.UpdateTerm(ctx, x.ID, UpdateTermRequest{ParentID: domain.Int64Ptr(deep[0].ID)})
	assert.NoError(t, err)
}

func TestTermService_UpdateTerm_Fields(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	a := env.term(t, "subject", "Astronomy", nil)
	env.term(t, "subject", "Biology", nil)

	name := "Astrophysics"
	desc := "Stars and such"
	updated, err := env.terms.UpdateTerm(ctx, a.ID, UpdateTermRequest{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Astrophysics", updated.Name)
	assert.Equal(t, "astronomy", updated.Slug, "slug is kept unless given")
	assert.Equal(t, desc, updated.Description)

	taken := "biology"
	_, err = env.terms.UpdateTerm(ctx, a.ID, UpdateTermRequest{Slug: &taken})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)

	_, err = env.terms.UpdateTerm(ctx, 999, UpdateTermRequest{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTermService_DeleteTerm_LiftsChildren(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	chain := env.chain(t, 3)
	item := env.item(t, "Paper", chain[1])
	assert.EqualValues(t, 1, env.count(t, chain[1].ID))

	res, err := env.terms.DeleteTerm(ctx, chain[1].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RelationsRemoved)
	assert.EqualValues(t, 1, res.ChildrenLifted)

	leaf, err := env.terms.GetTerm(ctx, chain[2].ID)
	require.NoError(t, err)
	assert.True(t, leaf.HasParent(chain[0].ID))

	related, err := env.relations.CheckRelation(ctx, item.ID, chain[1].ID)
	require.NoError(t, err)
	assert.False(t, related)

	_, err = env.terms.DeleteTerm(ctx, chain[1].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, env.emitter.count(sse.EventTermDeleted))
}

func TestTermService_ListTerms(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	root := env.term(t, "subject", "Root", nil)
	env.term(t, "subject", "Leaf", root)
	env.term(t, "tag", "Unrelated", nil)

	all, err := env.terms.ListTerms(ctx, store.TermFilter{Taxonomy: "subject"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	roots, err := env.terms.ListTerms(ctx, store.TermFilter{Taxonomy: "subject", RootOnly: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)

	children, err := env.terms.ListTerms(ctx, store.TermFilter{ParentID: &root.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Leaf", children[0].Name)
}

func TestTermService_UpdateTerm_ConcurrentSwapNeverLoops(t *testing.T) {
	env := newTestEnv(t, -1)
	ctx := context.Background()

	for round := range 10 {
		a := env.term(t, "subject", fmt.Sprintf("A%d", round), nil)
		b := env.term(t, "subject", fmt.Sprintf("B%d", round), nil)

		// A under B and B under A race; only one may win.
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, mv := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = env.terms.UpdateTerm(ctx, mv[0], UpdateTermRequest{ParentID: domain.Int64Ptr(mv[1])})
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, domainerrors.ErrValidation)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "round %d", round)

		roots := 0
		for _, id := range []int64{a.ID, b.ID} {
			term, err := env.terms.GetTerm(ctx, id)
			require.NoError(t, err)
			if term.IsRoot() {
				roots++
			}
		}
		assert.Equal(t, 1, roots, "round %d: the pair must end as one edge", round)
	}
}
