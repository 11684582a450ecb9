package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

// assertCountInvariant checks that every stored count equals the number of
// relation rows referencing the term.
func assertCountInvariant(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	terms, err := s.ListAllTerms(ctx)
	if err != nil {
		t.Fatalf("ListAllTerms: %v", err)
	}
	for _, term := range terms {
		actual, err := s.CountRelations(ctx, term.ID)
		if err != nil {
			t.Fatalf("CountRelations: %v", err)
		}
		if term.Count != actual {
			t.Errorf("term %d (%s): stored count %d, actual %d", term.ID, term.Name, term.Count, actual)
		}
	}
}

func TestAddRelation_DuplicateIsAbsorbed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	term := mustTerm(t, s, "subject", "Child", nil)
	it := mustItem(t, s, "item")

	added, err := s.AddRelation(ctx, it.ID, term.ID)
	if err != nil || !added {
		t.Fatalf("first AddRelation: added=%v err=%v", added, err)
	}
	if c := termCount(t, s, term.ID); c != 1 {
		t.Fatalf("count after first add: got %d, want 1", c)
	}

	added, err = s.AddRelation(ctx, it.ID, term.ID)
	if err != nil {
		t.Fatalf("second AddRelation: %v", err)
	}
	if added {
		t.Error("duplicate AddRelation reported success")
	}
	if c := termCount(t, s, term.ID); c != 1 {
		t.Errorf("count after duplicate: got %d, want 1", c)
	}

	ok, err := s.CheckRelation(ctx, it.ID, term.ID)
	if err != nil || !ok {
		t.Errorf("CheckRelation: got %v, %v", ok, err)
	}
	assertCountInvariant(t, s)
}

func TestAddRelation_MissingEnds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	term := mustTerm(t, s, "subject", "T", nil)
	it := mustItem(t, s, "i")

	if _, err := s.AddRelation(ctx, 999, term.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing item: expected ErrNotFound, got %v", err)
	}
	if _, err := s.AddRelation(ctx, it.ID, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing term: expected ErrNotFound, got %v", err)
	}
	if c := termCount(t, s, term.ID); c != 0 {
		t.Errorf("count changed on failed add: %d", c)
	}
}

func TestRemoveRelation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	term := mustTerm(t, s, "tag", "T", nil)
	it := mustItem(t, s, "i")
	if _, err := s.AddRelation(ctx, it.ID, term.ID); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	removed, err := s.RemoveRelation(ctx, it.ID, term.ID)
	if err != nil || !removed {
		t.Fatalf("RemoveRelation: removed=%v err=%v", removed, err)
	}
	if c := termCount(t, s, term.ID); c != 0 {
		t.Errorf("count after remove: got %d", c)
	}

	// Removing again must not drive the count negative.
	removed, err = s.RemoveRelation(ctx, it.ID, term.ID)
	if err != nil || removed {
		t.Fatalf("second RemoveRelation: removed=%v err=%v", removed, err)
	}
	if c := termCount(t, s, term.ID); c != 0 {
		t.Errorf("count after no-op remove: got %d", c)
	}
}

func TestRemoveAllRelationsFor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := mustTerm(t, s, "subject", "T1", nil)
	t2 := mustTerm(t, s, "subject", "T2", nil)
	i1 := mustItem(t, s, "i1")
	i2 := mustItem(t, s, "i2")
	rels := []domain.Relation{
		{ItemID: i1.ID, TermID: t1.ID},
		{ItemID: i1.ID, TermID: t2.ID},
		{ItemID: i2.ID, TermID: t1.ID},
		{ItemID: i2.ID, TermID: t2.ID},
	}
	for _, r := range rels {
		if _, err := s.AddRelation(ctx, r.ItemID, r.TermID); err != nil {
			t.Fatalf("AddRelation: %v", err)
		}
	}

	n, err := s.RemoveAllRelationsFor(ctx, i1.ID, domain.SideItem)
	if err != nil || n != 2 {
		t.Fatalf("item side: n=%d err=%v", n, err)
	}
	if termCount(t, s, t1.ID) != 1 || termCount(t, s, t2.ID) != 1 {
		t.Errorf("item side counts: t1=%d t2=%d", termCount(t, s, t1.ID), termCount(t, s, t2.ID))
	}

	n, err = s.RemoveAllRelationsFor(ctx, t1.ID, domain.SideTerm)
	if err != nil || n != 1 {
		t.Fatalf("term side: n=%d err=%v", n, err)
	}
	if termCount(t, s, t1.ID) != 0 || termCount(t, s, t2.ID) != 1 {
		t.Errorf("term side counts: t1=%d t2=%d", termCount(t, s, t1.ID), termCount(t, s, t2.ID))
	}
	assertCountInvariant(t, s)
}

func TestSetItemRelations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustTerm(t, s, "tag", "a", nil)
	b := mustTerm(t, s, "tag", "b", nil)
	c := mustTerm(t, s, "tag", "c", nil)
	it := mustItem(t, s, "i")

	change, err := s.SetItemRelations(ctx, it.ID, []int64{a.ID, b.ID, b.ID})
	if err != nil {
		t.Fatalf("SetItemRelations: %v", err)
	}
	if len(change.Added) != 2 || len(change.Removed) != 0 {
		t.Errorf("first change: %+v", change)
	}

	change, err = s.SetItemRelations(ctx, it.ID, []int64{b.ID, c.ID})
	if err != nil {
		t.Fatalf("SetItemRelations: %v", err)
	}
	if !slices.Equal(change.Added, []int64{c.ID}) || !slices.Equal(change.Removed, []int64{a.ID}) {
		t.Errorf("second change: %+v", change)
	}

	ids, err := s.ItemTermIDs(ctx, it.ID)
	if err != nil {
		t.Fatalf("ItemTermIDs: %v", err)
	}
	if !slices.Equal(ids, []int64{b.ID, c.ID}) {
		t.Errorf("ItemTermIDs: got %v", ids)
	}
	assertCountInvariant(t, s)

	// A missing term rolls back the whole replacement.
	if _, err := s.SetItemRelations(ctx, it.ID, []int64{a.ID, 999}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ids, _ = s.ItemTermIDs(ctx, it.ID)
	if !slices.Equal(ids, []int64{b.ID, c.ID}) {
		t.Errorf("failed replacement leaked changes: %v", ids)
	}
	assertCountInvariant(t, s)
}

func TestBulkDeleteItems_DecrementsRelatedTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t2 := mustTerm(t, s, "subject", "Two", nil)
	t3 := mustTerm(t, s, "subject", "Three", nil)
	victim := mustItem(t, s, "victim")
	other := mustItem(t, s, "other")
	seed := []domain.Relation{
		{ItemID: victim.ID, TermID: t2.ID},
		{ItemID: victim.ID, TermID: t3.ID},
		{ItemID: other.ID, TermID: t2.ID},
	}
	for _, r := range seed {
		if _, err := s.AddRelation(ctx, r.ItemID, r.TermID); err != nil {
			t.Fatalf("AddRelation: %v", err)
		}
	}
	before2, before3 := termCount(t, s, t2.ID), termCount(t, s, t3.ID)

	deleted, err := s.BulkDeleteItems(ctx, []int64{victim.ID, 12345})
	if err != nil {
		t.Fatalf("BulkDeleteItems: %v", err)
	}
	if !slices.Equal(deleted, []int64{victim.ID}) {
		t.Errorf("deleted: got %v", deleted)
	}

	if got := termCount(t, s, t2.ID); got != before2-1 {
		t.Errorf("term 2 count: got %d, want %d", got, before2-1)
	}
	if got := termCount(t, s, t3.ID); got != before3-1 {
		t.Errorf("term 3 count: got %d, want %d", got, before3-1)
	}

	rels, err := s.ListRelations(ctx)
	if err != nil {
		t.Fatalf("ListRelations: %v", err)
	}
	for _, r := range rels {
		if r.ItemID == victim.ID {
			t.Errorf("relation of deleted item remains: %+v", r)
		}
	}
	if _, err := s.GetItem(ctx, victim.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted item still present: %v", err)
	}
	assertCountInvariant(t, s)
}

func TestItemTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := mustTerm(t, s, "tag", "zeta", nil)
	subj := mustTerm(t, s, "subject", "Alpha", nil)
	it := mustItem(t, s, "i")
	for _, id := range []int64{tag.ID, subj.ID} {
		if _, err := s.AddRelation(ctx, it.ID, id); err != nil {
			t.Fatalf("AddRelation: %v", err)
		}
	}

	terms, err := s.ItemTerms(ctx, it.ID)
	if err != nil {
		t.Fatalf("ItemTerms: %v", err)
	}
	if len(terms) != 2 || terms[0].Taxonomy != "subject" || terms[1].Taxonomy != "tag" {
		t.Errorf("ItemTerms: got %v", names(terms))
	}
}

// TestRelationCounts_RandomSequences applies seeded random mixes of relation
// writes and item deletions and checks the stored counts after every step,
// both against the relation rows and against an in-memory model.
func TestRelationCounts_RandomSequences(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42, 2024} {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(seed, seed*31+1))

			var termIDs []int64
			for i := range 5 {
				termIDs = append(termIDs, mustTerm(t, s, "tag", fmt.Sprintf("t%d", i), nil).ID)
			}
			model := map[int64]map[int64]bool{} // item -> related terms
			created := 0
			newItem := func() {
				created++
				it := mustItem(t, s, fmt.Sprintf("item %d", created))
				model[it.ID] = map[int64]bool{}
			}
			for range 6 {
				newItem()
			}
			pickItem := func() int64 {
				ids := slices.Sorted(maps.Keys(model))
				return ids[rng.IntN(len(ids))]
			}
			pickTerm := func() int64 { return termIDs[rng.IntN(len(termIDs))] }

			for step := range 150 {
				if len(model) < 3 {
					newItem()
				}
				var op string
				switch rng.IntN(6) {
				case 0, 1:
					op = "add"
					item, term := pickItem(), pickTerm()
					added, err := s.AddRelation(ctx, item, term)
					if err != nil {
						t.Fatalf("step %d AddRelation: %v", step, err)
					}
					if added == model[item][term] {
						t.Fatalf("step %d AddRelation(%d, %d) = %v with relation present %v", step, item, term, added, model[item][term])
					}
					model[item][term] = true
				case 2:
					op = "remove"
					item, term := pickItem(), pickTerm()
					removed, err := s.RemoveRelation(ctx, item, term)
					if err != nil {
						t.Fatalf("step %d RemoveRelation: %v", step, err)
					}
					if removed != model[item][term] {
						t.Fatalf("step %d RemoveRelation(%d, %d) = %v", step, item, term, removed)
					}
					delete(model[item], term)
				case 3:
					op = "set"
					item := pickItem()
					var want []int64
					for _, term := range termIDs {
						if rng.IntN(2) == 0 {
							want = append(want, term)
						}
					}
					// Duplicates in the request are absorbed.
					if len(want) > 0 && rng.IntN(3) == 0 {
						want = append(want, want[0])
					}
					if _, err := s.SetItemRelations(ctx, item, want); err != nil {
						t.Fatalf("step %d SetItemRelations: %v", step, err)
					}
					model[item] = map[int64]bool{}
					for _, term := range want {
						model[item][term] = true
					}
				case 4:
					op = "remove all"
					item := pickItem()
					if _, err := s.RemoveAllRelationsFor(ctx, item, domain.SideItem); err != nil {
						t.Fatalf("step %d RemoveAllRelationsFor: %v", step, err)
					}
					model[item] = map[int64]bool{}
				case 5:
					op = "bulk delete"
					ids := []int64{pickItem(), pickItem(), 999999}
					deleted, err := s.BulkDeleteItems(ctx, ids)
					if err != nil {
						t.Fatalf("step %d BulkDeleteItems: %v", step, err)
					}
					for _, id := range deleted {
						delete(model, id)
					}
				}

				assertCountInvariant(t, s)
				for _, term := range termIDs {
					var want int64
					for _, related := range model {
						if related[term] {
							want++
						}
					}
					if got := termCount(t, s, term); got != want {
						t.Fatalf("step %d after %s: term %d count %d, model %d", step, op, term, got, want)
					}
				}
				if t.Failed() {
					t.Fatalf("step %d after %s: count invariant broken", step, op)
				}
			}
		})
	}
}
