package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

// seedDrift creates three terms with relations and corrupts two counts.
func seedDrift(t *testing.T, s *Store) []*domain.Term {
	t.Helper()
	ctx := context.Background()

	terms := []*domain.Term{
		mustTerm(t, s, "subject", "One", nil),
		mustTerm(t, s, "subject", "Two", nil),
		mustTerm(t, s, "tag", "Three", nil),
	}
	it := mustItem(t, s, "i")
	for _, term := range terms[:2] {
		if _, err := s.AddRelation(ctx, it.ID, term.ID); err != nil {
			t.Fatalf("AddRelation: %v", err)
		}
	}

	if _, err := s.db.Exec(`UPDATE terms SET term_count = 7 WHERE term_id = ?`, terms[0].ID); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE terms SET term_count = -2 WHERE term_id = ?`, terms[2].ID); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}
	return terms
}

func TestAuditCounts_CorrectsDrift(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	terms := seedDrift(t, s)

	var last domain.AuditProgress
	calls := 0
	res, err := s.AuditCounts(ctx, func(p domain.AuditProgress) {
		calls++
		last = p
	})
	if err != nil {
		t.Fatalf("AuditCounts: %v", err)
	}

	if res.Checked != 3 {
		t.Errorf("Checked: got %d, want 3", res.Checked)
	}
	if len(res.Corrections) != 2 {
		t.Fatalf("Corrections: got %+v", res.Corrections)
	}
	first := res.Corrections[0]
	if first.TermID != terms[0].ID || first.Stored != 7 || first.Actual != 1 {
		t.Errorf("first correction: got %+v", first)
	}
	if calls != 3 || last.Done != 3 || last.Total != 3 || last.Corrections != 2 {
		t.Errorf("progress: calls=%d last=%+v", calls, last)
	}
	assertCountInvariant(t, s)
}

func TestAuditCounts_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDrift(t, s)

	if _, err := s.AuditCounts(ctx, nil); err != nil {
		t.Fatalf("first audit: %v", err)
	}
	res, err := s.AuditCounts(ctx, nil)
	if err != nil {
		t.Fatalf("second audit: %v", err)
	}
	if len(res.Corrections) != 0 {
		t.Errorf("second audit corrected %d terms, want 0", len(res.Corrections))
	}
}

func TestAuditCounts_CancelRollsBack(t *testing.T) {
	s := newTestStore(t)
	terms := seedDrift(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel once the first (drifted) term has been corrected.
	_, err := s.AuditCounts(ctx, func(p domain.AuditProgress) {
		if p.Done == 1 {
			cancel()
		}
	})
	if !errors.Is(err, store.ErrAuditCancelled) {
		t.Fatalf("expected ErrAuditCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}

	if c := termCount(t, s, terms[0].ID); c != 7 {
		t.Errorf("cancelled audit committed a correction: count=%d, want 7", c)
	}
}

func TestAuditCounts_AlreadyCancelled(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.AuditCounts(ctx, nil); !errors.Is(err, store.ErrAuditCancelled) {
		t.Fatalf("expected ErrAuditCancelled, got %v", err)
	}
}

func TestAuditCounts_Empty(t *testing.T) {
	s := newTestStore(t)

	res, err := s.AuditCounts(context.Background(), nil)
	if err != nil {
		t.Fatalf("AuditCounts: %v", err)
	}
	if res.Checked != 0 || len(res.Corrections) != 0 {
		t.Errorf("got %+v", res)
	}
}
