package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

// Every function in this file that writes term_relationships adjusts
// term_count in the same transaction by exactly the number of rows written.

func exists(ctx context.Context, q querier, query string, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func requireItemAndTerm(ctx context.Context, q querier, itemID, termID int64) error {
	ok, err := exists(ctx, q, `SELECT 1 FROM items WHERE item_id = ?`, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrItemNotFound
	}
	ok, err = exists(ctx, q, `SELECT 1 FROM terms WHERE term_id = ?`, termID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrTermNotFound
	}
	return nil
}

func checkRelation(ctx context.Context, q querier, itemID, termID int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM term_relationships WHERE item_id = ? AND term_id = ?`,
		itemID, termID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// addRelation inserts the pair and bumps the term count. An existing pair is
// reported as false with no count change.
func (s *Store) addRelation(ctx context.Context, q querier, itemID, termID int64) (bool, error) {
	if err := requireItemAndTerm(ctx, q, itemID, termID); err != nil {
		return false, err
	}
	if ok, err := checkRelation(ctx, q, itemID, termID); err != nil || ok {
		return false, err
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO term_relationships (item_id, term_id) VALUES (?, ?)`,
		itemID, termID); err != nil {
		if s.isDuplicate(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert relation: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE terms SET term_count = term_count + 1 WHERE term_id = ?`, termID); err != nil {
		return false, fmt.Errorf("increment count: %w", err)
	}
	return true, nil
}

// removeRelation deletes the pair and lowers the count by the rows deleted.
func removeRelation(ctx context.Context, q querier, itemID, termID int64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`DELETE FROM term_relationships WHERE item_id = ? AND term_id = ?`,
		itemID, termID)
	if err != nil {
		return false, fmt.Errorf("delete relation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE terms SET term_count = term_count - ? WHERE term_id = ?`, n, termID); err != nil {
		return false, fmt.Errorf("decrement count: %w", err)
	}
	return true, nil
}

func itemTermIDs(ctx context.Context, q querier, itemID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT term_id FROM term_relationships WHERE item_id = ? ORDER BY term_id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// removeAllForItem deletes every relation of an item and decrements each
// related term once.
func removeAllForItem(ctx context.Context, q querier, itemID int64) (int64, error) {
	termIDs, err := itemTermIDs(ctx, q, itemID)
	if err != nil {
		return 0, err
	}
	if len(termIDs) == 0 {
		return 0, nil
	}

	res, err := q.ExecContext(ctx, `DELETE FROM term_relationships WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("delete item relations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE terms SET term_count = term_count - 1 WHERE term_id IN (`+placeholders(len(termIDs))+`)`,
		int64Args(termIDs)...); err != nil {
		return 0, fmt.Errorf("decrement counts: %w", err)
	}
	return n, nil
}

// removeAllForTerm deletes every relation of a term and zeroes its count.
func removeAllForTerm(ctx context.Context, q querier, termID int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM term_relationships WHERE term_id = ?`, termID)
	if err != nil {
		return 0, fmt.Errorf("delete term relations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE terms SET term_count = 0 WHERE term_id = ?`, termID); err != nil {
		return 0, fmt.Errorf("zero count: %w", err)
	}
	return n, nil
}

// AddRelation relates an item to a term. It returns false, nil when the pair
// already exists.
func (s *Store) AddRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	var added bool
	err := s.inTx(ctx, func(q querier) error {
		var err error
		added, err = s.addRelation(ctx, q, itemID, termID)
		return err
	})
	return added, err
}

// RemoveRelation unrelates an item from a term. It returns false, nil when
// the pair did not exist.
func (s *Store) RemoveRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(q querier) error {
		var err error
		removed, err = removeRelation(ctx, q, itemID, termID)
		return err
	})
	return removed, err
}

// CheckRelation reports whether the pair exists.
func (s *Store) CheckRelation(ctx context.Context, itemID, termID int64) (bool, error) {
	return checkRelation(ctx, s.db, itemID, termID)
}

// RemoveAllRelationsFor removes every relation of an item or of a term and
// returns how many rows were deleted.
func (s *Store) RemoveAllRelationsFor(ctx context.Context, id int64, side domain.RelationSide) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(q querier) error {
		var err error
		if side == domain.SideTerm {
			n, err = removeAllForTerm(ctx, q, id)
		} else {
			n, err = removeAllForItem(ctx, q, id)
		}
		return err
	})
	return n, err
}

// SetItemRelations makes termIDs the exact relation set of an item.
func (s *Store) SetItemRelations(ctx context.Context, itemID int64, termIDs []int64) (store.RelationChange, error) {
	change := store.RelationChange{Added: []int64{}, Removed: []int64{}}

	want := slices.Clone(termIDs)
	slices.Sort(want)
	want = slices.Compact(want)

	err := s.inTx(ctx, func(q querier) error {
		ok, err := exists(ctx, q, `SELECT 1 FROM items WHERE item_id = ?`, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrItemNotFound
		}

		have, err := itemTermIDs(ctx, q, itemID)
		if err != nil {
			return err
		}

		for _, id := range have {
			if _, keep := slices.BinarySearch(want, id); keep {
				continue
			}
			if _, err := removeRelation(ctx, q, itemID, id); err != nil {
				return err
			}
			change.Removed = append(change.Removed, id)
		}
		for _, id := range want {
			if slices.Contains(have, id) {
				continue
			}
			added, err := s.addRelation(ctx, q, itemID, id)
			if err != nil {
				return err
			}
			if added {
				change.Added = append(change.Added, id)
			}
		}
		return nil
	})
	if err != nil {
		return store.RelationChange{}, err
	}
	return change, nil
}

// ItemTermIDs returns the ids of the terms related to an item.
func (s *Store) ItemTermIDs(ctx context.Context, itemID int64) ([]int64, error) {
	return itemTermIDs(ctx, s.db, itemID)
}

// ItemTerms returns the terms related to an item ordered by taxonomy and name.
func (s *Store) ItemTerms(ctx context.Context, itemID int64) ([]*domain.Term, error) {
	return queryTerms(ctx, s.db, `
		SELECT t.term_id, t.term_name, t.term_slug, t.term_taxonomy, t.term_description, t.term_parent, t.term_count
		FROM terms AS t
		JOIN term_relationships AS r ON r.term_id = t.term_id
		WHERE r.item_id = ?
		ORDER BY t.term_taxonomy, t.term_name, t.term_id`, itemID)
}

// ListRelations returns every relation ordered by item then term.
func (s *Store) ListRelations(ctx context.Context) ([]domain.Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, term_id FROM term_relationships ORDER BY item_id, term_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rels := []domain.Relation{}
	for rows.Next() {
		var r domain.Relation
		if err := rows.Scan(&r.ItemID, &r.TermID); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// CountRelations returns the number of relation rows referencing a term.
func (s *Store) CountRelations(ctx context.Context, termID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM term_relationships WHERE term_id = ?`, termID).Scan(&n)
	return n, err
}
