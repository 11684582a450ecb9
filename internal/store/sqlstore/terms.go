package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

// termColumns must match the scan order in scanTerm.
const termColumns = `term_id, term_name, term_slug, term_taxonomy, term_description, term_parent, term_count`

// scanTerm scans a sql.Row (or sql.Rows via its Scan method) into a domain.Term.
func scanTerm(scanner interface{ Scan(dest ...any) error }) (*domain.Term, error) {
	var (
		t      domain.Term
		parent sql.NullInt64
	)
	err := scanner.Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&t.Taxonomy,
		&t.Description,
		&parent,
		&t.Count,
	)
	if err != nil {
		return nil, err
	}
	t.ParentID = ptrInt64(parent)
	return &t, nil
}

func queryTerms(ctx context.Context, q querier, query string, args ...any) ([]*domain.Term, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := []*domain.Term{}
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}

func createTerm(ctx context.Context, q querier, t *domain.Term) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO terms (term_name, term_slug, term_taxonomy, term_description, term_parent, term_count)
		VALUES (?, ?, ?, ?, ?, 0)`,
		t.Name,
		t.Slug,
		t.Taxonomy,
		t.Description,
		nullInt64(t.ParentID),
	)
	if err != nil {
		return fmt.Errorf("insert term: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("term id: %w", err)
	}
	t.ID = id
	t.Count = 0
	return nil
}

func getTerm(ctx context.Context, q querier, id int64) (*domain.Term, error) {
	row := q.QueryRowContext(ctx, `SELECT `+termColumns+` FROM terms WHERE term_id = ?`, id)
	t, err := scanTerm(row)
	if err != nil {
		return nil, notFound(err, store.ErrTermNotFound)
	}
	return t, nil
}

func getTermBySlug(ctx context.Context, q querier, taxonomy, slug string) (*domain.Term, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+termColumns+` FROM terms
		WHERE term_taxonomy = ? AND term_slug = ?
		ORDER BY term_id LIMIT 1`, taxonomy, slug)
	t, err := scanTerm(row)
	if err != nil {
		return nil, notFound(err, store.ErrTermNotFound)
	}
	return t, nil
}

func updateTerm(ctx context.Context, q querier, t *domain.Term) error {
	res, err := q.ExecContext(ctx, `
		UPDATE terms
		SET term_name = ?, term_slug = ?, term_taxonomy = ?, term_description = ?, term_parent = ?
		WHERE term_id = ?`,
		t.Name,
		t.Slug,
		t.Taxonomy,
		t.Description,
		nullInt64(t.ParentID),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return requireAffected(ctx, q, res, `SELECT 1 FROM terms WHERE term_id = ?`, t.ID, store.ErrTermNotFound)
}

// requireAffected distinguishes "no row" from "row unchanged". MySQL reports
// zero affected rows when an UPDATE writes identical values.
func requireAffected(ctx context.Context, q querier, res sql.Result, probe string, id int64, nf *store.Error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := q.QueryRowContext(ctx, probe, id).Scan(&one); err != nil {
		return notFound(err, nf)
	}
	return nil
}

// upsertTermBySlug replaces the term with t's slug and taxonomy, or inserts t.
// The replaced term keeps its id and count so existing relations stay valid.
func upsertTermBySlug(ctx context.Context, q querier, t *domain.Term) (bool, error) {
	existing, err := getTermBySlug(ctx, q, t.Taxonomy, t.Slug)
	if errors.Is(err, store.ErrNotFound) {
		return true, createTerm(ctx, q, t)
	}
	if err != nil {
		return false, err
	}

	t.ID = existing.ID
	t.Count = existing.Count
	return false, updateTerm(ctx, q, t)
}

// liftChildren moves the children of a term to the term's own parent.
func liftChildren(ctx context.Context, q querier, t *domain.Term) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE terms SET term_parent = ? WHERE term_parent = ?`,
		nullInt64(t.ParentID), t.ID)
	if err != nil {
		return 0, fmt.Errorf("lift children: %w", err)
	}
	return res.RowsAffected()
}

// CreateTerm inserts a term and sets t.ID. The count always starts at zero.
func (s *Store) CreateTerm(ctx context.Context, t *domain.Term) error {
	return createTerm(ctx, s.db, t)
}

// GetTerm retrieves a term by id.
// Returns store.ErrTermNotFound if the term does not exist.
func (s *Store) GetTerm(ctx context.Context, id int64) (*domain.Term, error) {
	return getTerm(ctx, s.db, id)
}

// GetTermBySlug retrieves a term by taxonomy and slug.
func (s *Store) GetTermBySlug(ctx context.Context, taxonomy, slug string) (*domain.Term, error) {
	return getTermBySlug(ctx, s.db, taxonomy, slug)
}

// GetTermsByIDs returns the terms that exist among ids, ordered by id.
func (s *Store) GetTermsByIDs(ctx context.Context, ids []int64) ([]*domain.Term, error) {
	if len(ids) == 0 {
		return []*domain.Term{}, nil
	}
	return queryTerms(ctx, s.db,
		`SELECT `+termColumns+` FROM terms WHERE term_id IN (`+placeholders(len(ids))+`) ORDER BY term_id`,
		int64Args(ids)...)
}

// ListTerms returns terms matching f ordered by name, then id.
func (s *Store) ListTerms(ctx context.Context, f store.TermFilter) ([]*domain.Term, error) {
	var (
		where []string
		args  []any
	)
	if f.Taxonomy != "" {
		where = append(where, "term_taxonomy = ?")
		args = append(args, f.Taxonomy)
	}
	switch {
	case f.ParentID != nil:
		where = append(where, "term_parent = ?")
		args = append(args, *f.ParentID)
	case f.RootOnly:
		where = append(where, "term_parent IS NULL")
	}

	query := `SELECT ` + termColumns + ` FROM terms`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY term_name, term_id`

	return queryTerms(ctx, s.db, query, args...)
}

// ListAllTerms returns every term ordered by id.
func (s *Store) ListAllTerms(ctx context.Context) ([]*domain.Term, error) {
	return queryTerms(ctx, s.db, `SELECT `+termColumns+` FROM terms ORDER BY term_id`)
}

// CountTerms returns the number of terms in a taxonomy, or in all taxonomies
// when taxonomy is empty.
func (s *Store) CountTerms(ctx context.Context, taxonomy string) (int, error) {
	var n int
	var err error
	if taxonomy == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM terms`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM terms WHERE term_taxonomy = ?`, taxonomy).Scan(&n)
	}
	return n, err
}

// UpdateTerm writes name, slug, taxonomy, description and parent. The count is
// never written here.
func (s *Store) UpdateTerm(ctx context.Context, t *domain.Term) error {
	return updateTerm(ctx, s.db, t)
}

// UpsertTermBySlug replaces or inserts a term keyed by slug and taxonomy.
// Returns true when a new term was created.
func (s *Store) UpsertTermBySlug(ctx context.Context, t *domain.Term) (bool, error) {
	var created bool
	err := s.inTx(ctx, func(q querier) error {
		var err error
		created, err = upsertTermBySlug(ctx, q, t)
		return err
	})
	return created, err
}

// DeleteTermResult describes the side effects of DeleteTerm.
type DeleteTermResult struct {
	Term             *domain.Term
	RelationsRemoved int64
	ChildrenLifted   int64
}

// DeleteTerm removes a term's relations, moves its children to its parent and
// deletes the term, all in one transaction.
func (s *Store) DeleteTerm(ctx context.Context, id int64) (DeleteTermResult, error) {
	var res DeleteTermResult
	err := s.inTx(ctx, func(q querier) error {
		t, err := getTerm(ctx, q, id)
		if err != nil {
			return err
		}
		res.Term = t

		if res.RelationsRemoved, err = removeAllForTerm(ctx, q, id); err != nil {
			return err
		}
		if res.ChildrenLifted, err = liftChildren(ctx, q, t); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM terms WHERE term_id = ?`, id); err != nil {
			return fmt.Errorf("delete term: %w", err)
		}
		return nil
	})
	if err != nil {
		return DeleteTermResult{}, err
	}

	s.logger.Debug("term deleted",
		"term_id", id,
		"relations_removed", res.RelationsRemoved,
		"children_lifted", res.ChildrenLifted,
	)
	return res, nil
}

// Ancestors returns the chain of ancestors of a term, root first. A parent
// loop in stored data stops the walk instead of spinning.
func (s *Store) Ancestors(ctx context.Context, id int64) ([]*domain.Term, error) {
	return ancestors(ctx, s.db, id)
}

func ancestors(ctx context.Context, q querier, id int64) ([]*domain.Term, error) {
	t, err := getTerm(ctx, q, id)
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{t.ID: true}
	var chain []*domain.Term
	for t.ParentID != nil && !seen[*t.ParentID] {
		seen[*t.ParentID] = true
		t, err = getTerm(ctx, q, *t.ParentID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, t)
	}

	slices.Reverse(chain)
	return chain, nil
}

// Depth returns the number of ancestors of a term; roots are at depth 0.
func (s *Store) Depth(ctx context.Context, id int64) (int, error) {
	chain, err := s.Ancestors(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// SubtreeHeight returns how many levels hang below a term: 0 for a leaf.
func (s *Store) SubtreeHeight(ctx context.Context, id int64) (int, error) {
	return levelsBelow(ctx, s.db, []int64{id})
}

// DeepestLevel returns the level of the deepest term reachable from a root:
// 0 when there are only roots, -1 for an empty catalog.
func (s *Store) DeepestLevel(ctx context.Context) (int, error) {
	return deepestLevel(ctx, s.db)
}

func deepestLevel(ctx context.Context, q querier) (int, error) {
	rows, err := q.QueryContext(ctx, `SELECT term_id FROM terms WHERE term_parent IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("list roots: %w", err)
	}
	roots, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}
	return levelsBelow(ctx, q, roots)
}

// childBatch bounds the placeholders of one children query.
const childBatch = 500

// levelsBelow walks down from frontier one level at a time and returns the
// number of levels found below it. An empty frontier yields -1. Terms already
// visited are not walked again, so stored parent loops terminate.
func levelsBelow(ctx context.Context, q querier, frontier []int64) (int, error) {
	seen := make(map[int64]bool, len(frontier))
	for _, id := range frontier {
		seen[id] = true
	}
	height := -1
	for len(frontier) > 0 {
		height++
		var next []int64
		for chunk := range slices.Chunk(frontier, childBatch) {
			rows, err := q.QueryContext(ctx,
				`SELECT term_id FROM terms WHERE term_parent IN (`+placeholders(len(chunk))+`)`,
				int64Args(chunk)...)
			if err != nil {
				return 0, fmt.Errorf("list children: %w", err)
			}
			children, err := scanIDs(rows)
			if err != nil {
				return 0, err
			}
			for _, child := range children {
				if !seen[child] {
					seen[child] = true
					next = append(next, child)
				}
			}
		}
		frontier = next
	}
	return height, nil
}

// scanIDs reads a single id column and closes rows.
func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
