package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/store"
)

type auditRow struct {
	id       int64
	name     string
	taxonomy string
	stored   int64
}

// AuditCounts recomputes every term count from the relation table and writes
// back the ones that drifted. The whole pass is one transaction: when ctx is
// cancelled between terms nothing is committed and the returned error wraps
// both store.ErrAuditCancelled and the context error.
//
// progress, when non-nil, is called after every term.
func (s *Store) AuditCounts(ctx context.Context, progress func(domain.AuditProgress)) (domain.AuditResult, error) {
	result := domain.AuditResult{Corrections: []domain.CountCorrection{}}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %w", store.ErrAuditCancelled, err)
	}

	err := s.inTx(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT term_id, term_name, term_taxonomy, term_count FROM terms ORDER BY term_id`)
		if err != nil {
			return fmt.Errorf("list terms: %w", err)
		}
		var terms []auditRow
		for rows.Next() {
			var r auditRow
			if err := rows.Scan(&r.id, &r.name, &r.taxonomy, &r.stored); err != nil {
				rows.Close()
				return err
			}
			terms = append(terms, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}

		for i, t := range terms {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", store.ErrAuditCancelled, err)
			}

			var actual int64
			if err := q.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM term_relationships WHERE term_id = ?`, t.id).Scan(&actual); err != nil {
				return fmt.Errorf("count relations of term %d: %w", t.id, err)
			}

			if actual != t.stored {
				if _, err := q.ExecContext(ctx,
					`UPDATE terms SET term_count = ? WHERE term_id = ?`, actual, t.id); err != nil {
					return fmt.Errorf("correct count of term %d: %w", t.id, err)
				}
				result.Corrections = append(result.Corrections, domain.CountCorrection{
					TermID:   t.id,
					Name:     t.name,
					Taxonomy: t.taxonomy,
					Stored:   t.stored,
					Actual:   actual,
				})
			}
			result.Checked = i + 1

			if progress != nil {
				progress(domain.AuditProgress{
					Done:        i + 1,
					Total:       len(terms),
					Corrections: len(result.Corrections),
				})
			}
		}

		// A cancel after the last row still discards the pass.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrAuditCancelled, err)
		}
		return nil
	})
	if err != nil {
		// The driver may surface a cancel as a failed query.
		if ctx.Err() != nil && !errors.Is(err, store.ErrAuditCancelled) {
			err = fmt.Errorf("%w: %w", store.ErrAuditCancelled, ctx.Err())
		}
		return domain.AuditResult{}, err
	}

	s.logger.Info("count audit finished",
		"checked", result.Checked,
		"corrections", len(result.Corrections),
	)
	return result, nil
}
