package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
)

// Stats counts items, terms and relations in one transaction. Every known
// item type and taxonomy appears in the breakdowns, with zero counts when
// empty.
func (s *Store) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	st := &domain.CatalogStats{}
	err := s.inTx(ctx, func(q querier) error {
		byType := map[string]*domain.TypeStats{}
		rows, err := q.QueryContext(ctx, `
			SELECT it.table_name, COUNT(i.item_id)
			FROM item_types AS it LEFT JOIN items AS i ON i.type_id = it.table_name
			GROUP BY it.table_name`)
		if err != nil {
			return fmt.Errorf("count items by type: %w", err)
		}
		if err := scanGroups(rows, func(key string, n []int) {
			byType[key] = &domain.TypeStats{Type: key, Items: n[0]}
		}, 1); err != nil {
			return err
		}
		// Items whose type row is gone still count.
		rows, err = q.QueryContext(ctx, `SELECT type_id, COUNT(*) FROM items GROUP BY type_id`)
		if err != nil {
			return fmt.Errorf("count items: %w", err)
		}
		if err := scanGroups(rows, func(key string, n []int) {
			byType[key] = &domain.TypeStats{Type: key, Items: n[0]}
			st.Items += n[0]
		}, 1); err != nil {
			return err
		}

		byTax := map[string]*domain.TaxonomyStats{}
		taxStats := func(key string) *domain.TaxonomyStats {
			ts, ok := byTax[key]
			if !ok {
				ts = &domain.TaxonomyStats{Taxonomy: key}
				byTax[key] = ts
			}
			return ts
		}
		rows, err = q.QueryContext(ctx, `SELECT table_name FROM taxonomies`)
		if err != nil {
			return fmt.Errorf("list taxonomies: %w", err)
		}
		if err := scanGroups(rows, func(key string, _ []int) { taxStats(key) }, 0); err != nil {
			return err
		}
		rows, err = q.QueryContext(ctx, `SELECT term_taxonomy, COUNT(*) FROM terms GROUP BY term_taxonomy`)
		if err != nil {
			return fmt.Errorf("count terms: %w", err)
		}
		if err := scanGroups(rows, func(key string, n []int) {
			taxStats(key).Terms = n[0]
			st.Terms += n[0]
		}, 1); err != nil {
			return err
		}
		rows, err = q.QueryContext(ctx, `
			SELECT t.term_taxonomy, COUNT(*), COUNT(DISTINCT r.item_id)
			FROM term_relationships AS r INNER JOIN terms AS t ON t.term_id = r.term_id
			GROUP BY t.term_taxonomy`)
		if err != nil {
			return fmt.Errorf("count relations: %w", err)
		}
		if err := scanGroups(rows, func(key string, n []int) {
			ts := taxStats(key)
			ts.Relations, ts.Items = n[0], n[1]
			st.Relations += n[0]
		}, 2); err != nil {
			return err
		}

		st.ItemsByType = sortedStats(byType, func(a, b *domain.TypeStats) int { return strings.Compare(a.Type, b.Type) })
		st.Taxonomies = sortedStats(byTax, func(a, b *domain.TaxonomyStats) int { return strings.Compare(a.Taxonomy, b.Taxonomy) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// scanGroups reads rows of a string key followed by width integer columns and
// closes rows.
func scanGroups(rows *sql.Rows, fn func(key string, n []int), width int) error {
	defer rows.Close()
	for rows.Next() {
		var key string
		n := make([]int, width)
		dest := []any{&key}
		for i := range n {
			dest = append(dest, &n[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

func sortedStats[T any](m map[string]*T, cmp func(a, b *T) int) []T {
	ptrs := make([]*T, 0, len(m))
	for _, v := range m {
		ptrs = append(ptrs, v)
	}
	slices.SortFunc(ptrs, cmp)
	out := make([]T, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}
