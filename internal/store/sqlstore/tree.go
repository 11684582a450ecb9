package sqlstore

import (
	"context"
	"fmt"

	"github.com/filecatman/catalog/internal/tree"
	"github.com/filecatman/catalog/internal/treequery"
)

// LoadTree runs the forest query described by opts and returns the terms in
// pre-order with their levels.
func (s *Store) LoadTree(ctx context.Context, opts treequery.Options) ([]tree.Entry, error) {
	q, err := treequery.Build(opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query tree: %w", err)
	}
	defer rows.Close()

	entries, err := q.Collect(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tree loaded",
		"strategy", q.Strategy,
		"levels", q.Levels,
		"taxonomy", opts.Filter.Taxonomy,
		"entries", len(entries),
	)
	return entries, nil
}
