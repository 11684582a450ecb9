// Package treequery generates the SQL that loads a taxonomy forest from the
// terms table.
//
// Two strategies exist. StrategyJoins self-joins the table once per level and
// returns one wide row per root-to-leaf path; it runs on any SQL backend.
// StrategyRecursive walks the forest with a recursive common table expression
// and returns one row per term together with its parent id. Both stop at the
// configured number of category levels.
package treequery

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/filecatman/catalog/internal/domain"
	"github.com/filecatman/catalog/internal/tree"
)

// Strategy selects how the forest is queried.
type Strategy string

// Supported strategies.
const (
	StrategyJoins     Strategy = "joins"
	StrategyRecursive Strategy = "recursive"
)

// ParseStrategy validates a strategy name. Empty means StrategyJoins.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyJoins:
		return StrategyJoins, nil
	case StrategyRecursive:
		return StrategyRecursive, nil
	default:
		return "", fmt.Errorf("unknown tree strategy %q (want joins or recursive)", s)
	}
}

// Filter restricts which roots are returned. Descendants follow their root.
type Filter struct {
	Taxonomy          string   // only this taxonomy
	ExcludeTaxonomies []string // none of these taxonomies
}

// Options configures Build.
type Options struct {
	Filter   Filter
	Levels   int  // deepest level returned, 0 means roots only
	Complete bool // include slug and count columns; id, name and taxonomy are always selected
	Strategy Strategy
}

// Query is a generated statement ready to execute.
type Query struct {
	SQL      string
	Args     []any
	Strategy Strategy
	Levels   int
	Complete bool
}

// Build generates the forest query for opts.
func Build(opts Options) (Query, error) {
	if opts.Levels < 0 || opts.Levels > domain.MaxCategoryLevels {
		return Query{}, fmt.Errorf("category levels %d out of range 0..%d", opts.Levels, domain.MaxCategoryLevels)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyJoins
	}

	q := Query{Strategy: opts.Strategy, Levels: opts.Levels, Complete: opts.Complete}
	switch opts.Strategy {
	case StrategyJoins:
		q.SQL, q.Args = buildJoins(opts)
	case StrategyRecursive:
		q.SQL, q.Args = buildRecursive(opts)
	default:
		return Query{}, fmt.Errorf("unknown tree strategy %q", opts.Strategy)
	}
	return q, nil
}

// alias returns the table alias for a level: root, down1, down2...
func alias(level int) string {
	if level == 0 {
		return "root"
	}
	return fmt.Sprintf("down%d", level)
}

// predicate renders the filter against table alias a.
func predicate(a string, f Filter) (string, []any) {
	var (
		parts []string
		args  []any
	)
	if f.Taxonomy != "" {
		parts = append(parts, a+".term_taxonomy = ?")
		args = append(args, f.Taxonomy)
	}
	if len(f.ExcludeTaxonomies) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.ExcludeTaxonomies)), ", ")
		parts = append(parts, a+".term_taxonomy NOT IN ("+marks+")")
		for _, t := range f.ExcludeTaxonomies {
			args = append(args, t)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(parts, " AND "), args
}

func buildJoins(opts Options) (string, []any) {
	var b strings.Builder

	b.WriteString("SELECT ")
	for level := 0; level <= opts.Levels; level++ {
		a := alias(level)
		if level > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%[1]s.term_id AS %[1]s_id, %[1]s.term_name AS %[1]s_name, %[1]s.term_taxonomy AS %[1]s_taxonomy", a)
		if opts.Complete {
			fmt.Fprintf(&b, ", %[1]s.term_slug AS %[1]s_slug, %[1]s.term_count AS %[1]s_count", a)
		}
	}

	b.WriteString(" FROM terms AS root")
	for level := 1; level <= opts.Levels; level++ {
		fmt.Fprintf(&b, " LEFT JOIN terms AS %s ON %s.term_parent = %s.term_id", alias(level), alias(level), alias(level-1))
	}

	where, args := predicate("root", opts.Filter)
	b.WriteString(" WHERE root.term_parent IS NULL")
	b.WriteString(where)

	// Ids break ties between equally named siblings so that every row of one
	// subtree stays contiguous.
	b.WriteString(" ORDER BY ")
	for level := 0; level <= opts.Levels; level++ {
		if level > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%[1]s_name, %[1]s_id", alias(level))
	}

	return b.String(), args
}

func buildRecursive(opts Options) (string, []any) {
	cols := "term_id, term_name, term_slug, term_count, term_taxonomy, term_parent"
	where, args := predicate("t", opts.Filter)

	var b strings.Builder
	b.WriteString("WITH RECURSIVE branch (" + cols + ", lvl) AS (")
	b.WriteString("SELECT t.term_id, t.term_name, t.term_slug, t.term_count, t.term_taxonomy, t.term_parent, 0")
	b.WriteString(" FROM terms AS t WHERE t.term_parent IS NULL" + where)
	b.WriteString(" UNION ALL ")
	b.WriteString("SELECT c.term_id, c.term_name, c.term_slug, c.term_count, c.term_taxonomy, c.term_parent, b.lvl + 1")
	b.WriteString(" FROM terms AS c JOIN branch AS b ON c.term_parent = b.term_id WHERE b.lvl < ?")
	b.WriteString(") SELECT term_id, term_name, term_taxonomy")
	if opts.Complete {
		b.WriteString(", term_slug, term_count")
	}
	b.WriteString(", term_parent, lvl FROM branch ORDER BY lvl, term_name, term_id")

	return b.String(), append(args, opts.Levels)
}

// Columns returns the number of columns each result row carries.
func (q Query) Columns() int {
	per := 3
	if q.Complete {
		per = 5
	}
	if q.Strategy == StrategyRecursive {
		return per + 2
	}
	return per * (q.Levels + 1)
}

// Scanner is satisfied by *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// nullCell holds the scan targets of one level.
type nullCell struct {
	id       sql.NullInt64
	name     sql.NullString
	slug     sql.NullString
	count    sql.NullInt64
	taxonomy sql.NullString
}

func (c *nullCell) targets(complete bool) []any {
	if complete {
		return []any{&c.id, &c.name, &c.taxonomy, &c.slug, &c.count}
	}
	return []any{&c.id, &c.name, &c.taxonomy}
}

func (c *nullCell) cell() tree.Cell {
	return tree.Cell{
		Valid:    c.id.Valid,
		ID:       c.id.Int64,
		Name:     c.name.String,
		Slug:     c.slug.String,
		Count:    c.count.Int64,
		Taxonomy: c.taxonomy.String,
	}
}

// ScanPath reads one row of a StrategyJoins query.
func (q Query) ScanPath(s Scanner) (tree.PathRow, error) {
	cells := make([]nullCell, q.Levels+1)
	dest := make([]any, 0, q.Columns())
	for i := range cells {
		dest = append(dest, cells[i].targets(q.Complete)...)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	row := make(tree.PathRow, len(cells))
	for i := range cells {
		row[i] = cells[i].cell()
	}
	return row, nil
}

// ScanLinked reads one row of a StrategyRecursive query.
func (q Query) ScanLinked(s Scanner) (tree.LinkedEntry, error) {
	var (
		c      nullCell
		parent sql.NullInt64
		level  int
	)
	dest := append(c.targets(q.Complete), &parent, &level)
	if err := s.Scan(dest...); err != nil {
		return tree.LinkedEntry{}, err
	}

	cell := c.cell()
	return tree.LinkedEntry{
		Entry: tree.Entry{
			ID:       cell.ID,
			Name:     cell.Name,
			Level:    level,
			Slug:     cell.Slug,
			Count:    cell.Count,
			Taxonomy: cell.Taxonomy,
		},
		ParentID:  parent.Int64,
		HasParent: parent.Valid,
	}, nil
}

// Rows is satisfied by *sql.Rows.
type Rows interface {
	Scanner
	Next() bool
	Err() error
}

// Collect scans every row of an executed query into a pre-order entry list.
func (q Query) Collect(rows Rows) ([]tree.Entry, error) {
	if q.Strategy == StrategyRecursive {
		var linked []tree.LinkedEntry
		for rows.Next() {
			le, err := q.ScanLinked(rows)
			if err != nil {
				return nil, fmt.Errorf("scan tree row: %w", err)
			}
			linked = append(linked, le)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return tree.Preorder(linked), nil
	}

	var paths []tree.PathRow
	for rows.Next() {
		row, err := q.ScanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tree row: %w", err)
		}
		paths = append(paths, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tree.Reconstruct(paths), nil
}
