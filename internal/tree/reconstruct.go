// Package tree rebuilds taxonomy hierarchies from flat path rows and models
// them in memory for selection.
//
// The flat tree query returns one row per root-to-leaf path, ordered by the
// names along the path. Reconstruct turns those rows into a pre-order list of
// leveled entries; Build turns the leveled list into a node tree.
package tree

// Cell is one level of a path row. Valid is false for the NULL padding of
// paths shorter than the query depth.
type Cell struct {
	Valid    bool
	ID       int64
	Name     string
	Slug     string
	Count    int64
	Taxonomy string
}

// PathRow is one root-to-leaf path: root first, deepest level last.
type PathRow []Cell

// Entry is a term positioned in a pre-order walk of its taxonomy forest.
// Level is 0 for roots.
type Entry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	Slug     string `json:"slug,omitempty"`
	Count    int64  `json:"count"`
	Taxonomy string `json:"taxonomy,omitempty"`
}

// Reconstruct deduplicates path rows into a pre-order entry list.
//
// Rows must be sorted by the names along the path, root first. Each id is
// emitted once, the first time it is seen, with its column index as level.
// Because every row lists a node's ancestors to its left, no node is emitted
// before its ancestors.
func Reconstruct(rows []PathRow) []Entry {
	entries := make([]Entry, 0, len(rows))
	pool := make(map[int64]struct{}, len(rows))

	for _, row := range rows {
		for level, cell := range row {
			if !cell.Valid {
				continue
			}
			if _, seen := pool[cell.ID]; seen {
				continue
			}
			pool[cell.ID] = struct{}{}
			entries = append(entries, Entry{
				ID:       cell.ID,
				Name:     cell.Name,
				Level:    level,
				Slug:     cell.Slug,
				Count:    cell.Count,
				Taxonomy: cell.Taxonomy,
			})
		}
	}

	return entries
}
