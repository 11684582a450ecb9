package tree

// LinkedEntry is an entry that still carries its parent id, as returned by
// the recursive tree query.
type LinkedEntry struct {
	Entry
	ParentID  int64
	HasParent bool
}

// Preorder arranges parent-linked entries into the same pre-order list that
// Reconstruct produces. Siblings keep their input order, so the query's
// ORDER BY decides sibling order. Entries whose parent is missing from the
// input are dropped along with their subtrees.
func Preorder(rows []LinkedEntry) []Entry {
	children := make(map[int64][]int, len(rows))
	var roots []int
	for i, r := range rows {
		if r.HasParent {
			children[r.ParentID] = append(children[r.ParentID], i)
		} else {
			roots = append(roots, i)
		}
	}

	out := make([]Entry, 0, len(rows))
	var visit func(idx []int, level int)
	visit = func(idx []int, level int) {
		for _, i := range idx {
			e := rows[i].Entry
			e.Level = level
			out = append(out, e)
			visit(children[e.ID], level+1)
		}
	}
	visit(roots, 0)
	return out
}
