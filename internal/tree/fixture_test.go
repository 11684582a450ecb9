package tree

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"strconv"
)

// fixtureTerm is a stored term for tests; parent 0 means root.
type fixtureTerm struct {
	id     int64
	name   string
	parent int64
}

// pathRows mimics the flat tree query over terms: one row per path from a
// root down to a leaf or to depth levels, NULL padded, sorted by name then id
// at every level with NULL first.
func pathRows(terms []fixtureTerm, levels int) []PathRow {
	children := make(map[int64][]fixtureTerm)
	for _, t := range terms {
		children[t.parent] = append(children[t.parent], t)
	}

	var expand func(t fixtureTerm, level int) [][]Cell
	expand = func(t fixtureTerm, level int) [][]Cell {
		cell := Cell{Valid: true, ID: t.id, Name: t.name, Slug: "s" + strconv.FormatInt(t.id, 10)}
		kids := children[t.id]
		if level == levels || len(kids) == 0 {
			return [][]Cell{{cell}}
		}
		var out [][]Cell
		for _, k := range kids {
			for _, tail := range expand(k, level+1) {
				out = append(out, append([]Cell{cell}, tail...))
			}
		}
		return out
	}

	var rows []PathRow
	for _, r := range children[0] {
		for _, cells := range expand(r, 0) {
			row := make(PathRow, levels+1)
			copy(row, cells)
			rows = append(rows, row)
		}
	}

	slices.SortFunc(rows, func(a, b PathRow) int {
		for i := range a {
			if c := compareCell(a[i], b[i]); c != 0 {
				return c
			}
		}
		return 0
	})
	return rows
}

func compareCell(a, b Cell) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return -1
	case !b.Valid:
		return 1
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// randomForest builds n terms with depth at most maxDepth. Names repeat on
// purpose so ties are broken by id.
func randomForest(r *rand.Rand, n, maxDepth int) []fixtureTerm {
	depth := make(map[int64]int)
	var terms []fixtureTerm
	for i := 1; i <= n; i++ {
		id := int64(i)
		var parent int64
		if len(terms) > 0 && r.IntN(4) != 0 {
			candidate := terms[r.IntN(len(terms))]
			if depth[candidate.id] < maxDepth {
				parent = candidate.id
			}
		}
		if parent != 0 {
			depth[id] = depth[parent] + 1
		}
		terms = append(terms, fixtureTerm{id: id, name: "n" + strconv.Itoa(r.IntN(n/2+1)), parent: parent})
	}
	return terms
}

// expectedEntries is the pre-order walk of terms ordered by (name, id).
func expectedEntries(terms []fixtureTerm, levels int) []Entry {
	children := make(map[int64][]fixtureTerm)
	for _, t := range terms {
		children[t.parent] = append(children[t.parent], t)
	}
	for k := range children {
		slices.SortFunc(children[k], func(a, b fixtureTerm) int {
			if c := cmp.Compare(a.name, b.name); c != 0 {
				return c
			}
			return cmp.Compare(a.id, b.id)
		})
	}

	var out []Entry
	var visit func(parent int64, level int)
	visit = func(parent int64, level int) {
		if level > levels {
			return
		}
		for _, t := range children[parent] {
			out = append(out, Entry{ID: t.id, Name: t.name, Level: level, Slug: "s" + strconv.FormatInt(t.id, 10)})
			visit(t.id, level+1)
		}
	}
	visit(0, 0)
	return out
}
