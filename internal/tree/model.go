package tree

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Node is one term in the in-memory tree. Parent is a navigation link only;
// ownership flows from the model's root through Children.
type Node struct {
	ID       int64
	Name     string
	Slug     string
	Count    int64
	Taxonomy string
	Level    int
	Checked  bool

	Parent   *Node
	Children []*Node
}

// IsRoot reports whether n is the synthetic root of a model.
func (n *Node) IsRoot() bool {
	return n.Parent == nil && n.Level < 0
}

// Checked identifies a selected node.
type Checked struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Taxonomy string `json:"taxonomy"`
}

// Model owns a synthetic root whose descendants are the taxonomy forest.
type Model struct {
	root *Node
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{root: &Node{Level: -1}}
}

// Build creates a model from a pre-order leveled entry list.
//
// A stack of open nodes is seeded with the root at level -1. Each entry pops
// the stack until the top is shallower than the entry, becomes the top's
// child and is pushed. A deeper entry is therefore a child of the previous
// one, an equal entry its sibling, and a shallower entry a child of the
// nearest shallower ancestor. Entries that skip levels attach to the current
// top.
func Build(entries []Entry) *Model {
	m := NewModel()
	stack := []*Node{m.root}

	for _, e := range entries {
		for len(stack) > 1 && stack[len(stack)-1].Level >= e.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]

		node := &Node{
			ID:       e.ID,
			Name:     e.Name,
			Slug:     e.Slug,
			Count:    e.Count,
			Taxonomy: e.Taxonomy,
			Level:    e.Level,
			Parent:   parent,
		}
		parent.Children = append(parent.Children, node)
		stack = append(stack, node)
	}

	return m
}

// Root returns the synthetic root.
func (m *Model) Root() *Node {
	return m.root
}

// Roots returns the top-level terms.
func (m *Model) Roots() []*Node {
	return m.root.Children
}

// Len returns the number of non-root nodes.
func (m *Model) Len() int {
	n := 0
	m.Walk(func(*Node) bool { n++; return true })
	return n
}

// Walk visits every non-root node in pre-order. Returning false from fn
// skips that node's subtree.
func (m *Model) Walk(fn func(*Node) bool) {
	var visit func(nodes []*Node)
	visit = func(nodes []*Node) {
		for _, n := range nodes {
			if fn(n) {
				visit(n.Children)
			}
		}
	}
	visit(m.root.Children)
}

// Find returns the node with the given id, or nil.
func (m *Model) Find(id int64) *Node {
	var found *Node
	m.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// CheckAll checks every node.
func (m *Model) CheckAll() {
	m.Walk(func(n *Node) bool { n.Checked = true; return true })
}

// CheckNone unchecks every node.
func (m *Model) CheckNone() {
	m.Walk(func(n *Node) bool { n.Checked = false; return true })
}

// CheckInverse flips every node.
func (m *Model) CheckInverse() {
	m.Walk(func(n *Node) bool { n.Checked = !n.Checked; return true })
}

// CheckSelection checks exactly the nodes whose ids are listed.
func (m *Model) CheckSelection(ids []int64) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	m.Walk(func(n *Node) bool {
		_, n.Checked = set[n.ID]
		return true
	})
}

// CheckInverseSingle flips one node. It reports false if id is not in the tree.
func (m *Model) CheckInverseSingle(id int64) bool {
	n := m.Find(id)
	if n == nil {
		return false
	}
	n.Checked = !n.Checked
	return true
}

// Collect returns the checked nodes in post-order: children before their
// parent, so callers deleting the result remove leaves first.
func (m *Model) Collect() []Checked {
	var out []Checked
	var visit func(nodes []*Node)
	visit = func(nodes []*Node) {
		for _, n := range nodes {
			visit(n.Children)
			if n.Checked {
				out = append(out, Checked{ID: n.ID, Name: n.Name, Taxonomy: n.Taxonomy})
			}
		}
	}
	visit(m.root.Children)
	return out
}

// Sort orders siblings by name, ignoring case and accents, recursively.
func (m *Model) Sort() {
	c := collate.New(language.Und, collate.Loose)
	var visit func(n *Node)
	visit = func(n *Node) {
		slices.SortStableFunc(n.Children, func(a, b *Node) int {
			return c.CompareString(a.Name, b.Name)
		})
		for _, child := range n.Children {
			visit(child)
		}
	}
	visit(m.root)
}

// Entries flattens the model back into a pre-order leveled list. Levels are
// recomputed from the node depth.
func (m *Model) Entries() []Entry {
	var out []Entry
	var visit func(nodes []*Node, level int)
	visit = func(nodes []*Node, level int) {
		for _, n := range nodes {
			out = append(out, Entry{
				ID:       n.ID,
				Name:     n.Name,
				Level:    level,
				Slug:     n.Slug,
				Count:    n.Count,
				Taxonomy: n.Taxonomy,
			})
			visit(n.Children, level+1)
		}
	}
	visit(m.root.Children, 0)
	return out
}
