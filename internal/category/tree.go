// Package category validates and queries the two-level category hierarchy.
package category

import (
	"sort"
	"strings"

	"conti/internal/core"
)

// MaxDepth is the number of levels a hierarchy may have.
const MaxDepth = 2

// Tree is an id-indexed snapshot of every category. Relationships are kept
// in index maps rather than pointers.
type Tree struct {
	nodes    map[int64]core.Category
	children map[int64][]int64
	parent   map[int64]int64
}

// Node is a root category with its direct children.
type Node struct {
	core.Category
	Children []core.Category `json:"children"`
}

// NewTree indexes cats. Children whose parent is missing are treated as
// roots.
func NewTree(cats []core.Category) *Tree {
	t := &Tree{
		nodes:    make(map[int64]core.Category, len(cats)),
		children: make(map[int64][]int64),
		parent:   make(map[int64]int64),
	}
	for _, c := range cats {
		t.nodes[c.ID] = c
	}
	for _, c := range cats {
		if c.ParentID == nil {
			continue
		}
		if _, ok := t.nodes[*c.ParentID]; !ok {
			continue
		}
		t.parent[c.ID] = *c.ParentID
		t.children[*c.ParentID] = append(t.children[*c.ParentID], c.ID)
	}
	return t
}

// Get returns the category with the given id.
func (t *Tree) Get(id int64) (core.Category, bool) {
	c, ok := t.nodes[id]
	return c, ok
}

// Len returns the number of categories in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// HasChildren reports whether id is a parent.
func (t *Tree) HasChildren(id int64) bool { return len(t.children[id]) > 0 }

// ValidateParent checks whether cat may be placed under proposedParentID. cat
// may be a category that is not yet stored (ID 0). The tree is not modified.
func (t *Tree) ValidateParent(cat core.Category, proposedParentID int64) error {
	if cat.ID != 0 {
		if proposedParentID == cat.ID {
			return core.ErrCategoryCycle
		}
		if p, ok := t.parent[proposedParentID]; ok && p == cat.ID {
			return core.ErrCategoryCycle
		}
	}

	parent, ok := t.nodes[proposedParentID]
	if !ok {
		return core.ErrCategoryNotFound
	}
	if parent.Type != cat.Type {
		return core.ErrCategoryTypeMismatch
	}
	if _, nested := t.parent[proposedParentID]; nested {
		return core.ErrCategoryDepth
	}
	if cat.ID != 0 && t.HasChildren(cat.ID) {
		return core.ErrCategoryDepth
	}
	return nil
}

// ValidateTypeChange rejects changing the type of a category that is linked
// to others of its current type.
func (t *Tree) ValidateTypeChange(id int64, to core.CategoryType) error {
	c, ok := t.nodes[id]
	if !ok {
		return core.ErrCategoryNotFound
	}
	if c.Type == to {
		return nil
	}
	if t.HasChildren(id) {
		return core.ErrCategoryTypeMismatch
	}
	if _, ok := t.parent[id]; ok {
		return core.ErrCategoryTypeMismatch
	}
	return nil
}

// CascadeSet returns id followed by every category below it, in the order a
// delete must remove them in reverse.
func (t *Tree) CascadeSet(id int64) []int64 {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	out := []int64{id}
	for i := 0; i < len(out); i++ {
		kids := append([]int64(nil), t.children[out[i]]...)
		sort.Slice(kids, func(a, b int) bool { return kids[a] < kids[b] })
		out = append(out, kids...)
	}
	return out
}

// Descendants returns id and every category below it as a set.
func (t *Tree) Descendants(id int64) map[int64]bool {
	set := make(map[int64]bool)
	for _, c := range t.CascadeSet(id) {
		set[c] = true
	}
	if len(set) == 0 {
		set[id] = true
	}
	return set
}

// Hierarchy returns root categories with their children, both levels sorted
// by name. A nil kind returns every type.
func (t *Tree) Hierarchy(kind *core.CategoryType) []Node {
	var roots []Node
	for id, c := range t.nodes {
		if _, child := t.parent[id]; child {
			continue
		}
		if kind != nil && c.Type != *kind {
			continue
		}
		n := Node{Category: c, Children: make([]core.Category, 0, len(t.children[id]))}
		for _, kid := range t.children[id] {
			n.Children = append(n.Children, t.nodes[kid])
		}
		sortByName(n.Children)
		roots = append(roots, n)
	}
	sort.Slice(roots, func(i, j int) bool { return less(roots[i].Category, roots[j].Category) })
	return roots
}

func sortByName(cats []core.Category) {
	sort.Slice(cats, func(i, j int) bool { return less(cats[i], cats[j]) })
}

func less(a, b core.Category) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}
