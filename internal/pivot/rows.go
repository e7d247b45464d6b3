package pivot

import (
	"fmt"

	"pivotboard/internal/core"
)

// NodeID indexes a node inside its tree arena.
type NodeID int

// NoParent is the parent of a tree root.
const NoParent NodeID = -1

// RowNode is one level of row grouping. Level -1 is the synthetic root that
// holds the whole-table total.
type RowNode struct {
	ID         NodeID
	Parent     NodeID
	Level      int
	GroupValue string
	// RawValue is the first source value grouped into the node, nil for the
	// root and untagged buckets.
	RawValue any
	Path     []string
	// Children is nil for leaves and non-nil (possibly empty) otherwise.
	Children []NodeID
	// Rows holds result row indices; only leaves carry them.
	Rows     []int
	RowCount int
}

func (n RowNode) IsRoot() bool     { return n.Parent == NoParent }
func (n RowNode) IsLeaf() bool     { return n.Children == nil }
func (n RowNode) IsUntagged() bool { return n.GroupValue == UntaggedKey }

// Label is the display label of the node.
func (n RowNode) Label() string {
	if n.IsRoot() {
		return "Total"
	}
	return Label(n.GroupValue)
}

// RowTree is a flat arena of row nodes. Node 0 is always the root and every
// child has a larger id than its parent.
type RowTree struct {
	Nodes    []RowNode
	MaxLevel int
	byPath   map[string]NodeID
}

func (t *RowTree) Root() *RowNode          { return &t.Nodes[0] }
func (t *RowTree) Node(id NodeID) *RowNode { return &t.Nodes[id] }
func (t *RowTree) Len() int                { return len(t.Nodes) }

// Lookup finds the node at path. The empty path is the root.
func (t *RowTree) Lookup(path []string) (NodeID, bool) {
	id, ok := t.byPath[PathKey(path)]
	return id, ok
}

// Leaves returns the leaf ids in tree order.
func (t *RowTree) Leaves() []NodeID {
	var out []NodeID
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			out = append(out, t.Nodes[i].ID)
		}
	}
	return out
}

type rowBuilder struct {
	rows     []core.Row
	groups   []GroupSpec
	tree     *RowTree
	warnings []Warning
}

// BuildRowTree partitions rows recursively by the group specs, which must be
// ordered by hierarchy level. Siblings keep the first-seen order of their
// value. Rows missing a group column land in the untagged bucket and are
// reported as warnings.
func BuildRowTree(rows []core.Row, groups []GroupSpec) (*RowTree, []Warning) {
	b := &rowBuilder{
		rows:   rows,
		groups: groups,
		tree: &RowTree{
			MaxLevel: len(groups) - 1,
			byPath:   map[string]NodeID{},
		},
	}

	all := make([]int, len(rows))
	for i := range rows {
		all[i] = i
	}
	root := b.add(RowNode{Parent: NoParent, Level: -1, Path: []string{}, RowCount: len(rows)})
	b.partition(root, all, 0)
	return b.tree, b.warnings
}

func (b *rowBuilder) add(n RowNode) NodeID {
	n.ID = NodeID(len(b.tree.Nodes))
	b.tree.Nodes = append(b.tree.Nodes, n)
	b.tree.byPath[PathKey(n.Path)] = n.ID
	return n.ID
}

func (b *rowBuilder) partition(parent NodeID, idx []int, depth int) {
	if depth == len(b.groups) {
		b.tree.Nodes[parent].Rows = idx
		return
	}

	g := b.groups[depth]
	var order []string
	buckets := map[string][]int{}
	raw := map[string]any{}
	for _, i := range idx {
		key, present := valueKey(b.rows[i], g.SourceColumn, g.DataType)
		if !present {
			b.warnings = append(b.warnings, Warning{
				Kind:    WarningMissingColumn,
				Row:     i,
				Column:  g.SourceColumn,
				Message: fmt.Sprintf("row %d has no column %q; grouped as %s", i, g.SourceColumn, UntaggedLabel),
			})
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
			raw[key] = rawValue(b.rows[i], g.SourceColumn, key)
		}
		buckets[key] = append(buckets[key], i)
	}

	parentPath := b.tree.Nodes[parent].Path
	children := make([]NodeID, 0, len(order))
	for _, key := range order {
		path := make([]string, len(parentPath), len(parentPath)+1)
		copy(path, parentPath)
		path = append(path, key)
		children = append(children, b.add(RowNode{
			Parent:     parent,
			Level:      depth,
			GroupValue: key,
			RawValue:   raw[key],
			Path:       path,
			RowCount:   len(buckets[key]),
		}))
	}
	b.tree.Nodes[parent].Children = children

	for n, key := range order {
		b.partition(children[n], buckets[key], depth+1)
	}
}
