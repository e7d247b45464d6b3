package pivot

import (
	"fmt"
	"strings"

	"pivotboard/internal/core"
)

// ColumnNode is one level of pivoted column headers. Leaves carry a measure;
// a leaf's Path is the pivot path of its parent.
type ColumnNode struct {
	ID         NodeID
	Parent     NodeID
	Level      int
	PivotValue string
	Path       []string
	Children   []NodeID
	MeasureID  string
	// Total marks the per-measure row-total leaves added when pivots exist.
	Total bool
}

func (n ColumnNode) IsLeaf() bool { return n.MeasureID != "" }

// LeafID is the column id used by the render surface.
func (n ColumnNode) LeafID() string { return fmt.Sprintf("c%d", n.ID) }

// Label is the header text of the node.
func (n ColumnNode) Label() string {
	if n.IsLeaf() {
		if n.Total {
			return "Total " + n.MeasureID
		}
		return n.MeasureID
	}
	return Label(n.PivotValue)
}

// CellKey addresses one aggregate of a row node: a measure at a pivot path.
// The empty pivot path is the measure total across all pivot values.
type CellKey struct {
	MeasureID string
	PivotPath string
}

// NewCellKey builds the key of measure at pivotPath.
func NewCellKey(measure string, pivotPath []string) CellKey {
	return CellKey{MeasureID: measure, PivotPath: PathKey(pivotPath)}
}

// Segments splits the pivot path back into its values.
func (k CellKey) Segments() []string {
	if k.PivotPath == "" {
		return nil
	}
	return strings.Split(k.PivotPath, pathSep)
}

// parent returns the key one pivot level up.
func (k CellKey) parent() (CellKey, bool) {
	if k.PivotPath == "" {
		return CellKey{}, false
	}
	segs := k.Segments()
	return NewCellKey(k.MeasureID, segs[:len(segs)-1]), true
}

// PivotValues holds the distinct values observed per pivot dimension, in
// first-seen order, and each row's value per dimension. Raw maps each
// value to the first source value seen for it.
type PivotValues struct {
	Values  [][]string
	RowKeys [][]string
	Raw     []map[string]any
}

// ObservePivotValues collects pivot values from the rows before aggregation.
func ObservePivotValues(rows []core.Row, pivots []PivotSpec) (PivotValues, []Warning) {
	pv := PivotValues{
		Values:  make([][]string, len(pivots)),
		RowKeys: make([][]string, len(rows)),
		Raw:     make([]map[string]any, len(pivots)),
	}
	if len(pivots) == 0 {
		return pv, nil
	}
	var warnings []Warning
	seen := make([]map[string]bool, len(pivots))
	for d := range pivots {
		seen[d] = map[string]bool{}
		pv.Raw[d] = map[string]any{}
	}
	for i, row := range rows {
		keys := make([]string, len(pivots))
		for d, p := range pivots {
			key, present := valueKey(row, p.SourceColumn, p.DataType)
			if !present {
				warnings = append(warnings, Warning{
					Kind:    WarningMissingColumn,
					Row:     i,
					Column:  p.SourceColumn,
					Message: fmt.Sprintf("row %d has no column %q; pivoted as %s", i, p.SourceColumn, UntaggedLabel),
				})
			}
			if !seen[d][key] {
				seen[d][key] = true
				pv.Values[d] = append(pv.Values[d], key)
				pv.Raw[d][key] = rawValue(row, p.SourceColumn, key)
			}
			keys[d] = key
		}
		pv.RowKeys[i] = keys
	}
	return pv, warnings
}

// ColumnTree is a flat arena of column nodes with a cell key index over its
// leaves. Node 0 is the synthetic root.
type ColumnTree struct {
	Nodes  []ColumnNode
	Leaves []NodeID
	index  map[CellKey]NodeID
}

func (t *ColumnTree) Root() *ColumnNode          { return &t.Nodes[0] }
func (t *ColumnTree) Node(id NodeID) *ColumnNode { return &t.Nodes[id] }

// Leaf returns the leaf column addressed by key.
func (t *ColumnTree) Leaf(key CellKey) (NodeID, bool) {
	id, ok := t.index[key]
	return id, ok
}

// Key returns the cell key of a leaf column.
func (t *ColumnTree) Key(leaf NodeID) CellKey {
	n := t.Nodes[leaf]
	return NewCellKey(n.MeasureID, n.Path)
}

// BuildColumnTree combines the observed pivot values into a tree of depth
// len(pivots) and attaches one leaf per measure at the deepest level. With
// pivots present, a trailing total leaf per measure is added under the root.
func BuildColumnTree(values [][]string, pivots []PivotSpec, aggs []AggregateSpec) *ColumnTree {
	t := &ColumnTree{index: map[CellKey]NodeID{}}
	root := t.add(ColumnNode{Parent: NoParent, Level: -1, Path: []string{}})
	t.expand(root, values, aggs, 0, len(pivots))
	if len(pivots) > 0 {
		for _, a := range aggs {
			t.attachLeaf(root, a.Name, []string{}, 0, true)
		}
	}
	return t
}

func (t *ColumnTree) add(n ColumnNode) NodeID {
	n.ID = NodeID(len(t.Nodes))
	t.Nodes = append(t.Nodes, n)
	if n.Parent != NoParent {
		t.Nodes[n.Parent].Children = append(t.Nodes[n.Parent].Children, n.ID)
	}
	return n.ID
}

func (t *ColumnTree) attachLeaf(parent NodeID, measure string, path []string, level int, total bool) {
	id := t.add(ColumnNode{
		Parent:    parent,
		Level:     level,
		Path:      path,
		MeasureID: measure,
		Total:     total,
	})
	t.Leaves = append(t.Leaves, id)
	t.index[NewCellKey(measure, path)] = id
}

func (t *ColumnTree) expand(parent NodeID, values [][]string, aggs []AggregateSpec, depth, k int) {
	path := t.Nodes[parent].Path
	if depth == k {
		for _, a := range aggs {
			t.attachLeaf(parent, a.Name, path, depth, false)
		}
		return
	}
	for _, v := range values[depth] {
		childPath := make([]string, len(path), len(path)+1)
		copy(childPath, path)
		childPath = append(childPath, v)
		child := t.add(ColumnNode{
			Parent:     parent,
			Level:      depth,
			PivotValue: v,
			Path:       childPath,
		})
		t.expand(child, values, aggs, depth+1, k)
	}
}
