// Package render flattens a pivot table and its view state into the grid
// shape consumed by the dashboard.
package render

import (
	"pivotboard/internal/pivot"
)

// ColumnDef mirrors one node of the column tree. Leaves carry Field, the key
// of their display string in Row.Cells.
type ColumnDef struct {
	Field     string      `json:"field,omitempty"`
	Header    string      `json:"header"`
	MeasureID string      `json:"measureId,omitempty"`
	PivotPath []string    `json:"pivotPath,omitempty"`
	Total     bool        `json:"total,omitempty"`
	Children  []ColumnDef `json:"children,omitempty"`
}

// Row is one visible row of the grid.
type Row struct {
	ID         int               `json:"id"`
	Path       []string          `json:"path"`
	Label      string            `json:"label"`
	Level      int               `json:"level"`
	Expandable bool              `json:"expandable"`
	Expanded   bool              `json:"expanded"`
	Percentage bool              `json:"percentage"`
	Untagged   bool              `json:"untagged,omitempty"`
	RowCount   int               `json:"rowCount"`
	Cells      map[string]string `json:"cells"`
}

// Grid is the render-ready form of a pivot table.
type Grid struct {
	Columns  []ColumnDef     `json:"columns"`
	Rows     []Row           `json:"rows"`
	Currency string          `json:"currency,omitempty"`
	Warnings []pivot.Warning `json:"warnings,omitempty"`
}

// Build renders the visible part of t: the root, and the children of every
// expanded node, depth first.
func Build(t *pivot.Table, state *pivot.ViewState, cur pivot.CurrencyContext) Grid {
	if state == nil {
		state = pivot.NewViewState(false)
	}
	g := Grid{
		Columns:  columnDefs(t.Columns, t.Columns.Root()),
		Currency: cur.Code,
		Warnings: t.Warnings,
	}

	keys := make([]pivot.CellKey, len(t.Columns.Leaves))
	fields := make([]string, len(t.Columns.Leaves))
	for i, leaf := range t.Columns.Leaves {
		keys[i] = t.Columns.Key(leaf)
		fields[i] = t.Columns.Node(leaf).LeafID()
	}

	var walk func(id pivot.NodeID)
	walk = func(id pivot.NodeID) {
		n := t.Rows.Node(id)
		expanded := state.Expanded(n.Path)
		percent := state.Percentage(n.Path)
		row := Row{
			ID:         int(n.ID),
			Path:       n.Path,
			Label:      n.Label(),
			Level:      n.Level,
			Expandable: !n.IsLeaf(),
			Expanded:   expanded && !n.IsLeaf(),
			Percentage: percent && !n.IsRoot(),
			Untagged:   n.IsUntagged(),
			RowCount:   n.RowCount,
			Cells:      make(map[string]string, len(keys)),
		}
		for i, key := range keys {
			row.Cells[fields[i]] = t.Resolve(n.ID, key, percent, cur)
		}
		g.Rows = append(g.Rows, row)

		if !row.Expanded {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Rows.Root().ID)
	return g
}

func columnDefs(ct *pivot.ColumnTree, parent *pivot.ColumnNode) []ColumnDef {
	defs := make([]ColumnDef, 0, len(parent.Children))
	for _, id := range parent.Children {
		n := ct.Node(id)
		def := ColumnDef{Header: n.Label()}
		if n.IsLeaf() {
			def.Field = n.LeafID()
			def.MeasureID = n.MeasureID
			def.PivotPath = n.Path
			def.Total = n.Total
		} else {
			def.PivotPath = n.Path
			def.Children = columnDefs(ct, n)
		}
		defs = append(defs, def)
	}
	return defs
}
