package pivot

import "pivotboard/internal/core"

// Table is the derived pivot model of one result set. It is rebuilt in full
// on every data refresh and never mutated afterwards.
type Table struct {
	Meta     Metadata
	Rows     *RowTree
	Columns  *ColumnTree
	Cells    *Aggregates
	Warnings []Warning
	RowCount int

	fns      map[string]AggregationFn
	pivotRaw []map[string]any
}

// Build runs the row tree, column tree and aggregation passes. It never
// fails: data shape mismatches are reported in Table.Warnings.
func Build(meta Metadata, rs core.ResultSet) *Table {
	rt, warnings := BuildRowTree(rs.Rows, meta.Groups)
	pv, pivotWarnings := ObservePivotValues(rs.Rows, meta.Pivots)
	warnings = append(warnings, pivotWarnings...)
	ct := BuildColumnTree(pv.Values, meta.Pivots, meta.Aggregates)
	cells := Aggregate(rs.Rows, rt, pv, meta.Aggregates)

	fns := make(map[string]AggregationFn, len(meta.Aggregates))
	for _, a := range meta.Aggregates {
		fns[a.Name] = a.AggregationFn
	}
	return &Table{
		Meta:     meta,
		Rows:     rt,
		Columns:  ct,
		Cells:    cells,
		Warnings: warnings,
		RowCount: len(rs.Rows),
		fns:      fns,
		pivotRaw: pv.Raw,
	}
}

// Value returns the raw aggregate of node at key.
func (t *Table) Value(node NodeID, key CellKey) (Cell, bool) {
	return t.Cells.Get(node, key)
}

// Drilldown is BuildDrilldown matching each segment by the first source
// value seen for it, so clauses compare against values as the source stores
// them rather than their normalized grouping keys. Segments absent from the
// table fall back to the key itself.
func (t *Table) Drilldown(rowPath, columnPath []string) ([]core.FilterClause, error) {
	rowRaw := make([]any, len(rowPath))
	for i := range rowPath {
		if id, ok := t.Rows.Lookup(rowPath[:i+1]); ok {
			rowRaw[i] = t.Rows.Node(id).RawValue
		}
	}
	colRaw := make([]any, len(columnPath))
	for i, seg := range columnPath {
		if i < len(t.pivotRaw) {
			colRaw[i] = t.pivotRaw[i][seg]
		}
	}
	return buildDrilldown(t.Meta, rowPath, columnPath, rowRaw, colRaw)
}
