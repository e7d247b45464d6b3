package pivot

import (
	"math"
	"testing"

	"pivotboard/internal/core"
)

func intp(v int) *int { return &v }

func mustParse(t *testing.T, cols ...core.ColumnMappingEntry) Metadata {
	t.Helper()
	md, err := ParseMapping(core.WidgetMapping{DatasetID: "ds", Fields: core.MappingFields{Columns: cols}})
	if err != nil {
		t.Fatalf("parse mapping: %v", err)
	}
	return md
}

func group(column string, level int) core.ColumnMappingEntry {
	return core.ColumnMappingEntry{Column: column, FieldType: core.FieldDimension, Role: core.RoleGroup, HierarchyLevel: intp(level)}
}

func pivotOn(column string) core.ColumnMappingEntry {
	return core.ColumnMappingEntry{Column: column, FieldType: core.FieldDimension, Role: core.RolePivot}
}

func measure(column, fn string) core.ColumnMappingEntry {
	return core.ColumnMappingEntry{Column: column, FieldType: core.FieldMeasure, Type: "number", Aggregation: fn}
}

func mustLookup(t *testing.T, tbl *Table, path ...string) NodeID {
	t.Helper()
	id, ok := tbl.Rows.Lookup(path)
	if !ok {
		t.Fatalf("no row node at path %v", path)
	}
	return id
}

func mustValue(t *testing.T, tbl *Table, node NodeID, key CellKey) float64 {
	t.Helper()
	c, ok := tbl.Value(node, key)
	if !ok {
		t.Fatalf("no cell %v at node %d", key, node)
	}
	return c.Value
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// scenarioRows is the region/tier example used across tests.
func scenarioRows() []core.Row {
	return []core.Row{
		{"region": "US", "tier": "gold", "amt": 100},
		{"region": "US", "tier": "silver", "amt": 50},
		{"region": "EU", "tier": "gold", "amt": 30},
	}
}
