package render

import (
	"testing"

	"pivotboard/internal/core"
	"pivotboard/internal/pivot"
)

func intp(v int) *int { return &v }

func scenarioTable(t *testing.T) *pivot.Table {
	t.Helper()
	md, err := pivot.ParseMapping(core.WidgetMapping{
		DatasetID: "sales",
		Fields: core.MappingFields{Columns: []core.ColumnMappingEntry{
			{Column: "region", FieldType: core.FieldDimension, Role: core.RoleGroup, HierarchyLevel: intp(0)},
			{Column: "tier", FieldType: core.FieldDimension, Role: core.RolePivot},
			{Column: "amt", FieldType: core.FieldMeasure, Type: "currency", Aggregation: "sum"},
		}},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return pivot.Build(md, core.ResultSet{Rows: []core.Row{
		{"region": "US", "tier": "gold", "amt": 100},
		{"region": "US", "tier": "silver", "amt": 50},
		{"region": "EU", "tier": "gold", "amt": 30},
	}})
}

func fieldFor(t *testing.T, g Grid, header, measure string) string {
	t.Helper()
	for _, c := range g.Columns {
		if c.Header != header {
			continue
		}
		if c.Field != "" {
			return c.Field
		}
		for _, leaf := range c.Children {
			if leaf.MeasureID == measure {
				return leaf.Field
			}
		}
	}
	t.Fatalf("no column %q/%q", header, measure)
	return ""
}

func TestBuildCollapsed(t *testing.T) {
	tbl := scenarioTable(t)
	g := Build(tbl, pivot.NewViewState(false), pivot.CurrencyFor("USD"))

	if len(g.Columns) != 3 {
		t.Fatalf("expected gold, silver and total columns, got %d", len(g.Columns))
	}
	if g.Columns[2].Header != "Total amt" || !g.Columns[2].Total {
		t.Fatalf("unexpected total column %+v", g.Columns[2])
	}
	// Root is always expanded, so its direct children are visible.
	if len(g.Rows) != 3 {
		t.Fatalf("expected root plus two regions, got %d rows", len(g.Rows))
	}
	root := g.Rows[0]
	if root.Label != "Total" || !root.Expanded || root.Percentage {
		t.Fatalf("unexpected root row %+v", root)
	}
	if got := root.Cells[fieldFor(t, g, "Total amt", "amt")]; got != "$180.00" {
		t.Fatalf("root total = %q", got)
	}
	eu := g.Rows[2]
	if got := eu.Cells[fieldFor(t, g, "silver", "amt")]; got != pivot.Dash {
		t.Fatalf("EU silver = %q, want dash", got)
	}
	if eu.Expandable {
		t.Fatal("leaf regions are not expandable")
	}
}

func TestBuildPercentageRow(t *testing.T) {
	tbl := scenarioTable(t)
	state := pivot.NewViewState(false)
	state.SetPercentage([]string{"US"}, true)
	g := Build(tbl, state, pivot.CurrencyFor("USD"))

	us := g.Rows[1]
	if us.Label != "US" || !us.Percentage {
		t.Fatalf("unexpected US row %+v", us)
	}
	if got := us.Cells[fieldFor(t, g, "gold", "amt")]; got != "66.67%" {
		t.Fatalf("US gold = %q", got)
	}
	if got := g.Rows[2].Cells[fieldFor(t, g, "gold", "amt")]; got != "$30.00" {
		t.Fatalf("EU gold = %q", got)
	}
}

func TestBuildHidesChildrenOfCollapsedNodes(t *testing.T) {
	md, err := pivot.ParseMapping(core.WidgetMapping{
		DatasetID: "sales",
		Fields: core.MappingFields{Columns: []core.ColumnMappingEntry{
			{Column: "region", FieldType: core.FieldDimension, HierarchyLevel: intp(0)},
			{Column: "city", FieldType: core.FieldDimension, HierarchyLevel: intp(1)},
			{Column: "amt", FieldType: core.FieldMeasure},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	tbl := pivot.Build(md, core.ResultSet{Rows: []core.Row{
		{"region": "US", "city": "NYC", "amt": 1},
		{"region": "US", "city": "SF", "amt": 2},
		{"region": "EU", "amt": 3},
	}})

	state := pivot.NewViewState(false)
	if n := len(Build(tbl, state, pivot.CurrencyFor("")).Rows); n != 3 {
		t.Fatalf("collapsed: %d rows", n)
	}

	state.SetExpanded([]string{"US"}, true)
	g := Build(tbl, state, pivot.CurrencyFor(""))
	var labels []string
	for _, r := range g.Rows {
		labels = append(labels, r.Label)
	}
	want := []string{"Total", "US", "NYC", "SF", "EU"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v", labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
	if len(g.Warnings) != 1 {
		t.Fatalf("expected one missing column warning, got %d", len(g.Warnings))
	}
	if len(g.Columns) != 1 || g.Columns[0].Field == "" {
		t.Fatalf("expected a single measure column, got %+v", g.Columns)
	}
}
