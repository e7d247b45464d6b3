package pivot

import (
	"testing"

	"pivotboard/internal/core"
)

func TestBuildColumnTreeWithoutPivots(t *testing.T) {
	md := mustParse(t, group("region", 0), measure("amt", "sum"), measure("qty", "count"))
	ct := BuildColumnTree(nil, md.Pivots, md.Aggregates)

	if len(ct.Leaves) != 2 {
		t.Fatalf("expected one leaf per measure, got %d", len(ct.Leaves))
	}
	for i, id := range ct.Leaves {
		n := ct.Node(id)
		if n.Parent != 0 || n.Total || len(n.Path) != 0 || n.MeasureID != md.Aggregates[i].Name {
			t.Fatalf("unexpected leaf %+v", n)
		}
		if got, ok := ct.Leaf(NewCellKey(n.MeasureID, nil)); !ok || got != id {
			t.Fatalf("index miss for %s", n.MeasureID)
		}
	}
}

func TestBuildColumnTreeCartesian(t *testing.T) {
	rows := []core.Row{
		{"tier": "gold", "q": "Q1"},
		{"tier": "silver", "q": "Q2"},
		{"tier": "gold", "q": "Q3"},
	}
	md := mustParse(t, group("region", 0), pivotOn("tier"), pivotOn("q"), measure("amt", "sum"))
	pv, warnings := ObservePivotValues(rows, md.Pivots)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(pv.Values[0]) != 2 || pv.Values[0][0] != "gold" || pv.Values[1][2] != "Q3" {
		t.Fatalf("unexpected observed values: %v", pv.Values)
	}
	if pv.RowKeys[1][0] != "silver" || pv.RowKeys[1][1] != "Q2" {
		t.Fatalf("unexpected row keys: %v", pv.RowKeys[1])
	}

	ct := BuildColumnTree(pv.Values, md.Pivots, md.Aggregates)
	// 2 tiers x 3 quarters x 1 measure, plus the measure total.
	if len(ct.Leaves) != 7 {
		t.Fatalf("expected 7 leaves, got %d", len(ct.Leaves))
	}
	root := ct.Root()
	if len(root.Children) != 3 {
		t.Fatalf("expected 2 tier nodes and a total leaf, got %d", len(root.Children))
	}
	gold := ct.Node(root.Children[0])
	if gold.Label() != "gold" || len(gold.Children) != 3 || gold.IsLeaf() {
		t.Fatalf("unexpected tier node: %+v", gold)
	}
	id, ok := ct.Leaf(NewCellKey("amt", []string{"silver", "Q1"}))
	if !ok {
		t.Fatal("cartesian leaf silver/Q1 missing")
	}
	if leaf := ct.Node(id); leaf.Level != 2 || leaf.Label() != "amt" {
		t.Fatalf("unexpected leaf: %+v", leaf)
	}
	total, ok := ct.Leaf(NewCellKey("amt", nil))
	if !ok || !ct.Node(total).Total {
		t.Fatal("expected total leaf")
	}
	if ct.Key(id) != NewCellKey("amt", []string{"silver", "Q1"}) {
		t.Fatalf("unexpected key for leaf: %+v", ct.Key(id))
	}
}

func TestObservePivotValuesMissingColumn(t *testing.T) {
	rows := []core.Row{{"tier": "gold"}, {}, {"tier": nil}}
	md := mustParse(t, pivotOn("tier"), measure("amt", "sum"))
	pv, warnings := ObservePivotValues(rows, md.Pivots)
	if len(pv.Values[0]) != 2 || pv.Values[0][1] != UntaggedKey {
		t.Fatalf("expected gold and untagged, got %v", pv.Values[0])
	}
	if len(warnings) != 1 || warnings[0].Row != 1 {
		t.Fatalf("expected one warning for row 1, got %+v", warnings)
	}
}

func TestCellKeySegments(t *testing.T) {
	k := NewCellKey("amt", []string{"a", "b"})
	segs := k.Segments()
	if len(segs) != 2 || segs[1] != "b" {
		t.Fatalf("unexpected segments: %v", segs)
	}
	p, ok := k.parent()
	if !ok || p != NewCellKey("amt", []string{"a"}) {
		t.Fatalf("unexpected parent: %+v", p)
	}
	if _, ok := NewCellKey("amt", nil).parent(); ok {
		t.Fatal("measure total has no parent")
	}
}
