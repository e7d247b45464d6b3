package pivot

import (
	"fmt"
	"math"
)

const (
	// Dash is rendered for cells without a value.
	Dash = "–"
	// ZeroPercent is rendered when a percentage has no usable denominator.
	ZeroPercent = "0.00%"
)

// Resolve returns the display string of node's aggregate at key.
//
// With percent set, the value is shown relative to its immediate enclosing
// total: the same row one pivot level up for pivoted cells, or the parent
// row for measure totals. The root never renders percentages.
func (t *Table) Resolve(node NodeID, key CellKey, percent bool, cur CurrencyContext) string {
	c, ok := t.Cells.Get(node, key)
	if !ok || math.IsNaN(c.Value) {
		return Dash
	}
	if percent && !t.Rows.Node(node).IsRoot() {
		ratio, ok := t.Ratio(node, key)
		if !ok {
			return ZeroPercent
		}
		return fmt.Sprintf("%.2f%%", ratio)
	}
	if t.fns[key.MeasureID] == Count {
		return groupNumber(c.Value, 0)
	}
	return cur.FormatAmount(c.Value)
}

// Ratio returns node's aggregate at key as a percentage of its enclosing
// total. ok is false when either side is missing, NaN or the denominator is
// zero.
func (t *Table) Ratio(node NodeID, key CellKey) (float64, bool) {
	c, ok := t.Cells.Get(node, key)
	if !ok || math.IsNaN(c.Value) {
		return 0, false
	}
	d, ok := t.denominator(node, key)
	if !ok || math.IsNaN(d.Value) || d.Value == 0 {
		return 0, false
	}
	return c.Value / d.Value * 100, true
}

func (t *Table) denominator(node NodeID, key CellKey) (Cell, bool) {
	if parent, ok := key.parent(); ok {
		return t.Cells.Get(node, parent)
	}
	n := t.Rows.Node(node)
	if n.IsRoot() {
		return Cell{}, false
	}
	return t.Cells.Get(n.Parent, key)
}
