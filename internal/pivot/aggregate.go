package pivot

import (
	"math"

	"pivotboard/internal/core"
)

// Cell is one materialized aggregate. Rows counts the matching rows and N
// counts those carrying a numeric measure value; N weights averages during
// roll-up. Value is NaN when the function has nothing to reduce.
type Cell struct {
	Value float64
	Rows  int
	N     int
}

// Aggregates stores the cells of every row node, indexed like the row tree.
type Aggregates struct {
	cells []map[CellKey]Cell
}

// Get returns the cell of node at key.
func (a *Aggregates) Get(node NodeID, key CellKey) (Cell, bool) {
	if int(node) < 0 || int(node) >= len(a.cells) {
		return Cell{}, false
	}
	c, ok := a.cells[node][key]
	return c, ok
}

type accumulator struct {
	sum      float64
	min, max float64
	rows, n  int
}

func (acc *accumulator) add(v float64, numeric bool) {
	acc.rows++
	if !numeric {
		return
	}
	if acc.n == 0 || v < acc.min {
		acc.min = v
	}
	if acc.n == 0 || v > acc.max {
		acc.max = v
	}
	acc.sum += v
	acc.n++
}

func (acc *accumulator) cell(fn AggregationFn) Cell {
	c := Cell{Rows: acc.rows, N: acc.n}
	switch fn {
	case Count:
		c.Value = float64(acc.rows)
	case Sum:
		c.Value = acc.sum
	case Avg:
		c.Value = math.NaN()
		if acc.n > 0 {
			c.Value = acc.sum / float64(acc.n)
		}
	case Min:
		c.Value = math.NaN()
		if acc.n > 0 {
			c.Value = acc.min
		}
	case Max:
		c.Value = math.NaN()
		if acc.n > 0 {
			c.Value = acc.max
		}
	}
	return c
}

// Aggregate computes every (measure, pivot path) cell of the row tree.
//
// Leaves reduce their own rows: each row contributes to the measure total
// (empty pivot path) and to every prefix of its pivot path, which covers all
// leaf columns of the column tree plus the intermediate pivot totals used as
// percentage denominators. Inner nodes then roll up from their children.
func Aggregate(rows []core.Row, rt *RowTree, pv PivotValues, aggs []AggregateSpec) *Aggregates {
	a := &Aggregates{cells: make([]map[CellKey]Cell, rt.Len())}
	fns := make(map[string]AggregationFn, len(aggs))
	for _, m := range aggs {
		fns[m.Name] = m.AggregationFn
	}

	for _, id := range rt.Leaves() {
		leaf := rt.Node(id)
		accs := map[CellKey]*accumulator{}
		for _, i := range leaf.Rows {
			var pivotKeys []string
			if i < len(pv.RowKeys) {
				pivotKeys = pv.RowKeys[i]
			}
			for _, m := range aggs {
				v, numeric := core.ToFloat(rows[i][m.SourceColumn])
				for depth := 0; depth <= len(pivotKeys); depth++ {
					key := NewCellKey(m.Name, pivotKeys[:depth])
					acc := accs[key]
					if acc == nil {
						acc = &accumulator{}
						accs[key] = acc
					}
					acc.add(v, numeric)
				}
			}
		}
		cells := make(map[CellKey]Cell, len(accs))
		for key, acc := range accs {
			cells[key] = acc.cell(fns[key.MeasureID])
		}
		a.cells[id] = cells
	}

	// Children always have larger ids than their parent.
	for i := rt.Len() - 1; i >= 0; i-- {
		n := rt.Node(NodeID(i))
		if n.IsLeaf() {
			continue
		}
		a.cells[i] = rollUp(a, n.Children, fns)
	}
	return a
}

type rollup struct {
	value    float64
	weighted float64
	rows, n  int
	seen     bool
}

func rollUp(a *Aggregates, children []NodeID, fns map[string]AggregationFn) map[CellKey]Cell {
	acc := map[CellKey]*rollup{}
	for _, child := range children {
		for key, c := range a.cells[child] {
			r := acc[key]
			if r == nil {
				r = &rollup{}
				acc[key] = r
			}
			r.rows += c.Rows
			switch fns[key.MeasureID] {
			case Sum, Count:
				r.value += c.Value
			case Avg:
				if c.N > 0 && !math.IsNaN(c.Value) {
					r.weighted += c.Value * float64(c.N)
				}
			case Min:
				if c.N > 0 && !math.IsNaN(c.Value) && (!r.seen || c.Value < r.value) {
					r.value = c.Value
					r.seen = true
				}
			case Max:
				if c.N > 0 && !math.IsNaN(c.Value) && (!r.seen || c.Value > r.value) {
					r.value = c.Value
					r.seen = true
				}
			}
			r.n += c.N
		}
	}

	out := make(map[CellKey]Cell, len(acc))
	for key, r := range acc {
		c := Cell{Rows: r.rows, N: r.n, Value: r.value}
		switch fns[key.MeasureID] {
		case Avg:
			c.Value = math.NaN()
			if r.n > 0 {
				c.Value = r.weighted / float64(r.n)
			}
		case Min, Max:
			if !r.seen {
				c.Value = math.NaN()
			}
		}
		out[key] = c
	}
	return out
}
