package pivot

import (
	"fmt"

	"pivotboard/internal/core"
)

// BuildDrilldown converts a row path and a pivot path into filter clauses,
// one per segment, row dimensions first. Untagged segments map to the
// dimension's configured null handling instead of a literal match.
func BuildDrilldown(meta Metadata, rowPath, columnPath []string) ([]core.FilterClause, error) {
	return buildDrilldown(meta, rowPath, columnPath, nil, nil)
}

// buildDrilldown matches segment i by rowRaw[i] or colRaw[i] when non-nil.
func buildDrilldown(meta Metadata, rowPath, columnPath []string, rowRaw, colRaw []any) ([]core.FilterClause, error) {
	if len(rowPath) > len(meta.Groups) {
		return nil, fmt.Errorf("row %w: %d > %d", ErrPathTooLong, len(rowPath), len(meta.Groups))
	}
	if len(columnPath) > len(meta.Pivots) {
		return nil, fmt.Errorf("column %w: %d > %d", ErrPathTooLong, len(columnPath), len(meta.Pivots))
	}

	clauses := make([]core.FilterClause, 0, len(rowPath)+len(columnPath))
	for i, seg := range rowPath {
		g := meta.Groups[i]
		if c, ok := clauseFor(g.SourceColumn, g.Drilldown, seg, at(rowRaw, i)); ok {
			clauses = append(clauses, c)
		}
	}
	for i, seg := range columnPath {
		p := meta.Pivots[i]
		if c, ok := clauseFor(p.SourceColumn, p.Drilldown, seg, at(colRaw, i)); ok {
			clauses = append(clauses, c)
		}
	}
	return clauses, nil
}

func at(vals []any, i int) any {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func clauseFor(column string, rule DrilldownRule, segment string, raw any) (core.FilterClause, bool) {
	if segment != UntaggedKey {
		var value any = segment
		if raw != nil {
			value = raw
		}
		return core.FilterClause{
			Column:   column,
			Operator: rule.Operator,
			Type:     rule.FilterType,
			Value:    value,
		}, true
	}
	switch rule.Untagged {
	case UntaggedOmit:
		return core.FilterClause{}, false
	case UntaggedIsEmpty:
		return core.FilterClause{Column: column, Operator: core.OpIsEmpty, Type: rule.FilterType}, true
	default:
		return core.FilterClause{Column: column, Operator: core.OpIsNull, Type: rule.FilterType}, true
	}
}
