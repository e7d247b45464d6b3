package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"pivotboard/internal/core"
)

// Filter returns the rows of rs matching every clause. The columns and
// metadata are kept.
func Filter(rs core.ResultSet, clauses []core.FilterClause) (core.ResultSet, error) {
	if len(clauses) == 0 {
		return rs, nil
	}
	for _, c := range clauses {
		if err := validateClause(c); err != nil {
			return core.ResultSet{}, err
		}
	}
	out := rs
	out.Rows = make([]core.Row, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if Match(row, clauses) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func validateClause(c core.FilterClause) error {
	if strings.TrimSpace(c.Column) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidColumn)
	}
	switch c.Operator {
	case core.OpEquals, core.OpNotEquals, core.OpContains, core.OpIsNull, core.OpIsEmpty:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
	}
}

// Match reports whether row satisfies every clause.
//
// is_null matches a missing column or a nil value; is_empty additionally
// matches blank strings. not_equals matches null values.
func Match(row core.Row, clauses []core.FilterClause) bool {
	for _, c := range clauses {
		if !matchClause(row, c) {
			return false
		}
	}
	return true
}

func matchClause(row core.Row, c core.FilterClause) bool {
	v, ok := row[c.Column]
	isNull := !ok || v == nil
	switch c.Operator {
	case core.OpIsNull:
		return isNull
	case core.OpIsEmpty:
		if isNull {
			return true
		}
		s, isString := v.(string)
		return isString && strings.TrimSpace(s) == ""
	case core.OpEquals:
		return !isNull && equalValues(v, c.Value, c.Type)
	case core.OpNotEquals:
		return isNull || !equalValues(v, c.Value, c.Type)
	case core.OpContains:
		if isNull {
			return false
		}
		return strings.Contains(strings.ToLower(stringify(v)), strings.ToLower(stringify(c.Value)))
	}
	return false
}

func equalValues(rowValue, filterValue any, typ string) bool {
	switch strings.ToLower(typ) {
	case "number", "currency", "numeric", "integer", "float", "decimal":
		a, okA := core.ToFloat(rowValue)
		b, okB := core.ToFloat(filterValue)
		if okA && okB {
			return a == b
		}
	case "date", "datetime", "timestamp":
		a, okA := toTime(rowValue)
		b, okB := toTime(filterValue)
		if okA && okB {
			return a.Equal(b)
		}
	case "boolean", "bool":
		a, errA := strconv.ParseBool(stringify(rowValue))
		b, errB := strconv.ParseBool(stringify(filterValue))
		if errA == nil && errB == nil {
			return a == b
		}
	}
	return strings.TrimSpace(stringify(rowValue)) == strings.TrimSpace(stringify(filterValue))
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		parsed, err := dateparse.ParseIn(strings.TrimSpace(t), time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	if f, ok := core.ToFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
