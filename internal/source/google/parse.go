package google

import (
	"fmt"
	"strings"

	"pivotboard/internal/core"
)

// parseValues converts a values matrix into a result set. Empty header
// cells are named by column letter; empty cells become nil. A column is typed
// number when every non-empty cell is numeric.
func parseValues(values [][]any) core.ResultSet {
	if len(values) == 0 {
		return core.ResultSet{}
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		name := strings.TrimSpace(fmt.Sprint(h))
		if name == "" {
			name = columnLetter(i)
		}
		headers[i] = name
	}

	numeric := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = true
	}
	rows := make([]core.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		if blank(raw) {
			continue
		}
		row := make(core.Row, len(headers))
		for i, name := range headers {
			var v any
			if i < len(raw) {
				v = raw[i]
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				v = nil
			}
			if v != nil {
				if _, ok := v.(float64); !ok {
					numeric[i] = false
				}
			}
			row[name] = v
		}
		rows = append(rows, row)
	}

	cols := make([]core.ResultColumn, len(headers))
	for i, name := range headers {
		typ := "string"
		if numeric[i] && len(rows) > 0 {
			typ = "number"
		}
		cols[i] = core.ResultColumn{Name: name, Type: typ}
	}
	return core.ResultSet{Columns: cols, Rows: rows}
}

func blank(raw []any) bool {
	for _, v := range raw {
		if v != nil && strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

// columnLetter returns the spreadsheet letter of a zero-based column index.
func columnLetter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('A'+i%26)) + s
		i = i/26 - 1
	}
	return s
}
