// Package pivot turns flat query results into grouped, pivoted and
// aggregated tables.
//
// The pipeline is ParseMapping (once per widget configuration) followed by
// Build (once per data refresh). Display values are resolved on demand with
// Resolve, which only formats already materialized aggregates.
package pivot

import "strings"

// DataType is the declared type of a result column.
type DataType string

const (
	TypeString   DataType = "string"
	TypeNumber   DataType = "number"
	TypeCurrency DataType = "currency"
	TypeDate     DataType = "date"
	TypeBoolean  DataType = "boolean"
)

func parseDataType(s string) DataType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "number", "numeric", "integer", "int", "float", "decimal", "double":
		return TypeNumber
	case "currency", "money":
		return TypeCurrency
	case "date", "datetime", "timestamp", "time":
		return TypeDate
	case "bool", "boolean":
		return TypeBoolean
	default:
		return TypeString
	}
}

// AggregationFn reduces the values of a measure.
type AggregationFn string

const (
	Sum   AggregationFn = "sum"
	Avg   AggregationFn = "avg"
	Min   AggregationFn = "min"
	Max   AggregationFn = "max"
	Count AggregationFn = "count"
)

// IsValid reports whether f is one of the supported functions.
func (f AggregationFn) IsValid() bool {
	switch f {
	case Sum, Avg, Min, Max, Count:
		return true
	default:
		return false
	}
}

// UntaggedFilter selects the drill-down clause emitted for an untagged segment.
type UntaggedFilter string

const (
	UntaggedIsNull  UntaggedFilter = "is_null"
	UntaggedIsEmpty UntaggedFilter = "is_empty"
	UntaggedOmit    UntaggedFilter = "omit"
)

// DrilldownRule configures the clauses emitted for one dimension.
type DrilldownRule struct {
	FilterType string
	Operator   string
	Untagged   UntaggedFilter
}

// Kind discriminates the ColumnSpec variants.
type Kind int

const (
	KindGroup Kind = iota
	KindPivot
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindPivot:
		return "pivot"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// ColumnSpec is one of GroupSpec, PivotSpec or AggregateSpec.
type ColumnSpec interface {
	Kind() Kind
	isColumnSpec()
}

// GroupSpec is a row-grouping dimension. HierarchyLevel 0 is outermost.
type GroupSpec struct {
	Name              string
	DataType          DataType
	HierarchyLevel    int
	MaxHierarchyLevel int
	SourceColumn      string
	Drilldown         DrilldownRule
}

// PivotSpec is a column-pivoting dimension.
type PivotSpec struct {
	Name         string
	DataType     DataType
	SourceColumn string
	Drilldown    DrilldownRule
}

// AggregateSpec is a measure. Name doubles as the measure id.
type AggregateSpec struct {
	Name          string
	DataType      DataType
	SourceColumn  string
	AggregationFn AggregationFn
}

func (GroupSpec) Kind() Kind     { return KindGroup }
func (PivotSpec) Kind() Kind     { return KindPivot }
func (AggregateSpec) Kind() Kind { return KindAggregate }

func (GroupSpec) isColumnSpec()     {}
func (PivotSpec) isColumnSpec()     {}
func (AggregateSpec) isColumnSpec() {}
