package core

import (
	"errors"
	"strings"
	"time"
)

const (
	FieldDimension FieldType = "dimension"
	FieldMeasure   FieldType = "measure"

	RoleGroup DimensionRole = "group"
	RolePivot DimensionRole = "pivot"
)

// Filter operators understood by the result sources.
const (
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpContains  = "contains"
	OpIsNull    = "is_null"
	OpIsEmpty   = "is_empty"
)

type (
	FieldType     string
	DimensionRole string

	// Widget is a persisted pivot-table widget.
	Widget struct {
		ID             string        `json:"id"`
		Name           string        `json:"name"`
		Mapping        WidgetMapping `json:"mapping"`
		Currency       string        `json:"currency,omitempty"`
		PercentageMode bool          `json:"percentage_mode"`
		UpdatedAt      time.Time     `json:"updated_at"`
	}

	// WidgetMapping is the declarative column mapping of a widget.
	WidgetMapping struct {
		DatasetID string        `json:"datasetId"`
		Fields    MappingFields `json:"fields"`
	}

	MappingFields struct {
		Columns []ColumnMappingEntry `json:"columns"`
	}

	// ColumnMappingEntry describes how one result column is used by the widget.
	// Dimensions default to the group role; HierarchyLevel orders group entries.
	ColumnMappingEntry struct {
		Column                  string        `json:"column"`
		Alias                   string        `json:"alias,omitempty"`
		Type                    string        `json:"type,omitempty"`
		FieldType               FieldType     `json:"field_type"`
		Role                    DimensionRole `json:"role,omitempty"`
		Aggregation             string        `json:"aggregation,omitempty"`
		HierarchyLevel          *int          `json:"hierarchy_level,omitempty"`
		DrilldownFilterType     string        `json:"drilldown_filter_type,omitempty"`
		DrilldownFilterOperator string        `json:"drilldown_filter_operator,omitempty"`
		UntaggedFilter          string        `json:"untagged_filter,omitempty"`
	}

	// FilterClause is one drill-down or query filter condition.
	FilterClause struct {
		Column   string `json:"column"`
		Operator string `json:"operator"`
		Type     string `json:"type,omitempty"`
		Value    any    `json:"value,omitempty"`
	}
)

var (
	ErrEmptyWidgetID = errors.New("empty widget id")
	ErrEmptyDataset  = errors.New("empty dataset id")
	ErrEmptyName     = errors.New("empty widget name")
)

func (w Widget) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return ErrEmptyWidgetID
	}
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if len(w.Name) > 200 {
		return errors.New("widget name too long (max 200 characters)")
	}
	if strings.TrimSpace(w.Mapping.DatasetID) == "" {
		return ErrEmptyDataset
	}
	return nil
}

// Name returns the alias of the entry, or its column when no alias is set.
func (e ColumnMappingEntry) Name() string {
	if a := strings.TrimSpace(e.Alias); a != "" {
		return a
	}
	return strings.TrimSpace(e.Column)
}
