package pivot

import (
	"fmt"
	"sort"
	"strings"

	"pivotboard/internal/core"
)

// Metadata is the parsed, immutable form of a widget mapping.
type Metadata struct {
	Specs             []ColumnSpec
	Groups            []GroupSpec
	Pivots            []PivotSpec
	Aggregates        []AggregateSpec
	MaxHierarchyLevel int
}

// ParseMapping validates a widget mapping and converts it into typed specs.
func ParseMapping(m core.WidgetMapping) (Metadata, error) {
	var (
		groups   []GroupSpec
		pivots   []PivotSpec
		aggs     []AggregateSpec
		measures = map[string]bool{}
	)

	for i, e := range m.Fields.Columns {
		name := e.Name()
		column := strings.TrimSpace(e.Column)
		if column == "" {
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return Metadata{}, &ConfigError{Column: name, Err: ErrEmptyColumn}
		}
		dt := parseDataType(e.Type)

		switch core.FieldType(strings.ToLower(strings.TrimSpace(string(e.FieldType)))) {
		case core.FieldMeasure:
			fn := AggregationFn(strings.ToLower(strings.TrimSpace(e.Aggregation)))
			if fn == "" {
				fn = Sum
			}
			if !fn.IsValid() {
				return Metadata{}, &ConfigError{Column: name, Err: fmt.Errorf("%w: %q", ErrUnknownAggregation, e.Aggregation)}
			}
			if measures[name] {
				return Metadata{}, &ConfigError{Column: name, Err: ErrDuplicateMeasure}
			}
			measures[name] = true
			aggs = append(aggs, AggregateSpec{
				Name:          name,
				DataType:      dt,
				SourceColumn:  column,
				AggregationFn: fn,
			})

		case core.FieldDimension:
			rule, err := parseDrilldown(e, dt)
			if err != nil {
				return Metadata{}, &ConfigError{Column: name, Err: err}
			}
			switch core.DimensionRole(strings.ToLower(strings.TrimSpace(string(e.Role)))) {
			case "", core.RoleGroup:
				level := len(groups)
				if e.HierarchyLevel != nil {
					level = *e.HierarchyLevel
				}
				groups = append(groups, GroupSpec{
					Name:           name,
					DataType:       dt,
					HierarchyLevel: level,
					SourceColumn:   column,
					Drilldown:      rule,
				})
			case core.RolePivot:
				pivots = append(pivots, PivotSpec{
					Name:         name,
					DataType:     dt,
					SourceColumn: column,
					Drilldown:    rule,
				})
			default:
				return Metadata{}, &ConfigError{Column: name, Err: fmt.Errorf("%w: %q", ErrUnknownRole, e.Role)}
			}

		default:
			return Metadata{}, &ConfigError{Column: name, Err: fmt.Errorf("%w: %q", ErrUnknownFieldType, e.FieldType)}
		}
	}

	if len(aggs) == 0 {
		return Metadata{}, &ConfigError{Err: ErrNoAggregates}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].HierarchyLevel < groups[j].HierarchyLevel
	})
	maxLevel := len(groups) - 1
	md := Metadata{MaxHierarchyLevel: maxLevel}
	for i, g := range groups {
		if g.HierarchyLevel != i {
			return Metadata{}, &ConfigError{
				Column: g.Name,
				Err:    fmt.Errorf("%w: got level %d at position %d", ErrHierarchyGap, g.HierarchyLevel, i),
			}
		}
		g.MaxHierarchyLevel = maxLevel
		md.Groups = append(md.Groups, g)
		md.Specs = append(md.Specs, g)
	}
	md.Pivots = pivots
	md.Aggregates = aggs
	for _, p := range pivots {
		md.Specs = append(md.Specs, p)
	}
	for _, a := range aggs {
		md.Specs = append(md.Specs, a)
	}
	return md, nil
}

func parseDrilldown(e core.ColumnMappingEntry, dt DataType) (DrilldownRule, error) {
	rule := DrilldownRule{
		FilterType: strings.TrimSpace(e.DrilldownFilterType),
		Operator:   strings.TrimSpace(e.DrilldownFilterOperator),
	}
	if rule.FilterType == "" {
		rule.FilterType = string(dt)
	}
	if rule.Operator == "" {
		rule.Operator = core.OpEquals
	}
	switch strings.ToLower(strings.TrimSpace(e.UntaggedFilter)) {
	case "", "is_null", "null":
		rule.Untagged = UntaggedIsNull
	case "is_empty", "empty":
		rule.Untagged = UntaggedIsEmpty
	case "omit", "none":
		rule.Untagged = UntaggedOmit
	default:
		return rule, fmt.Errorf("%w: %q", ErrUnknownUntaggedFilter, e.UntaggedFilter)
	}
	return rule, nil
}
