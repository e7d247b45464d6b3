package pivot

import (
	"errors"
	"fmt"
)

var (
	ErrNoAggregates          = errors.New("at least one aggregate column is required")
	ErrHierarchyGap          = errors.New("group hierarchy levels must be contiguous from 0")
	ErrUnknownAggregation    = errors.New("unknown aggregation function")
	ErrUnknownFieldType      = errors.New("unknown field type")
	ErrUnknownRole           = errors.New("unknown dimension role")
	ErrUnknownUntaggedFilter = errors.New("unknown untagged filter")
	ErrDuplicateMeasure      = errors.New("duplicate measure name")
	ErrEmptyColumn           = errors.New("empty source column")
	ErrPathTooLong           = errors.New("path has more segments than configured dimensions")
)

// ConfigError reports a malformed widget mapping. It is the only error that
// aborts widget construction.
type ConfigError struct {
	Column string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("widget misconfigured: %v", e.Err)
	}
	return fmt.Sprintf("widget misconfigured: column %q: %v", e.Column, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// WarningKind classifies data shape problems found while building.
type WarningKind string

const (
	WarningMissingColumn WarningKind = "missing_column"
)

// Warning is a recovered data shape mismatch. Rows are never dropped; the
// offending value is bucketed as untagged and the warning is reported.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Row     int         `json:"row"`
	Column  string      `json:"column"`
	Message string      `json:"message"`
}
