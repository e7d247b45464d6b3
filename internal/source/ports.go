// Package source defines where widget result sets come from and the filter
// semantics every source applies to drill-down clauses.
package source

import (
	"context"
	"errors"
	"regexp"

	"pivotboard/internal/core"
)

// ResultSource executes a dataset query.
type ResultSource interface {
	Fetch(ctx context.Context, q core.Query) (core.ResultSet, error)
}

// DatasetLister is implemented by sources that can enumerate datasets.
type DatasetLister interface {
	Datasets(ctx context.Context) ([]string, error)
}

var (
	ErrUnknownDataset  = errors.New("unknown dataset")
	ErrInvalidDataset  = errors.New("invalid dataset id")
	ErrInvalidColumn   = errors.New("invalid filter column")
	ErrInvalidOperator = errors.New("unsupported filter operator")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,127}$`)

// ValidIdent reports whether s is safe as a dataset or column identifier.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}
