package backend

import (
	"context"

	"pivotboard/internal/source"
)

// CleanupFunc releases resources held by a source.
type CleanupFunc func() error

// Result is a ready result source with its optional cleanup.
type Result struct {
	Source  source.ResultSource
	Cleanup CleanupFunc
}

// Close runs the cleanup, if any.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates result sources based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for source creation
type Config struct {
	Type SourceType

	// Memory
	DataDirectory string

	// SQLite and MySQL
	DSN string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// SourceType names a result source implementation.
type SourceType string

const (
	MemorySource SourceType = "memory"
	SQLiteSource SourceType = "sqlite"
	MySQLSource  SourceType = "mysql"
	SheetsSource SourceType = "sheets"
)

func (t SourceType) String() string {
	return string(t)
}

func (t SourceType) IsValid() bool {
	switch t {
	case MemorySource, SQLiteSource, MySQLSource, SheetsSource:
		return true
	default:
		return false
	}
}
