package backend

import (
	"context"
	"fmt"

	"pivotboard/internal/log"
	"pivotboard/internal/source/google"
	"pivotboard/internal/source/memory"
	"pivotboard/internal/source/sqldb"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case SQLiteSource, MySQLSource:
		return f.createSQL(ctx, config)
	case SheetsSource:
		return f.createSheets(ctx, config)
	default:
		return f.createMemory(config)
	}
}

func (f *DefaultFactory) createSQL(ctx context.Context, config Config) (*Result, error) {
	dialect, err := sqldb.DialectFor(string(config.Type))
	if err != nil {
		return nil, err
	}
	src, err := sqldb.Open(dialect, config.DSN, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s source: %w", config.Type, err)
	}
	if err := src.Ping(ctx); err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to reach %s source: %w", config.Type, err)
	}
	f.logger.Info("initialized SQL source", log.FieldSource, config.Type.String())
	return &Result{Source: src, Cleanup: src.Close}, nil
}

func (f *DefaultFactory) createSheets(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
	}
	f.logger.Info("initialized Google Sheets source", log.FieldSource, config.Type.String())
	return &Result{Source: cli}, nil
}

func (f *DefaultFactory) createMemory(config Config) (*Result, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = "data"
	}
	f.logger.Info("initialized memory source", log.FieldSource, config.Type.String(), "data_directory", dir)
	return &Result{Source: memory.NewFromDir(dir)}, nil
}
