package backend

import (
	"fmt"

	"pivotboard/internal/config"
)

// FromAppConfig converts the application config to source config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := SourceType(appConfig.DataSource)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid data source in config: %s", appConfig.DataSource)
	}
	return Config{
		Type:                     t,
		DataDirectory:            appConfig.DataDirectory,
		DSN:                      appConfig.SourceDSN,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate checks the fields required by the selected source.
func (c Config) Validate() error {
	switch c.Type {
	case MemorySource:
	case SQLiteSource, MySQLSource:
		if c.DSN == "" {
			return fmt.Errorf("DSN is required for %s source", c.Type)
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("service account credentials are required for sheets source")
		}
	default:
		return fmt.Errorf("invalid source type: %s", c.Type)
	}
	return nil
}

// SourceTypes returns every valid source type.
func SourceTypes() []SourceType {
	return []SourceType{MemorySource, SQLiteSource, MySQLSource, SheetsSource}
}
