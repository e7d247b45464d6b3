package core

import "time"

type (
	// ResultColumn describes one column of a query result.
	ResultColumn struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	// Row is one decoded result row keyed by column name.
	Row map[string]any

	// ResultSet is the tabular payload returned by the query-execution service.
	ResultSet struct {
		Columns     []ResultColumn `json:"columns"`
		Rows        []Row          `json:"rows"`
		Currency    string         `json:"currency,omitempty"`
		Periodicity string         `json:"periodicity,omitempty"`
	}

	// Query asks a result source for the rows of a dataset.
	Query struct {
		DatasetID string         `json:"datasetId"`
		Filters   []FilterClause `json:"filters,omitempty"`
	}

	// WidgetDataResponse is one fetched result set for a widget.
	WidgetDataResponse struct {
		WidgetID  string
		Version   int64
		Result    ResultSet
		FetchedAt time.Time
	}
)

// ColumnType returns the declared type of a column, or "" when unknown.
func (rs ResultSet) ColumnType(name string) string {
	for _, c := range rs.Columns {
		if c.Name == name {
			return c.Type
		}
	}
	return ""
}
