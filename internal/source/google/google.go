// Package google reads datasets from Google Sheets. Each dataset is a sheet
// of the configured spreadsheet whose first row holds the column names.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/source"
)

var _ source.ResultSource = (*Client)(nil)

// Options configures credentials. JSON takes precedence over File.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account. When
// extra options are given they replace the credential options.
func New(ctx context.Context, opts Options, logger *log.Logger, extra ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	clientOpts := extra
	if len(extra) == 0 {
		creds, err := credentials(opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		}
	}
	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		logger:        logger.WithComponent(log.ComponentSource),
	}, nil
}

func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Fetch reads the sheet named by the dataset id and applies the filters in
// process.
func (c *Client) Fetch(ctx context.Context, q core.Query) (core.ResultSet, error) {
	if strings.TrimSpace(q.DatasetID) == "" || strings.ContainsAny(q.DatasetID, "!'") {
		return core.ResultSet{}, fmt.Errorf("%w: %q", source.ErrInvalidDataset, q.DatasetID)
	}
	start := time.Now()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheetRange(q.DatasetID)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return core.ResultSet{}, fmt.Errorf("read sheet %s: %w", q.DatasetID, err)
	}
	rs := parseValues(resp.Values)
	c.logger.DebugContext(ctx, "sheet fetched",
		log.FieldDatasetID, q.DatasetID,
		log.FieldRowCount, len(rs.Rows),
		log.FieldDuration, time.Since(start).Milliseconds())
	return source.Filter(rs, q.Filters)
}

func sheetRange(sheet string) string {
	return "'" + sheet + "'"
}
