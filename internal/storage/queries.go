package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type WidgetRow struct {
	ID             string
	Name           string
	DatasetID      string
	MappingJSON    string
	Currency       string
	PercentageMode int64
	UpdatedAt      time.Time
}

type ViewStateRow struct {
	Path       string
	Expanded   sql.NullBool
	Percentage sql.NullBool
}

const upsertWidget = `
INSERT INTO widgets (id, name, dataset_id, mapping_json, currency, percentage_mode, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    dataset_id = excluded.dataset_id,
    mapping_json = excluded.mapping_json,
    currency = excluded.currency,
    percentage_mode = excluded.percentage_mode,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertWidget(ctx context.Context, w WidgetRow) error {
	_, err := q.db.ExecContext(ctx, upsertWidget,
		w.ID, w.Name, w.DatasetID, w.MappingJSON, w.Currency, w.PercentageMode, w.UpdatedAt)
	return err
}

const selectWidgetColumns = `SELECT id, name, dataset_id, mapping_json, currency, percentage_mode, updated_at FROM widgets`

func scanWidget(s interface{ Scan(...any) error }) (WidgetRow, error) {
	var w WidgetRow
	err := s.Scan(&w.ID, &w.Name, &w.DatasetID, &w.MappingJSON, &w.Currency, &w.PercentageMode, &w.UpdatedAt)
	return w, err
}

func (q *Queries) GetWidget(ctx context.Context, id string) (WidgetRow, error) {
	return scanWidget(q.db.QueryRowContext(ctx, selectWidgetColumns+` WHERE id = ?`, id))
}

func (q *Queries) ListWidgets(ctx context.Context) ([]WidgetRow, error) {
	rows, err := q.db.QueryContext(ctx, selectWidgetColumns+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WidgetRow
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteWidget(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM widgets WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListViewState(ctx context.Context, sessionID, widgetID string) ([]ViewStateRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT path, expanded, percentage FROM view_state WHERE session_id = ? AND widget_id = ? ORDER BY path`,
		sessionID, widgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ViewStateRow
	for rows.Next() {
		var r ViewStateRow
		if err := rows.Scan(&r.Path, &r.Expanded, &r.Percentage); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) InsertViewState(ctx context.Context, sessionID, widgetID string, r ViewStateRow, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO view_state (session_id, widget_id, path, expanded, percentage, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, widgetID, r.Path, r.Expanded, r.Percentage, at)
	return err
}

func (q *Queries) DeleteSessionViewState(ctx context.Context, sessionID, widgetID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM view_state WHERE session_id = ? AND widget_id = ?`, sessionID, widgetID)
	return err
}

func (q *Queries) DeleteViewStatePath(ctx context.Context, widgetID, path string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM view_state WHERE widget_id = ? AND path = ?`, widgetID, path)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteWidgetViewState(ctx context.Context, widgetID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM view_state WHERE widget_id = ?`, widgetID)
	return err
}

func (q *Queries) GetWidgetVersion(ctx context.Context, widgetID string) (int64, error) {
	var v int64
	err := q.db.QueryRowContext(ctx, `SELECT version FROM widget_versions WHERE widget_id = ?`, widgetID).Scan(&v)
	return v, err
}

// AdvanceWidgetVersion stores version only when it is newer than the stored
// one; the returned row count is 0 when the version is stale.
func (q *Queries) AdvanceWidgetVersion(ctx context.Context, widgetID string, version int64, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO widget_versions (widget_id, version, refreshed_at) VALUES (?, ?, ?)
ON CONFLICT(widget_id) DO UPDATE SET version = excluded.version, refreshed_at = excluded.refreshed_at
WHERE excluded.version > widget_versions.version`, widgetID, version, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
