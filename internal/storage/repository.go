package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/pivot"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown widgets.
var ErrNotFound = errors.New("not found")

// SQLiteRepository persists widgets, per-session view state and the last
// adopted refresh version of each widget.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SaveWidget(ctx context.Context, w core.Widget) error {
	mapping, err := json.Marshal(w.Mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	updated := w.UpdatedAt
	if updated.IsZero() {
		updated = r.now().UTC()
	}
	var pct int64
	if w.PercentageMode {
		pct = 1
	}
	err = r.queries.UpsertWidget(ctx, WidgetRow{
		ID:             w.ID,
		Name:           w.Name,
		DatasetID:      w.Mapping.DatasetID,
		MappingJSON:    string(mapping),
		Currency:       w.Currency,
		PercentageMode: pct,
		UpdatedAt:      updated,
	})
	if err != nil {
		return fmt.Errorf("upsert widget %s: %w", w.ID, err)
	}
	r.logger.DebugContext(ctx, "widget saved", log.FieldWidgetID, w.ID, log.FieldDatasetID, w.Mapping.DatasetID)
	return nil
}

func (r *SQLiteRepository) GetWidget(ctx context.Context, id string) (core.Widget, error) {
	row, err := r.queries.GetWidget(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Widget{}, fmt.Errorf("widget %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Widget{}, fmt.Errorf("get widget %s: %w", id, err)
	}
	return widgetFromRow(row)
}

func (r *SQLiteRepository) ListWidgets(ctx context.Context) ([]core.Widget, error) {
	rows, err := r.queries.ListWidgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	widgets := make([]core.Widget, 0, len(rows))
	for _, row := range rows {
		w, err := widgetFromRow(row)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}

// DeleteWidget removes the widget with its view state and version.
func (r *SQLiteRepository) DeleteWidget(ctx context.Context, id string) error {
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.DeleteWidget(ctx, id)
		if err != nil {
			return fmt.Errorf("delete widget %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("widget %s: %w", id, ErrNotFound)
		}
		if err := q.DeleteWidgetViewState(ctx, id); err != nil {
			return fmt.Errorf("delete view state of %s: %w", id, err)
		}
		return nil
	})
}

func widgetFromRow(row WidgetRow) (core.Widget, error) {
	w := core.Widget{
		ID:             row.ID,
		Name:           row.Name,
		Currency:       row.Currency,
		PercentageMode: row.PercentageMode != 0,
		UpdatedAt:      row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.MappingJSON), &w.Mapping); err != nil {
		return core.Widget{}, fmt.Errorf("decode mapping of widget %s: %w", row.ID, err)
	}
	return w, nil
}

// LoadViewState returns the persisted flags of one session on one widget.
func (r *SQLiteRepository) LoadViewState(ctx context.Context, sessionID, widgetID string) ([]pivot.StateEntry, error) {
	rows, err := r.queries.ListViewState(ctx, sessionID, widgetID)
	if err != nil {
		return nil, fmt.Errorf("load view state: %w", err)
	}
	entries := make([]pivot.StateEntry, 0, len(rows))
	for _, row := range rows {
		var path []string
		if err := json.Unmarshal([]byte(row.Path), &path); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed view state path",
				log.FieldWidgetID, widgetID, log.FieldSessionID, sessionID, log.FieldNodePath, row.Path)
			continue
		}
		e := pivot.StateEntry{Path: path}
		if row.Expanded.Valid {
			v := row.Expanded.Bool
			e.Expanded = &v
		}
		if row.Percentage.Valid {
			v := row.Percentage.Bool
			e.Percentage = &v
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveViewState replaces the persisted flags of one session on one widget.
func (r *SQLiteRepository) SaveViewState(ctx context.Context, sessionID, widgetID string, entries []pivot.StateEntry) error {
	at := r.now().UTC()
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteSessionViewState(ctx, sessionID, widgetID); err != nil {
			return fmt.Errorf("clear view state: %w", err)
		}
		for _, e := range entries {
			path, err := encodePath(e.Path)
			if err != nil {
				return err
			}
			row := ViewStateRow{Path: path}
			if e.Expanded != nil {
				row.Expanded = sql.NullBool{Bool: *e.Expanded, Valid: true}
			}
			if e.Percentage != nil {
				row.Percentage = sql.NullBool{Bool: *e.Percentage, Valid: true}
			}
			if err := q.InsertViewState(ctx, sessionID, widgetID, row, at); err != nil {
				return fmt.Errorf("insert view state: %w", err)
			}
		}
		return nil
	})
}

// PruneViewState deletes the flags of paths that no longer exist, across
// every session of the widget.
func (r *SQLiteRepository) PruneViewState(ctx context.Context, widgetID string, paths [][]string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	var total int64
	err := r.inTx(ctx, func(q *Queries) error {
		for _, p := range paths {
			path, err := encodePath(p)
			if err != nil {
				return err
			}
			n, err := q.DeleteViewStatePath(ctx, widgetID, path)
			if err != nil {
				return fmt.Errorf("prune view state: %w", err)
			}
			total += n
		}
		return nil
	})
	if err == nil && total > 0 {
		r.logger.InfoContext(ctx, "pruned view state", log.FieldWidgetID, widgetID, "rows", total)
	}
	return total, err
}

// AdvanceVersion records version for the widget if it is newer than the
// stored one and reports whether it was adopted.
func (r *SQLiteRepository) AdvanceVersion(ctx context.Context, widgetID string, version int64) (bool, error) {
	n, err := r.queries.AdvanceWidgetVersion(ctx, widgetID, version, r.now().UTC())
	if err != nil {
		return false, fmt.Errorf("advance version of %s: %w", widgetID, err)
	}
	return n > 0, nil
}

// Version returns the last adopted version, or 0 if none.
func (r *SQLiteRepository) Version(ctx context.Context, widgetID string) (int64, error) {
	v, err := r.queries.GetWidgetVersion(ctx, widgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version of %s: %w", widgetID, err)
	}
	return v, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func encodePath(path []string) (string, error) {
	if path == nil {
		path = []string{}
	}
	b, err := json.Marshal(path)
	if err != nil {
		return "", fmt.Errorf("encode path: %w", err)
	}
	return string(b), nil
}
