// Package sqldb fetches result sets from SQL tables. The dataset id names
// the table and drill-down clauses become a parameterized WHERE clause.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/source"
)

var _ source.ResultSource = (*Source)(nil)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Driver string
	quote  func(string) string
}

var (
	SQLite = Dialect{Driver: "sqlite", quote: func(s string) string { return `"` + s + `"` }}
	MySQL  = Dialect{Driver: "mysql", quote: func(s string) string { return "`" + s + "`" }}
)

// DialectFor returns the dialect of a DATA_SOURCE value.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
}

type Source struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
	// MaxRows caps a single fetch; 0 means unlimited.
	MaxRows int
}

// Open connects to dsn. MySQL DSNs are normalized to parse DATETIME values.
func Open(d Dialect, dsn string, logger *log.Logger) (*Source, error) {
	if d.Driver == MySQL.Driver {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithDB(db, d, logger), nil
}

func NewWithDB(db *sql.DB, d Dialect, logger *log.Logger) *Source {
	return &Source{db: db, dialect: d, logger: logger.WithComponent(log.ComponentSource)}
}

func (s *Source) Close() error { return s.db.Close() }

func (s *Source) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Source) Fetch(ctx context.Context, q core.Query) (core.ResultSet, error) {
	query, args, err := s.Build(q)
	if err != nil {
		return core.ResultSet{}, err
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.ResultSet{}, fmt.Errorf("query dataset %s: %w", q.DatasetID, err)
	}
	defer rows.Close()

	rs, err := scan(rows)
	if err != nil {
		return core.ResultSet{}, fmt.Errorf("scan dataset %s: %w", q.DatasetID, err)
	}
	s.logger.DebugContext(ctx, "dataset fetched",
		log.FieldDatasetID, q.DatasetID,
		log.FieldRowCount, len(rs.Rows),
		log.FieldDuration, time.Since(start).Milliseconds())
	return rs, nil
}

// Build renders the SELECT statement of q and its arguments.
func (s *Source) Build(q core.Query) (string, []any, error) {
	if !source.ValidIdent(q.DatasetID) {
		return "", nil, fmt.Errorf("%w: %q", source.ErrInvalidDataset, q.DatasetID)
	}
	var (
		b     strings.Builder
		conds []string
		args  []any
	)
	b.WriteString("SELECT * FROM ")
	b.WriteString(s.dialect.quote(q.DatasetID))

	for _, c := range q.Filters {
		if !source.ValidIdent(c.Column) {
			return "", nil, fmt.Errorf("%w: %q", source.ErrInvalidColumn, c.Column)
		}
		col := s.dialect.quote(c.Column)
		switch c.Operator {
		case core.OpEquals:
			conds = append(conds, col+" = ?")
			args = append(args, argFor(c))
		case core.OpNotEquals:
			conds = append(conds, "("+col+" <> ? OR "+col+" IS NULL)")
			args = append(args, argFor(c))
		case core.OpContains:
			conds = append(conds, "LOWER("+col+") LIKE ? ESCAPE '!'")
			args = append(args, "%"+escapeLike(strings.ToLower(fmt.Sprint(c.Value)))+"%")
		case core.OpIsNull:
			conds = append(conds, col+" IS NULL")
		case core.OpIsEmpty:
			conds = append(conds, "("+col+" IS NULL OR TRIM("+col+") = '')")
		default:
			return "", nil, fmt.Errorf("%w: %q", source.ErrInvalidOperator, c.Operator)
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if s.MaxRows > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.MaxRows)
	}
	return b.String(), args, nil
}

func argFor(c core.FilterClause) any {
	switch strings.ToLower(c.Type) {
	case "number", "currency":
		if f, ok := core.ToFloat(c.Value); ok {
			return f
		}
	}
	if c.Value == nil {
		return ""
	}
	return fmt.Sprint(c.Value)
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

func scan(rows *sql.Rows) (core.ResultSet, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return core.ResultSet{}, err
	}
	rs := core.ResultSet{Columns: make([]core.ResultColumn, len(types))}
	for i, ct := range types {
		rs.Columns[i] = core.ResultColumn{Name: ct.Name(), Type: columnType(ct.DatabaseTypeName())}
	}

	values := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return core.ResultSet{}, err
		}
		row := make(core.Row, len(types))
		for i, col := range rs.Columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col.Name] = v
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, rows.Err()
}

// columnType maps database type names onto result column types.
func columnType(dbType string) string {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return "string"
	case strings.Contains(t, "BOOL"):
		return "boolean"
	case strings.Contains(t, "INT"), strings.Contains(t, "DEC"), strings.Contains(t, "NUMERIC"),
		strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"), strings.Contains(t, "REAL"):
		return "number"
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return "date"
	default:
		return "string"
	}
}
