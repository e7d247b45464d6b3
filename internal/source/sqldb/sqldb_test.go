package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/source"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		dialect   Dialect
		filters   []core.FilterClause
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "no filters",
			dialect:   SQLite,
			wantQuery: `SELECT * FROM "sales"`,
		},
		{
			name:    "drilldown with untagged",
			dialect: MySQL,
			filters: []core.FilterClause{
				{Column: "region", Operator: core.OpEquals, Type: "string", Value: "US"},
				{Column: "tier", Operator: core.OpIsNull},
				{Column: "amt", Operator: core.OpEquals, Type: "number", Value: "10.5"},
			},
			wantQuery: "SELECT * FROM `sales` WHERE `region` = ? AND `tier` IS NULL AND `amt` = ?",
			wantArgs:  []any{"US", 10.5},
		},
		{
			name:    "empty and contains",
			dialect: SQLite,
			filters: []core.FilterClause{
				{Column: "city", Operator: core.OpIsEmpty},
				{Column: "name", Operator: core.OpContains, Value: "50%_Off"},
				{Column: "tier", Operator: core.OpNotEquals, Value: "gold"},
			},
			wantQuery: `SELECT * FROM "sales" WHERE ("city" IS NULL OR TRIM("city") = '') AND LOWER("name") LIKE ? ESCAPE '!' AND ("tier" <> ? OR "tier" IS NULL)`,
			wantArgs:  []any{"%50!%!_off%", "gold"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Source{dialect: tt.dialect}
			q, args, err := s.Build(core.Query{DatasetID: "sales", Filters: tt.filters})
			if err != nil {
				t.Fatal(err)
			}
			if q != tt.wantQuery {
				t.Fatalf("query:\n got %s\nwant %s", q, tt.wantQuery)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Fatalf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}

func TestBuildRejectsUnsafeIdentifiers(t *testing.T) {
	s := &Source{dialect: SQLite}
	if _, _, err := s.Build(core.Query{DatasetID: "sales; DROP TABLE x"}); !errors.Is(err, source.ErrInvalidDataset) {
		t.Fatalf("expected ErrInvalidDataset, got %v", err)
	}
	_, _, err := s.Build(core.Query{DatasetID: "sales", Filters: []core.FilterClause{{Column: `a" OR 1=1`, Operator: core.OpIsNull}}})
	if !errors.Is(err, source.ErrInvalidColumn) {
		t.Fatalf("expected ErrInvalidColumn, got %v", err)
	}
	_, _, err = s.Build(core.Query{DatasetID: "sales", Filters: []core.FilterClause{{Column: "a", Operator: "between"}}})
	if !errors.Is(err, source.ErrInvalidOperator) {
		t.Fatalf("expected ErrInvalidOperator, got %v", err)
	}
}

func TestFetchWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("region").OfType("VARCHAR", ""),
		sqlmock.NewColumn("amt").OfType("DECIMAL", 0.0),
		sqlmock.NewColumn("day").OfType("DATE", time.Time{}),
	).
		AddRow([]byte("US"), 100.5, day).
		AddRow(nil, 3.0, day)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `sales` WHERE `region` IS NULL")).
		WillReturnRows(rows)

	s := NewWithDB(db, MySQL, log.Discard())
	rs, err := s.Fetch(context.Background(), core.Query{
		DatasetID: "sales",
		Filters:   []core.FilterClause{{Column: "region", Operator: core.OpIsNull}},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	wantCols := []core.ResultColumn{{Name: "region", Type: "string"}, {Name: "amt", Type: "number"}, {Name: "day", Type: "date"}}
	if !reflect.DeepEqual(rs.Columns, wantCols) {
		t.Fatalf("columns = %+v", rs.Columns)
	}
	if len(rs.Rows) != 2 || rs.Rows[0]["region"] != "US" || rs.Rows[1]["region"] != nil {
		t.Fatalf("rows = %+v", rs.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFetchQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sales"`)).WillReturnError(boom)

	s := NewWithDB(db, SQLite, log.Discard())
	if _, err := s.Fetch(context.Background(), core.Query{DatasetID: "sales"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestFetchSQLite(t *testing.T) {
	s, err := Open(SQLite, filepath.Join(t.TempDir(), "src.db"), log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE sales (region TEXT, tier TEXT, amt REAL)`,
		`INSERT INTO sales VALUES ('US', 'gold', 100), ('US', 'silver', 50), ('EU', NULL, 30), ('EU', '', 5)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		filters []core.FilterClause
		want    int
	}{
		{nil, 4},
		{[]core.FilterClause{{Column: "region", Operator: core.OpEquals, Value: "US"}}, 2},
		{[]core.FilterClause{{Column: "tier", Operator: core.OpIsNull}}, 1},
		{[]core.FilterClause{{Column: "tier", Operator: core.OpIsEmpty}}, 2},
		{[]core.FilterClause{{Column: "amt", Operator: core.OpEquals, Type: "number", Value: "100"}}, 1},
		{[]core.FilterClause{{Column: "tier", Operator: core.OpContains, Value: "OL"}}, 1},
	}
	for _, tt := range tests {
		rs, err := s.Fetch(ctx, core.Query{DatasetID: "sales", Filters: tt.filters})
		if err != nil {
			t.Fatalf("%+v: %v", tt.filters, err)
		}
		if len(rs.Rows) != tt.want {
			t.Errorf("%+v: got %d rows, want %d", tt.filters, len(rs.Rows), tt.want)
		}
	}
}

func TestDialectFor(t *testing.T) {
	if d, err := DialectFor("MySQL"); err != nil || d.Driver != "mysql" {
		t.Fatalf("mysql: %v %v", d, err)
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("expected error")
	}
}
