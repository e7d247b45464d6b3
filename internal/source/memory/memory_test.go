package memory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pivotboard/internal/core"
	"pivotboard/internal/source"
)

const salesJSON = `{
  "columns": [{"name": "region", "type": "string"}, {"name": "amt", "type": "currency"}],
  "currency": "EUR",
  "rows": [
    {"region": "US", "amt": 100},
    {"region": "US", "amt": 50},
    {"region": null, "amt": 12345678901234567}
  ]
}`

func TestFetchFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sales.json"), []byte(salesJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFromDir(dir)

	rs, err := s.Fetch(context.Background(), core.Query{DatasetID: "sales"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rs.Currency != "EUR" || len(rs.Rows) != 3 || rs.ColumnType("amt") != "currency" {
		t.Fatalf("unexpected result set %+v", rs)
	}
	if n, ok := rs.Rows[2]["amt"].(json.Number); !ok || n.String() != "12345678901234567" {
		t.Fatalf("large number not preserved: %#v", rs.Rows[2]["amt"])
	}

	filtered, err := s.Fetch(context.Background(), core.Query{
		DatasetID: "sales",
		Filters:   []core.FilterClause{{Column: "region", Operator: core.OpIsNull}},
	})
	if err != nil {
		t.Fatalf("filtered fetch: %v", err)
	}
	if len(filtered.Rows) != 1 {
		t.Fatalf("expected 1 untagged row, got %d", len(filtered.Rows))
	}
}

func TestFetchErrors(t *testing.T) {
	s := NewFromDir(t.TempDir())
	tests := []struct {
		dataset string
		want    error
	}{
		{"missing", source.ErrUnknownDataset},
		{"../etc/passwd", source.ErrInvalidDataset},
		{"", source.ErrInvalidDataset},
	}
	for _, tt := range tests {
		if _, err := s.Fetch(context.Background(), core.Query{DatasetID: tt.dataset}); !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.dataset, tt.want, err)
		}
	}
}

func TestPutOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sales.json"), []byte(salesJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFromDir(dir)
	s.Put("sales", core.ResultSet{Rows: []core.Row{{"region": "EU"}}})
	s.Put("inventory", core.ResultSet{})

	rs, err := s.Fetch(context.Background(), core.Query{DatasetID: "sales"})
	if err != nil || len(rs.Rows) != 1 {
		t.Fatalf("expected registered set, got %+v %v", rs, err)
	}
	names, err := s.Datasets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"inventory", "sales"}) {
		t.Fatalf("datasets = %v", names)
	}
}

func TestDecodeBareRows(t *testing.T) {
	rs, err := Decode(strings.NewReader(`[{"a": 1}, {"a": 2.5}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(rs.Rows) != 2 || rs.Rows[1]["a"] != json.Number("2.5") {
		t.Fatalf("unexpected rows %+v", rs.Rows)
	}
	if _, err := Decode(strings.NewReader(`{"rows": [`)); err == nil {
		t.Fatal("expected error for truncated document")
	}
}
