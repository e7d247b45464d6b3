package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pivotboard/internal/core"
	"pivotboard/internal/source/memory"
)

// readWidget loads a widget file. A bare mapping object is accepted too.
func readWidget(path string) (core.Widget, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Widget{}, fmt.Errorf("read mapping: %w", err)
	}

	var w core.Widget
	if err := json.Unmarshal(raw, &w); err != nil {
		return core.Widget{}, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	if w.Mapping.DatasetID != "" || len(w.Mapping.Fields.Columns) > 0 {
		return w, nil
	}

	var m core.WidgetMapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return core.Widget{}, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return core.Widget{Mapping: m}, nil
}

// splitPath turns "US/NY" into a node path. The empty string is the root.
func splitPath(s, sep string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, sep)
}

func readResultSet(path string) (core.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ResultSet{}, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()
	rs, err := memory.Decode(f)
	if err != nil {
		return core.ResultSet{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return rs, nil
}
