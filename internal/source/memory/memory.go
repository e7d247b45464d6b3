// Package memory serves result sets from JSON files or from values loaded at
// runtime. Filters are evaluated in process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pivotboard/internal/core"
	"pivotboard/internal/source"
)

var (
	_ source.ResultSource  = (*Store)(nil)
	_ source.DatasetLister = (*Store)(nil)
)

// Store resolves a dataset to, in order, a result set registered with Put or
// the file <dir>/<dataset>.json.
type Store struct {
	dir string

	mu       sync.RWMutex
	datasets map[string]core.ResultSet
}

func New() *Store {
	return &Store{datasets: map[string]core.ResultSet{}}
}

// NewFromDir creates a store backed by JSON files in dir.
func NewFromDir(dir string) *Store {
	s := New()
	s.dir = dir
	return s
}

// Put registers rs under dataset, replacing any previous value.
func (s *Store) Put(dataset string, rs core.ResultSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[dataset] = rs
}

func (s *Store) Fetch(_ context.Context, q core.Query) (core.ResultSet, error) {
	if !source.ValidIdent(q.DatasetID) {
		return core.ResultSet{}, fmt.Errorf("%w: %q", source.ErrInvalidDataset, q.DatasetID)
	}

	s.mu.RLock()
	rs, ok := s.datasets[q.DatasetID]
	s.mu.RUnlock()
	if !ok {
		var err error
		rs, err = s.load(q.DatasetID)
		if err != nil {
			return core.ResultSet{}, err
		}
	}
	return source.Filter(rs, q.Filters)
}

func (s *Store) load(dataset string) (core.ResultSet, error) {
	if s.dir == "" {
		return core.ResultSet{}, fmt.Errorf("%w: %s", source.ErrUnknownDataset, dataset)
	}
	f, err := os.Open(filepath.Join(s.dir, dataset+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return core.ResultSet{}, fmt.Errorf("%w: %s", source.ErrUnknownDataset, dataset)
	}
	if err != nil {
		return core.ResultSet{}, fmt.Errorf("open dataset %s: %w", dataset, err)
	}
	defer f.Close()
	return Decode(f)
}

// Datasets lists registered datasets and JSON files, sorted.
func (s *Store) Datasets(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	s.mu.RLock()
	for name := range s.datasets {
		seen[name] = true
	}
	s.mu.RUnlock()

	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read data directory: %w", err)
		}
		for _, e := range entries {
			name, ok := strings.CutSuffix(e.Name(), ".json")
			if ok && !e.IsDir() && source.ValidIdent(name) {
				seen[name] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
