package pivot

import "strings"

// ViewState holds session-scoped expand/collapse and percentage flags keyed
// by node path, so choices survive rebuilds for paths that still exist.
type ViewState struct {
	DefaultPercentage bool

	expanded   map[string]bool
	percentage map[string]bool
}

// StateEntry is the persisted form of one path's flags. Nil flags are unset.
type StateEntry struct {
	Path       []string `json:"path"`
	Expanded   *bool    `json:"expanded,omitempty"`
	Percentage *bool    `json:"percentage,omitempty"`
}

func NewViewState(defaultPercentage bool) *ViewState {
	return &ViewState{
		DefaultPercentage: defaultPercentage,
		expanded:          map[string]bool{},
		percentage:        map[string]bool{},
	}
}

// Expanded reports whether the node at path shows its children. The root is
// always expanded.
func (s *ViewState) Expanded(path []string) bool {
	if len(path) == 0 {
		return true
	}
	return s.expanded[PathKey(path)]
}

func (s *ViewState) SetExpanded(path []string, expanded bool) {
	if len(path) == 0 {
		return
	}
	s.expanded[PathKey(path)] = expanded
}

// Percentage reports whether the node at path displays percentages.
func (s *ViewState) Percentage(path []string) bool {
	if v, ok := s.percentage[PathKey(path)]; ok {
		return v
	}
	return s.DefaultPercentage
}

func (s *ViewState) SetPercentage(path []string, percent bool) {
	s.percentage[PathKey(path)] = percent
}

// TogglePercentage flips the flag of the node at path only and returns the
// new value.
func (s *ViewState) TogglePercentage(path []string) bool {
	v := !s.Percentage(path)
	s.SetPercentage(path, v)
	return v
}

// Prune drops the flags of paths that no longer exist in tree and returns
// the dropped paths.
func (s *ViewState) Prune(tree *RowTree) [][]string {
	var dropped [][]string
	seen := map[string]bool{}
	check := func(m map[string]bool) {
		for key := range m {
			if _, ok := tree.byPath[key]; ok {
				continue
			}
			delete(m, key)
			if !seen[key] {
				seen[key] = true
				dropped = append(dropped, splitPathKey(key))
			}
		}
	}
	check(s.expanded)
	check(s.percentage)
	return dropped
}

// Entries exports the flags for persistence.
func (s *ViewState) Entries() []StateEntry {
	byKey := map[string]*StateEntry{}
	var out []*StateEntry
	entry := func(key string) *StateEntry {
		if e, ok := byKey[key]; ok {
			return e
		}
		e := &StateEntry{Path: splitPathKey(key)}
		byKey[key] = e
		out = append(out, e)
		return e
	}
	for key, v := range s.expanded {
		v := v
		entry(key).Expanded = &v
	}
	for key, v := range s.percentage {
		v := v
		entry(key).Percentage = &v
	}
	entries := make([]StateEntry, len(out))
	for i, e := range out {
		entries[i] = *e
	}
	return entries
}

// Restore loads persisted flags.
func (s *ViewState) Restore(entries []StateEntry) {
	for _, e := range entries {
		if e.Expanded != nil {
			s.SetExpanded(e.Path, *e.Expanded)
		}
		if e.Percentage != nil {
			s.SetPercentage(e.Path, *e.Percentage)
		}
	}
}

func splitPathKey(key string) []string {
	if key == "" {
		return []string{}
	}
	return strings.Split(key, pathSep)
}
