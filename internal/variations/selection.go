package variations

import (
	"sort"

	"github.com/hanko-field/variants/internal/domain"
)

// SelectionSet tracks the variation ids chosen for bulk operations. It references variations
// by id only and never owns variation data. The zero value is an empty selection.
type SelectionSet struct {
	ids map[string]struct{}
}

// NewSelectionSet returns a selection containing ids.
func NewSelectionSet(ids ...string) *SelectionSet {
	s := &SelectionSet{}
	s.ReplaceAll(ids)
	return s
}

// Toggle adds id when absent and removes it when present.
func (s *SelectionSet) Toggle(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// ReplaceAll discards the current selection and selects exactly ids.
func (s *SelectionSet) ReplaceAll(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		next[id] = struct{}{}
	}
	s.ids = next
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.ids = nil
}

// Has reports whether id is selected.
func (s *SelectionSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *SelectionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s *SelectionSet) IDs() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Prune drops ids that no longer match any of the given variations and returns how many were removed.
func (s *SelectionSet) Prune(existing []domain.Variation) int {
	if s.Len() == 0 {
		return 0
	}
	alive := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		alive[v.ID] = struct{}{}
	}
	removed := 0
	for id := range s.ids {
		if _, ok := alive[id]; !ok {
			delete(s.ids, id)
			removed++
		}
	}
	return removed
}
