package facets

import (
	"sort"
	"strings"
)

// Selection maps each facet kind to the set of raw values the user picked.
// The zero value is ready to use.
type Selection struct {
	values map[Kind]map[string]struct{}
}

// NewSelection builds a selection from per-kind value lists.
func NewSelection(values map[Kind][]string) Selection {
	var s Selection
	for kind, list := range values {
		for _, v := range list {
			s.Add(kind, v)
		}
	}
	return s
}

// Toggle adds value when absent and removes it when present. It reports
// whether value is selected afterwards.
func (s *Selection) Toggle(kind Kind, value string) bool {
	if s.Has(kind, value) {
		s.Remove(kind, value)
		return false
	}
	s.Add(kind, value)
	return s.Has(kind, value)
}

// Add selects value. Blank values are ignored.
func (s *Selection) Add(kind Kind, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if s.values == nil {
		s.values = make(map[Kind]map[string]struct{})
	}
	set, ok := s.values[kind]
	if !ok {
		set = make(map[string]struct{})
		s.values[kind] = set
	}
	set[value] = struct{}{}
}

// Remove deselects value.
func (s *Selection) Remove(kind Kind, value string) {
	set, ok := s.values[kind]
	if !ok {
		return
	}
	delete(set, value)
	if len(set) == 0 {
		delete(s.values, kind)
	}
}

// Has reports whether value is selected.
func (s Selection) Has(kind Kind, value string) bool {
	_, ok := s.values[kind][value]
	return ok
}

// Values returns the selected values of kind in sorted order.
func (s Selection) Values(kind Kind) []string {
	set := s.values[kind]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of selected values across all kinds.
func (s Selection) Count() int {
	n := 0
	for _, set := range s.values {
		n += len(set)
	}
	return n
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return s.Count() == 0 }

// Clear deselects everything.
func (s *Selection) Clear() { s.values = nil }

// Clone returns an independent copy, so a request can hold the selection as
// it was when the request was built.
func (s Selection) Clone() Selection {
	var out Selection
	for kind, set := range s.values {
		for v := range set {
			out.Add(kind, v)
		}
	}
	return out
}

// Summary renders the selection as "brand:A,B; category:C" for status lines.
func (s Selection) Summary() string {
	parts := make([]string, 0, len(Kinds))
	for _, kind := range Kinds {
		if values := s.Values(kind); len(values) > 0 {
			parts = append(parts, kind.Param()+":"+strings.Join(values, ","))
		}
	}
	return strings.Join(parts, "; ")
}
