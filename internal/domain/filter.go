package domain

import (
	"sort"
	"strings"
)

// AllCategories is the sentinel that clears the category selection.
const AllCategories = "all"

// FilterSelection holds the selected category and tag names.
// An empty set matches everything. Names match exactly, as the backend
// stores them. The zero value is ready to use.
type FilterSelection struct {
	categories map[string]struct{}
	tags       map[string]struct{}
}

// ToggleCategory adds name to the category set, or removes it if present.
// "" and "all" clear the set.
func (s *FilterSelection) ToggleCategory(name string) {
	if strings.TrimSpace(name) == "" || name == AllCategories {
		s.categories = nil
		return
	}
	if s.categories == nil {
		s.categories = make(map[string]struct{})
	}
	if _, ok := s.categories[name]; ok {
		delete(s.categories, name)
		return
	}
	s.categories[name] = struct{}{}
}

// SetTags replaces the tag set wholesale (multi-select semantics).
func (s *FilterSelection) SetTags(names []string) {
	s.tags = nil
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if s.tags == nil {
			s.tags = make(map[string]struct{})
		}
		s.tags[name] = struct{}{}
	}
}

// Clear drops both selections.
func (s *FilterSelection) Clear() {
	s.categories = nil
	s.tags = nil
}

// IsEmpty reports whether no filter is active.
func (s *FilterSelection) IsEmpty() bool {
	return len(s.categories) == 0 && len(s.tags) == 0
}

// Categories returns the selected category names, sorted.
func (s *FilterSelection) Categories() []string { return sortedKeys(s.categories) }

// Tags returns the selected tag names, sorted.
func (s *FilterSelection) Tags() []string { return sortedKeys(s.tags) }

// Matches reports whether b passes the selection.
func (s *FilterSelection) Matches(b *Bookmark) bool {
	if b == nil {
		return false
	}
	return inSet(s.categories, b.Category) && inSet(s.tags, b.Tag)
}

// Filter returns the bookmarks that pass sel, in input order.
// It does not modify its input.
func Filter(sel FilterSelection, bookmarks []*Bookmark) []*Bookmark {
	out := make([]*Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if sel.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// OnlyOnMap drops bookmarks without a location.
func OnlyOnMap(bookmarks []*Bookmark) []*Bookmark {
	out := make([]*Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.OnMap() {
			out = append(out, b)
		}
	}
	return out
}

func inSet(set map[string]struct{}, name string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[name]
	return ok
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
