// Package presentation resolves category colors, tag icons and tag aliases
// used by the bookmark views and the map legend.
package presentation

import (
	"sort"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
)

// Style is immutable once built and safe for concurrent use.
type Style struct {
	defaultColor string
	defaultTag   string
	colors       map[string]string // normalized category -> color
	icons        map[string]string // normalized tag -> icon
	tags         map[string]string // normalized tag -> display name
	aliases      map[string]string // normalized alias -> display name
}

var _ domain.Styler = (*Style)(nil)

// NewStyle merges f over the built-in defaults. Names are matched
// case- and accent-insensitively.
func NewStyle(f File) *Style {
	base := defaults()
	s := &Style{
		defaultColor: pick(f.DefaultColor, base.DefaultColor),
		defaultTag:   pick(f.DefaultTag, base.DefaultTag),
		colors:       map[string]string{},
		icons:        map[string]string{},
		tags:         map[string]string{},
		aliases:      map[string]string{},
	}
	for _, src := range []File{base, f} {
		for name, color := range src.Categories {
			s.colors[domain.NormalizeName(name)] = color
		}
		for name, icon := range src.Tags {
			key := domain.NormalizeName(name)
			s.icons[key] = icon
			s.tags[key] = name
		}
		for alias, name := range src.Aliases {
			s.aliases[domain.NormalizeName(alias)] = name
		}
	}
	return s
}

func pick(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// CategoryColor returns the category's color or the default gray.
func (s *Style) CategoryColor(category string) string {
	if c, ok := s.colors[domain.NormalizeName(category)]; ok {
		return c
	}
	return s.defaultColor
}

// CanonicalTag maps a tag to its display spelling: aliases first, then a
// known tag with the same normalized name, else the input unchanged.
func (s *Style) CanonicalTag(tag string) string {
	key := domain.NormalizeName(tag)
	if name, ok := s.aliases[key]; ok {
		return name
	}
	if name, ok := s.tags[key]; ok {
		return name
	}
	return tag
}

// TagIcon returns the icon of the tag, falling back to the default tag's icon.
func (s *Style) TagIcon(tag string) string {
	if icon, ok := s.icons[domain.NormalizeName(s.CanonicalTag(tag))]; ok {
		return icon
	}
	return s.icons[domain.NormalizeName(s.defaultTag)]
}

// LegendEntry is one line of the map legend.
type LegendEntry struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

type Legend struct {
	Categories   []LegendEntry `json:"categories"`
	Tags         []LegendEntry `json:"tags"`
	DefaultColor string        `json:"defaultColor"`
}

// Legend lists the known category colors and tag icons, sorted by name.
func (s *Style) Legend(categories []domain.Category, tags []domain.Tag) Legend {
	l := Legend{DefaultColor: s.defaultColor}
	for _, c := range categories {
		l.Categories = append(l.Categories, LegendEntry{Name: c.Name, Color: s.CategoryColor(c.Name)})
	}
	for _, t := range tags {
		name := s.CanonicalTag(t.Name)
		l.Tags = append(l.Tags, LegendEntry{Name: name, Icon: s.TagIcon(name)})
	}
	sort.Slice(l.Categories, func(i, j int) bool { return l.Categories[i].Name < l.Categories[j].Name })
	sort.Slice(l.Tags, func(i, j int) bool { return l.Tags[i].Name < l.Tags[j].Name })
	return l
}
