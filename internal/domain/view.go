package domain

import (
	"strings"
	"time"
)

// Styler resolves presentation attributes by category or tag name.
type Styler interface {
	CategoryColor(category string) string
	TagIcon(tag string) string
	CanonicalTag(tag string) string
}

// ViewOptions carries what a view needs besides the bookmark itself.
type ViewOptions struct {
	ImageBase string   // backend base URL, images are served under <base>/images/
	Style     Styler   // nil => no colors/icons
	Session   *Session // nil => anonymous
	Address   string   // reverse-geocoded label, detail view only
	Author    *User    // detail view only
}

// DetailView is the full bookmark page.
type DetailView struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	CategoryColor   string    `json:"categoryColor"`
	Tag             string    `json:"tag"`
	TagIcon         string    `json:"tagIcon"`
	Images          []string  `json:"images"`
	Video           string    `json:"video,omitempty"`
	URL             string    `json:"url,omitempty"`
	Location        *Location `json:"location,omitempty"`
	Address         string    `json:"address,omitempty"`
	PublicationDate time.Time `json:"publicationDate"`
	UserID          int64     `json:"userId"`
	Author          *User     `json:"author,omitempty"`
	CanEdit         bool      `json:"canEdit"`
}

// CardView is a list entry.
type CardView struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	CategoryColor string `json:"categoryColor"`
	Tag           string `json:"tag"`
	TagIcon       string `json:"tagIcon"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	OnMap         bool   `json:"onMap"`
}

// MarkerView is a map marker with its popup content.
type MarkerView struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Category  string  `json:"category"`
	Color     string  `json:"color"`
	Tag       string  `json:"tag"`
	Icon      string  `json:"icon"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

// ImageURL maps a stored image path to the backend image endpoint using
// its last path segment. Absolute http(s) URLs on another host (already
// hosted media) are returned unchanged.
func ImageURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if isAbsoluteURL(path) && !strings.Contains(path, "/images/") {
		return path
	}
	id := path
	if i := strings.LastIndexByte(strings.TrimRight(path, "/"), '/'); i >= 0 {
		id = strings.TrimRight(path, "/")[i+1:]
	}
	return strings.TrimRight(base, "/") + "/images/" + id
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func styleOf(s Styler, b *Bookmark) (tag, color, icon string) {
	tag = b.Tag
	if s == nil {
		return tag, "", ""
	}
	tag = s.CanonicalTag(b.Tag)
	return tag, s.CategoryColor(b.Category), s.TagIcon(tag)
}

func imagesOf(base string, b *Bookmark) []string {
	out := make([]string, 0, len(b.ImageURLs))
	for _, p := range b.ImageURLs {
		if u := ImageURL(base, p); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func NewDetailView(b *Bookmark, opts ViewOptions) DetailView {
	tag, color, icon := styleOf(opts.Style, b)
	return DetailView{
		ID:              b.ID,
		Title:           b.Title,
		Description:     b.Description,
		Category:        b.Category,
		CategoryColor:   color,
		Tag:             tag,
		TagIcon:         icon,
		Images:          imagesOf(opts.ImageBase, b),
		Video:           b.Video,
		URL:             b.URL,
		Location:        b.Location,
		Address:         opts.Address,
		PublicationDate: b.PublicationDate,
		UserID:          b.UserID,
		Author:          opts.Author,
		CanEdit:         CanModify(opts.Session, b),
	}
}

func NewCardView(b *Bookmark, opts ViewOptions) CardView {
	tag, color, icon := styleOf(opts.Style, b)
	v := CardView{
		ID:            b.ID,
		Title:         b.Title,
		Category:      b.Category,
		CategoryColor: color,
		Tag:           tag,
		TagIcon:       icon,
		OnMap:         b.OnMap(),
	}
	if len(b.ImageURLs) > 0 {
		v.Thumbnail = ImageURL(opts.ImageBase, b.ImageURLs[0])
	}
	return v
}

// NewMarkerView returns false for bookmarks that cannot be placed on the map.
func NewMarkerView(b *Bookmark, opts ViewOptions) (MarkerView, bool) {
	if !b.OnMap() {
		return MarkerView{}, false
	}
	tag, color, icon := styleOf(opts.Style, b)
	v := MarkerView{
		ID:        b.ID,
		Title:     b.Title,
		Latitude:  b.Location.Latitude,
		Longitude: b.Location.Longitude,
		Category:  b.Category,
		Color:     color,
		Tag:       tag,
		Icon:      icon,
	}
	if len(b.ImageURLs) > 0 {
		v.Thumbnail = ImageURL(opts.ImageBase, b.ImageURLs[0])
	}
	return v, true
}
