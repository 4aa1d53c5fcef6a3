package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Bookmark is a geolocated entry as served by the backend API.
// It is normalized once when decoded; the rest of the service only sees this shape.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title       string `json:"title"`
	Description string `json:"description"`

	// Category and Tag carry the display names used by filters and views.
	CategoryID int64  `json:"categoryId,omitempty"`
	Category   string `json:"category"`
	TagID      int64  `json:"tagId,omitempty"`
	Tag        string `json:"tag"`

	// ─────────────────────────────
	// Media
	// ─────────────────────────────

	ImageURLs []string `json:"imageUrls"`
	Video     string   `json:"video"`
	URL       string   `json:"url"`

	// ─────────────────────────────
	// Placement & metadata
	// ─────────────────────────────

	// Location is nil when the backend did not provide coordinates.
	Location        *Location `json:"location,omitempty"`
	PublicationDate time.Time `json:"publicationDate"`
}

// OnMap reports whether the bookmark can be drawn as a marker.
func (b *Bookmark) OnMap() bool {
	return b != nil && b.Location != nil
}

// Category is a backend-defined classification (e.g. "Conflictos").
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag is a backend-defined topic (e.g. "Vivienda").
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the public profile returned by the backend.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"lastName,omitempty"`
	Email    string `json:"email,omitempty"`
}

// wireBookmark accepts every shape the backend has been seen to emit.
type wireBookmark struct {
	ID              flexInt64       `json:"id"`
	UserID          flexInt64       `json:"userId"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	CategoryID      flexInt64       `json:"categoryId"`
	Category        json.RawMessage `json:"category"`
	TagID           flexInt64       `json:"tagId"`
	Tag             json.RawMessage `json:"tag"`
	Images          []string        `json:"images"`
	ImageURLs       []string        `json:"imageUrls"`
	Video           *string         `json:"video"`
	URL             *string         `json:"url"`
	Location        json.RawMessage `json:"location"`
	PublicationDate string          `json:"publicationDate"`
}

// UnmarshalJSON decodes the backend representation, tolerating
// images/imageUrls, object or "lat,lng" locations, string or {id,name}
// category/tag, and numbers sent as strings.
func (b *Bookmark) UnmarshalJSON(data []byte) error {
	var w wireBookmark
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Bookmark{
		ID:          int64(w.ID),
		UserID:      int64(w.UserID),
		Title:       w.Title,
		Description: w.Description,
		CategoryID:  int64(w.CategoryID),
		TagID:       int64(w.TagID),
	}
	if w.Video != nil {
		out.Video = *w.Video
	}
	if w.URL != nil {
		out.URL = *w.URL
	}

	catID, catName, err := decodeNamedRef(w.Category)
	if err != nil {
		return fmt.Errorf("category: %w", err)
	}
	out.Category = catName
	if out.CategoryID == 0 {
		out.CategoryID = catID
	}

	tagID, tagName, err := decodeNamedRef(w.Tag)
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}
	out.Tag = tagName
	if out.TagID == 0 {
		out.TagID = tagID
	}

	switch {
	case len(w.ImageURLs) > 0:
		out.ImageURLs = w.ImageURLs
	case len(w.Images) > 0:
		out.ImageURLs = w.Images
	default:
		out.ImageURLs = []string{}
	}

	out.Location = decodeLocation(w.Location)

	if w.PublicationDate != "" {
		out.PublicationDate = parseDate(w.PublicationDate)
	}

	*b = out
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeNamedRef reads either "Name" or {"id":1,"name":"Name"}.
func decodeNamedRef(raw json.RawMessage) (int64, string, error) {
	if isNull(raw) {
		return 0, "", nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return 0, name, nil
	}
	var ref struct {
		ID   flexInt64 `json:"id"`
		Name string    `json:"name"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return 0, "", err
	}
	return int64(ref.ID), ref.Name, nil
}

// decodeLocation reads {"latitude":..,"longitude":..} (values may be strings)
// or the legacy "lat,lng" string. Anything unparseable, in either form,
// yields no location: the bookmark stays listable but off the map.
func decodeLocation(raw json.RawMessage) *Location {
	if isNull(raw) {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseLatLng(s)
	}

	var obj struct {
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	lat, ok := parseCoord(obj.Latitude)
	if !ok {
		return nil
	}
	lng, ok := parseCoord(obj.Longitude)
	if !ok {
		return nil
	}
	return &Location{Latitude: lat, Longitude: lng}
}

// parseCoord accepts 36.7 or "36.7". Missing, null, blank and non-numeric
// values report false.
func parseCoord(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f flexFloat
	if err := f.UnmarshalJSON(raw); err != nil {
		return 0, false
	}
	return float64(f), true
}

// ParseLatLng parses "lat,lng". It returns nil for anything else.
func ParseLatLng(s string) *Location {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return &Location{Latitude: lat, Longitude: lng}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02",
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// flexInt64 decodes 12, "12" or null.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		n = int64(fl)
	}
	*f = flexInt64(n)
	return nil
}

// flexFloat decodes 36.7, "36.7" or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}
