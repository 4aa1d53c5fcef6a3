package domain

import "testing"

type stubStyler struct{}

func (stubStyler) CategoryColor(c string) string { return "#" + c }
func (stubStyler) TagIcon(t string) string       { return "icon-" + t }
func (stubStyler) CanonicalTag(t string) string {
	if t == "feminismo" {
		return "Feminismos"
	}
	return t
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		name, base, path, want string
	}{
		{name: "relative path", base: "http://api/api", path: "uploads/2024/abc.png", want: "http://api/api/images/abc.png"},
		{name: "bare id", base: "http://api/api/", path: "abc.png", want: "http://api/api/images/abc.png"},
		{name: "backend absolute", base: "http://api/api", path: "http://old/api/images/abc.png", want: "http://api/api/images/abc.png"},
		{name: "hosted media", base: "http://api/api", path: "https://res.cloudinary.com/demo/image/upload/v1/x.jpg", want: "https://res.cloudinary.com/demo/image/upload/v1/x.jpg"},
		{name: "empty", base: "http://api/api", path: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageURL(tt.base, tt.path); got != tt.want {
				t.Errorf("ImageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDetailView(t *testing.T) {
	b := &Bookmark{ID: 5, UserID: 9, Title: "x", Category: "conflictos", Tag: "feminismo", ImageURLs: []string{"a/1.png", ""}}
	v := NewDetailView(b, ViewOptions{ImageBase: "http://api", Style: stubStyler{}, Session: &Session{ID: 9}, Address: "Calle Larga, Málaga"})

	if !v.CanEdit {
		t.Error("owner should be able to edit")
	}
	if v.Tag != "Feminismos" || v.TagIcon != "icon-Feminismos" {
		t.Errorf("tag = %q icon = %q", v.Tag, v.TagIcon)
	}
	if v.CategoryColor != "#conflictos" {
		t.Errorf("CategoryColor = %q", v.CategoryColor)
	}
	if len(v.Images) != 1 || v.Images[0] != "http://api/images/1.png" {
		t.Errorf("Images = %v", v.Images)
	}
	if v.Address != "Calle Larga, Málaga" {
		t.Errorf("Address = %q", v.Address)
	}
}

func TestNewMarkerView(t *testing.T) {
	if _, ok := NewMarkerView(&Bookmark{ID: 1}, ViewOptions{}); ok {
		t.Error("bookmark without location must not produce a marker")
	}
	m, ok := NewMarkerView(&Bookmark{ID: 2, Location: &Location{Latitude: 1, Longitude: 2}}, ViewOptions{})
	if !ok || m.Latitude != 1 || m.Longitude != 2 {
		t.Errorf("NewMarkerView() = %+v, %v", m, ok)
	}
}

func TestNewCardViewAnonymous(t *testing.T) {
	c := NewCardView(&Bookmark{ID: 3, ImageURLs: []string{"p/q.jpg"}}, ViewOptions{ImageBase: "http://api"})
	if c.Thumbnail != "http://api/images/q.jpg" {
		t.Errorf("Thumbnail = %q", c.Thumbnail)
	}
	if c.OnMap {
		t.Error("OnMap should be false without location")
	}
}
