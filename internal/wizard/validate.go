package wizard

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/MrSnakeDoc/mapmarks/internal/payload"
)

const (
	MinImages         = 3
	MinDescription    = 100
	MaxDescription    = 250 // strict mode only
	msgTitleRequired  = "Bookmark name is required."
	msgTagRequired    = "Tag is required."
	msgCatRequired    = "Category is required."
	msgMinImages      = "At least 3 images are required."
	msgImageType      = "Only PNG and JPEG images are allowed."
	msgDescTooShort   = "Description must be at least 100 characters."
	msgDescTooLong    = "Description must be at most 250 characters."
	msgInvalidURL     = "Enter a valid URL."
	msgLatRequired    = "Latitude is required."
	msgLngRequired    = "Longitude is required."
	mimePNG, mimeJPEG = "image/png", "image/jpeg"
)

// ValidateBasicInfo checks title, tag, category and the attached images.
// Hosted image URLs count toward the minimum.
func ValidateBasicInfo(d *payload.Draft, _ bool) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(d.Title) == "" {
		fields["title"] = msgTitleRequired
	}
	if d.TagID.Trimmed() == "" {
		fields["tagId"] = msgTagRequired
	}
	if d.CategoryID.Trimmed() == "" {
		fields["categoryId"] = msgCatRequired
	}

	switch {
	case d.ImageCount() < MinImages:
		fields["images"] = msgMinImages
	case !allowedImages(d):
		fields["images"] = msgImageType
	}
	return fields
}

func allowedImages(d *payload.Draft) bool {
	for _, f := range d.Files {
		if m := f.Detect(); m != mimePNG && m != mimeJPEG {
			return false
		}
	}
	for _, u := range d.ImageURLs {
		if !allowedImageURL(u) {
			return false
		}
	}
	return true
}

// allowedImageURL judges hosted images by extension; URLs without one are
// trusted since they went through the upload precheck.
func allowedImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case "", ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// ValidateAdditionalInfo checks the description length and optional links.
func ValidateAdditionalInfo(d *payload.Draft, strict bool) map[string]string {
	fields := map[string]string{}
	n := utf8.RuneCountInString(strings.TrimSpace(d.Description))
	switch {
	case n < MinDescription:
		fields["description"] = msgDescTooShort
	case strict && n > MaxDescription:
		fields["description"] = msgDescTooLong
	}
	if v := strings.TrimSpace(d.URL); v != "" && !validHTTPURL(v) {
		fields["url"] = msgInvalidURL
	}
	if v := strings.TrimSpace(d.Video); v != "" && !validHTTPURL(v) {
		fields["video"] = msgInvalidURL
	}
	return fields
}

func validHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidatePlanning requires coordinates in strict mode only. Values are
// checked for being numbers by the payload builder.
func ValidatePlanning(d *payload.Draft, strict bool) map[string]string {
	if !strict {
		return nil
	}
	fields := map[string]string{}
	if d.Latitude.Trimmed() == "" {
		fields["latitude"] = msgLatRequired
	}
	if d.Longitude.Trimmed() == "" {
		fields["longitude"] = msgLngRequired
	}
	return fields
}

// ValidateAll runs every step validator; the direct create and update
// endpoints use it as well.
func ValidateAll(d *payload.Draft, strict bool) map[string]string {
	fields := map[string]string{}
	for _, v := range []Validator{ValidateBasicInfo, ValidateAdditionalInfo, ValidatePlanning} {
		for k, msg := range v(d, strict) {
			fields[k] = msg
		}
	}
	return fields
}
