// Package payload turns a bookmark draft into the body the backend expects
// on create and update.
package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/media"
	"golang.org/x/sync/errgroup"
)

// ErrUpload reports that an attached file could not be read or encoded.
var ErrUpload = errors.New("image encoding failed")

// DateLayout is ISO-8601 in UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Text is a form value that decodes from a JSON string or number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) Trimmed() string { return strings.TrimSpace(string(t)) }

// Draft holds the raw form fields across all wizard steps.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TagID       Text     `json:"tagId"`
	CategoryID  Text     `json:"categoryId"`
	Latitude    Text     `json:"latitude"`
	Longitude   Text     `json:"longitude"`
	ImageURLs   []string `json:"imageUrls"`
	Video       string   `json:"video"`
	URL         string   `json:"url"`

	// Files are raw images attached to the draft, sent inline as base64.
	Files []media.File `json:"-"`
}

// ImageCount counts hosted and raw images together.
func (d *Draft) ImageCount() int {
	return len(d.ImageURLs) + len(d.Files)
}

// Payload is the backend create/update body. Images and ImageURLs are always
// sent, as empty arrays when there is nothing to carry.
type Payload struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	TagID           int64            `json:"tagId"`
	CategoryID      int64            `json:"categoryId"`
	Images          []media.Encoded  `json:"images"`
	ImageURLs       []string         `json:"imageUrls"`
	Video           string           `json:"video"`
	URL             string           `json:"url"`
	Location        *domain.Location `json:"location,omitempty"`
	PublicationDate string           `json:"publicationDate"`
}

type Builder struct {
	now func() time.Time
}

func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build assembles the payload. Location is omitted unless both coordinates
// are present. Field problems come back as one validation error; an
// unreadable file fails the whole build with ErrUpload.
func (b *Builder) Build(ctx context.Context, d Draft) (*Payload, error) {
	stamp := b.now().UTC().Format(DateLayout)

	fields := map[string]string{}
	p := &Payload{
		Title:           strings.TrimSpace(d.Title),
		Description:     d.Description,
		Video:           strings.TrimSpace(d.Video),
		URL:             strings.TrimSpace(d.URL),
		PublicationDate: stamp,
		Images:          []media.Encoded{},
		ImageURLs:       []string{},
	}

	var err error
	if p.TagID, err = parseID(d.TagID); err != nil {
		fields["tagId"] = "Tag is invalid."
	}
	if p.CategoryID, err = parseID(d.CategoryID); err != nil {
		fields["categoryId"] = "Category is invalid."
	}

	loc, locFields := parseLocation(d.Latitude, d.Longitude)
	for k, v := range locFields {
		fields[k] = v
	}
	p.Location = loc

	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	for _, u := range d.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			p.ImageURLs = append(p.ImageURLs, u)
		}
	}

	if len(d.Files) > 0 {
		encoded, err := encodeAll(ctx, d.Files)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpload, "Error uploading images", fmt.Errorf("%w: %v", ErrUpload, err))
		}
		p.Images = encoded
	}
	return p, nil
}

func parseID(v Text) (int64, error) {
	s := v.Trimmed()
	if s == "" {
		return 0, errors.New("empty id")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return n, nil
}

// parseLocation never returns a partial location.
func parseLocation(latText, lngText Text) (*domain.Location, map[string]string) {
	latS, lngS := latText.Trimmed(), lngText.Trimmed()
	if latS == "" || lngS == "" {
		return nil, nil
	}

	fields := map[string]string{}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil || lat < -90 || lat > 90 {
		fields["latitude"] = "Latitude must be a number between -90 and 90."
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil || lng < -180 || lng > 180 {
		fields["longitude"] = "Longitude must be a number between -180 and 180."
	}
	if len(fields) > 0 {
		return nil, fields
	}
	return &domain.Location{Latitude: lat, Longitude: lng}, nil
}

func encodeAll(ctx context.Context, files []media.File) ([]media.Encoded, error) {
	out := make([]media.Encoded, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enc, err := media.Encode(f)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
