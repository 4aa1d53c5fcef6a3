// Package media validates user files and uploads them to Cloudinary.
package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// File is an in-memory user file.
type File struct {
	Name string
	Data []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// Detect sniffs the MIME type from content; the client-declared type is never trusted.
func (f File) Detect() string {
	return mimetype.Detect(f.Data).String()
}

// Encoded is the inline image shape accepted by the backend create/update body.
type Encoded struct {
	Base64 string `json:"base64"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Size   int64  `json:"size"`
}

// Encode renders f as an inline base64 image.
func Encode(f File) (Encoded, error) {
	if len(f.Data) == 0 {
		return Encoded{}, fmt.Errorf("file %q is empty", f.Name)
	}
	return Encoded{
		Base64: base64.StdEncoding.EncodeToString(f.Data),
		Name:   f.Name,
		Type:   f.Detect(),
		Size:   f.Size(),
	}, nil
}

// Limits are the precheck bounds applied before any network call.
type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
	MaxImages     int
}

// DefaultLimits: 10 MB images, 100 MB videos, 10 images per batch.
var DefaultLimits = Limits{MaxImageBytes: 10 << 20, MaxVideoBytes: 100 << 20, MaxImages: 10}

func (l Limits) max(kind Kind) int64 {
	if kind == KindVideo {
		return l.MaxVideoBytes
	}
	return l.MaxImageBytes
}

// Check validates size and sniffed type and returns the detected MIME type.
func (l Limits) Check(kind Kind, f File) (string, error) {
	if f.Size() == 0 {
		return "", apperr.New(apperr.KindValidation, fmt.Sprintf("File %s is empty.", displayName(f)))
	}
	if limit := l.max(kind); limit > 0 && f.Size() > limit {
		return "", apperr.New(apperr.KindTooLarge,
			fmt.Sprintf("File %s exceeds the %d MB limit.", displayName(f), limit>>20))
	}
	mime := f.Detect()
	if !strings.HasPrefix(mime, string(kind)+"/") {
		return "", apperr.New(apperr.KindUnsupportedMedia,
			fmt.Sprintf("File %s is not a valid %s (%s).", displayName(f), kind, mime))
	}
	return mime, nil
}

// CheckBatch validates an image batch as a whole.
func (l Limits) CheckBatch(files []File) error {
	if len(files) == 0 {
		return apperr.New(apperr.KindValidation, "No files received.")
	}
	if l.MaxImages > 0 && len(files) > l.MaxImages {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("At most %d images can be uploaded at once.", l.MaxImages))
	}
	for _, f := range files {
		if _, err := l.Check(KindImage, f); err != nil {
			return err
		}
	}
	return nil
}

func displayName(f File) string {
	if f.Name == "" {
		return "(unnamed)"
	}
	return f.Name
}
