package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/media"
)

// multipartMemory is kept in memory before parts spill to temp files.
const multipartMemory = 32 << 20

func limitsOf(d deps.Deps) media.Limits {
	if d.Uploader != nil {
		return d.Uploader.Limits()
	}
	return media.DefaultLimits
}

// readFiles loads every part of the named multipart field into memory.
// maxBody caps the whole request body.
func readFiles(w http.ResponseWriter, r *http.Request, field string, maxBody int64) ([]media.File, error) {
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Wrap(apperr.KindTooLarge, "Upload is too large.", err)
		}
		return nil, apperr.Wrap(apperr.KindValidation, "Expected a multipart form.", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[field]
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %q: %w", fh.Filename, err)
		}
		files = append(files, media.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func imageBatchBytes(l media.Limits) int64 {
	n := int64(l.MaxImages)
	if n <= 0 {
		n = 1
	}
	return n*l.MaxImageBytes + 1<<20
}
