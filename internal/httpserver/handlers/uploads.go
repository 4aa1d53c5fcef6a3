package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

type uploadImagesResponse struct {
	URLs []string `json:"urls"`
}

type uploadVideoResponse struct {
	URL string `json:"url"`
}

// UploadImages sends the "images" parts to the media host and returns the
// hosted URLs in input order.
func UploadImages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limits := limitsOf(d)
		files, err := readFiles(w, r, "images", imageBatchBytes(limits))
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		urls, err := d.Uploader.UploadImages(r.Context(), files)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		d.Logger.Info("images uploaded", logger.Int("count", len(urls)))
		writeJSON(w, http.StatusCreated, uploadImagesResponse{URLs: urls})
	}
}

// UploadVideo sends the single "video" part to the media host.
func UploadVideo(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limits := limitsOf(d)
		files, err := readFiles(w, r, "video", limits.MaxVideoBytes+1<<20)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if len(files) != 1 {
			writeError(w, r, d.Logger, apperr.New(apperr.KindValidation, "Exactly one video is expected."))
			return
		}
		url, err := d.Uploader.UploadVideo(r.Context(), files[0])
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, uploadVideoResponse{URL: url})
	}
}

