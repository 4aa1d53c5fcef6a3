package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

// maxJSONBody caps JSON request bodies; files go through multipart.
const maxJSONBody = 1 << 20

const genericError = "Something went wrong."

type errorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to the HTTP status returned to the client.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case apperr.KindUpload:
		return http.StatusBadGateway
	case apperr.KindBackend:
		if st := backend.StatusOf(err); st >= 400 && st < 500 {
			return st
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into a JSON error response. Server-side
// failures are logged at error level; client mistakes at debug.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status := statusFor(err)
	kind := apperr.KindOf(err)

	fallback := http.StatusText(status)
	if status >= 500 {
		fallback = genericError
	}
	msg := apperr.MessageOf(err, fallback)
	if kind == apperr.KindInternal {
		msg = genericError
	}

	reqID := middleware.GetReqID(r.Context())
	switch {
	case errors.Is(err, context.Canceled):
		log.Debug("request canceled", logger.String("path", r.URL.Path), logger.String("request_id", reqID))
	case status >= 500:
		log.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.String("request_id", reqID),
			logger.Error(err))
	default:
		log.Debug("request rejected",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}

	writeJSON(w, status, errorResponse{
		Error:     kind.String(),
		Message:   msg,
		Fields:    apperr.FieldsOf(err),
		RequestID: reqID,
	})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.Wrap(apperr.KindTooLarge, "Request body is too large.", err)
		}
		return apperr.Wrap(apperr.KindValidation, "Malformed JSON body.", err)
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindNotFound, "Bookmark not found.")
	}
	return id, nil
}

// queryList collects a repeated or comma-separated query parameter.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
