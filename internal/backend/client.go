// Package backend is the HTTP client for the bookmarks REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
	"github.com/MrSnakeDoc/mapmarks/internal/utils"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderUserID        = "X-User-ID"

	// maxBody caps how much of a backend response is read.
	maxBody = 32 << 20
)

// APIError is a non-success response from the backend.
type APIError struct {
	Op      string // e.g. "POST /bookmarks"
	Status  int
	Message string // backend-provided message, may be empty
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s: %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s: %d", e.Op, e.Status)
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// New builds a client for baseURL (ex: "http://localhost:8080/api").
// A nil httpClient gets a default one with the given timeout.
func New(baseURL string, timeout time.Duration, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// BaseURL is the API root, used to build public image URLs.
func (c *Client) BaseURL() string { return c.baseURL }

// AuthHeaders returns the headers attached to authorized calls.
func AuthHeaders(s *domain.Session) http.Header {
	h := http.Header{}
	if s == nil {
		return h
	}
	if s.Token != "" {
		h.Set(HeaderAuthorization, "Bearer "+s.Token)
	}
	if s.ID != 0 {
		h.Set(HeaderUserID, strconv.FormatInt(s.ID, 10))
	}
	return h
}

type call struct {
	method  string
	path    string
	query   url.Values
	session *domain.Session
	body    any
	expect  []int // accepted statuses, default 2xx
}

func (c call) op() string { return c.method + " " + c.path }

func (c call) accepts(status int) bool {
	if len(c.expect) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range c.expect {
		if s == status {
			return true
		}
	}
	return false
}

// do runs one request and returns the response body on an accepted status.
func (c *Client) do(ctx context.Context, cl call) (data []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("backend", cl.method+" "+routeLabel(cl.path), start, err) }()

	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", cl.op(), err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cl.op(), err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range AuthHeaders(cl.session) {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend unreachable", logger.String("op", cl.op()), logger.Error(err))
		return nil, apperr.Wrap(apperr.KindBackend, "", fmt.Errorf("%s: %w", cl.op(), err))
	}
	defer utils.DrainClose(resp.Body)

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, "", fmt.Errorf("read %s: %w", cl.op(), err))
	}

	if !cl.accepts(resp.StatusCode) {
		apiErr := &APIError{Op: cl.op(), Status: resp.StatusCode, Message: extractMessage(data)}
		c.log.Debug("backend rejected request",
			logger.String("op", apiErr.Op),
			logger.Int("status", apiErr.Status),
			logger.String("message", apiErr.Message))
		return nil, apperr.Wrap(kindForStatus(resp.StatusCode), apiErr.Message, apiErr)
	}
	return data, nil
}

// routeLabel collapses numeric path segments for metric labels.
func routeLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func kindForStatus(status int) apperr.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return apperr.KindUnauthorized
	case status == http.StatusForbidden:
		return apperr.KindForbidden
	case status == http.StatusNotFound:
		return apperr.KindNotFound
	case status == http.StatusConflict:
		return apperr.KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.KindValidation
	default:
		return apperr.KindBackend
	}
}

// extractMessage pulls a human message out of common error bodies:
// {"message":..}, {"error":..}, {"detail":..} or short plain text.
func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"message", "error", "detail"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	if len(body) <= 200 && !bytes.ContainsAny(body, "<>{}") {
		return string(body)
	}
	return ""
}
