package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
)

// Read endpoints return raw JSON so callers can cache the exact payload.

func (c *Client) FetchBookmarks(ctx context.Context) ([]byte, error) {
	return c.do(ctx, call{method: http.MethodGet, path: "/bookmarks"})
}

func (c *Client) FetchCategories(ctx context.Context) ([]byte, error) {
	return c.do(ctx, call{method: http.MethodGet, path: "/categories/all"})
}

func (c *Client) FetchTags(ctx context.Context) ([]byte, error) {
	return c.do(ctx, call{method: http.MethodGet, path: "/tags/all"})
}

func (c *Client) FetchUser(ctx context.Context, id int64) ([]byte, error) {
	return c.do(ctx, call{method: http.MethodGet, path: "/auth/user/" + strconv.FormatInt(id, 10)})
}

func (c *Client) SearchBookmarks(ctx context.Context, title string) ([]*domain.Bookmark, error) {
	data, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/bookmarks/search",
		query:  url.Values{"title": {title}},
	})
	if err != nil {
		return nil, err
	}
	return DecodeBookmarks(data)
}

func (c *Client) Bookmark(ctx context.Context, id int64) (*domain.Bookmark, error) {
	data, err := c.do(ctx, call{method: http.MethodGet, path: bookmarkPath(id)})
	if err != nil {
		return nil, err
	}
	b, err := decodeBookmark(data)
	if err == nil && b == nil {
		return nil, apperr.New(apperr.KindNotFound, "Bookmark not found.")
	}
	return b, err
}

// CreateBookmark and UpdateBookmark return a nil bookmark when the backend
// accepts the write with an empty body.
func (c *Client) CreateBookmark(ctx context.Context, s *domain.Session, payload any) (*domain.Bookmark, error) {
	data, err := c.do(ctx, call{method: http.MethodPost, path: "/bookmarks", session: s, body: payload})
	if err != nil {
		return nil, err
	}
	return decodeBookmark(data)
}

func (c *Client) UpdateBookmark(ctx context.Context, s *domain.Session, id int64, payload any) (*domain.Bookmark, error) {
	data, err := c.do(ctx, call{method: http.MethodPut, path: bookmarkPath(id), session: s, body: payload})
	if err != nil {
		return nil, err
	}
	return decodeBookmark(data)
}

// DeleteBookmark succeeds only on 204 No Content.
func (c *Client) DeleteBookmark(ctx context.Context, s *domain.Session, id int64) error {
	_, err := c.do(ctx, call{
		method:  http.MethodDelete,
		path:    bookmarkPath(id),
		session: s,
		expect:  []int{http.StatusNoContent},
	})
	return err
}

// Credentials is the login body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register body.
type Registration struct {
	Name        string `json:"name"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CountryCode string `json:"countryCode"`
}

// Login returns the raw session object issued by the backend.
func (c *Client) Login(ctx context.Context, cr Credentials) ([]byte, error) {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/login", body: cr})
}

func (c *Client) Register(ctx context.Context, r Registration) ([]byte, error) {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: r})
}

// Image streams a stored image. The caller closes the body.
func (c *Client) Image(ctx context.Context, id string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/images/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build GET /images: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindBackend, "", fmt.Errorf("GET /images/%s: %w", id, err))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		apiErr := &APIError{Op: "GET /images/{id}", Status: resp.StatusCode}
		return nil, "", apperr.Wrap(kindForStatus(resp.StatusCode), "", apiErr)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func bookmarkPath(id int64) string {
	return "/bookmarks/" + strconv.FormatInt(id, 10)
}

// DecodeBookmarks decodes a bookmark array, tolerating a {"content":[...]}
// page wrapper.
func DecodeBookmarks(data []byte) ([]*domain.Bookmark, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Content []*domain.Bookmark `json:"content"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode bookmarks page: %w", err)
		}
		return page.Content, nil
	}
	var list []*domain.Bookmark
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("decode bookmarks: %w", err)
	}
	return list, nil
}

// decodeBookmark decodes a mutation or lookup response. An empty body is a
// valid acknowledgement and yields a nil bookmark.
func decodeBookmark(data []byte) (*domain.Bookmark, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bookmark: %w", err)
	}
	return &b, nil
}

func DecodeCategories(data []byte) ([]domain.Category, error) {
	var out []domain.Category
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return out, nil
}

func DecodeTags(data []byte) ([]domain.Tag, error) {
	var out []domain.Tag
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return out, nil
}

func DecodeUser(data []byte) (*domain.User, error) {
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
