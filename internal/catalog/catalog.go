// Package catalog is the read-through layer over the backend API.
//
// Reads of bookmarks, categories, tags and users probe the response cache
// first and only call the backend on a miss. Mutations invalidate the whole
// cache, and only after the backend confirmed them: a failed write never
// discards valid cached reads.
//
// Overlapping cold reads are not de-duplicated. Each caller fetches and the
// last write to the key wins. A read that started before an invalidation may
// write its (older) result back afterwards; that staleness is bounded by the
// cache TTL.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/cache"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/index"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Placeholder user returned when the backend fails to resolve a user.
const (
	PlaceholderName     = "User"
	PlaceholderLastName = "Unavailable"
)

// API is the subset of the backend client the catalog needs.
type API interface {
	FetchBookmarks(ctx context.Context) ([]byte, error)
	FetchCategories(ctx context.Context) ([]byte, error)
	FetchTags(ctx context.Context) ([]byte, error)
	FetchUser(ctx context.Context, id int64) ([]byte, error)
	SearchBookmarks(ctx context.Context, title string) ([]*domain.Bookmark, error)
	Bookmark(ctx context.Context, id int64) (*domain.Bookmark, error)
	CreateBookmark(ctx context.Context, s *domain.Session, payload any) (*domain.Bookmark, error)
	UpdateBookmark(ctx context.Context, s *domain.Session, id int64, payload any) (*domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, s *domain.Session, id int64) error
}

type Catalog struct {
	api   API
	cache cache.Cache
	index *index.MemoryIndex
	log   logger.Logger
}

func New(api API, c cache.Cache, idx *index.MemoryIndex, log logger.Logger) *Catalog {
	if idx == nil {
		idx = index.NewMemoryIndex()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{api: api, cache: c, index: idx, log: log}
}

// Index exposes the snapshot fed by bookmark reads.
func (c *Catalog) Index() *index.MemoryIndex { return c.index }

// readThrough returns the cached payload for key, or fetches, decodes and
// caches it. A cached payload that no longer decodes is refetched.
func readThrough[T any](ctx context.Context, c *Catalog, key string,
	fetch func(context.Context) ([]byte, error),
	decode func([]byte) (T, error),
) (T, error) {
	if data, ok := c.cache.Get(ctx, key); ok {
		v, err := decode(data)
		if err == nil {
			return v, nil
		}
		c.log.Debug("cached payload undecodable, refetching",
			logger.String("key", key), logger.Error(err))
	}

	var zero T
	data, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	v, err := decode(data)
	if err != nil {
		return zero, err
	}
	if err := c.cache.Set(ctx, key, data); err != nil {
		c.log.Warn("failed to cache response", logger.String("key", key), logger.Error(err))
	}
	return v, nil
}

// AllBookmarks returns every bookmark, from cache when fresh.
func (c *Catalog) AllBookmarks(ctx context.Context) ([]*domain.Bookmark, error) {
	list, err := readThrough(ctx, c, cache.KeyBookmarks, c.api.FetchBookmarks, backend.DecodeBookmarks)
	if err != nil {
		return nil, err
	}
	c.index.UpdateBookmarks(list)
	return list, nil
}

func (c *Catalog) Categories(ctx context.Context) ([]domain.Category, error) {
	list, err := readThrough(ctx, c, cache.KeyCategories, c.api.FetchCategories, backend.DecodeCategories)
	if err != nil {
		return nil, err
	}
	c.index.UpdateCategories(list)
	return list, nil
}

func (c *Catalog) Tags(ctx context.Context) ([]domain.Tag, error) {
	list, err := readThrough(ctx, c, cache.KeyTags, c.api.FetchTags, backend.DecodeTags)
	if err != nil {
		return nil, err
	}
	c.index.UpdateTags(list)
	return list, nil
}

// User resolves a public profile. A backend 500 yields a cached placeholder
// so pages listing many authors do not fail on one broken account.
func (c *Catalog) User(ctx context.Context, id int64) (*domain.User, error) {
	fetch := func(ctx context.Context) ([]byte, error) {
		data, err := c.api.FetchUser(ctx, id)
		if err != nil && backend.StatusOf(err) == http.StatusInternalServerError {
			c.log.Warn("user lookup failed upstream, using placeholder",
				logger.Int64("user_id", id), logger.Error(err))
			return json.Marshal(PlaceholderUser(id))
		}
		return data, err
	}
	return readThrough(ctx, c, cache.UserKey(id), fetch, backend.DecodeUser)
}

func PlaceholderUser(id int64) *domain.User {
	return &domain.User{ID: id, Name: PlaceholderName, LastName: PlaceholderLastName}
}

// SearchBookmarks asks the backend (never cached) and orders the results by
// title relevance. Results the local ranking does not match keep their
// backend order after the ranked ones.
func (c *Catalog) SearchBookmarks(ctx context.Context, title string) ([]*domain.Bookmark, error) {
	found, err := c.api.SearchBookmarks(ctx, title)
	if err != nil {
		return nil, err
	}
	ranked := domain.RankBookmarks(title, found)
	seen := make(map[*domain.Bookmark]bool, len(ranked))
	for _, b := range ranked {
		seen[b] = true
	}
	for _, b := range found {
		if !seen[b] {
			ranked = append(ranked, b)
		}
	}
	return ranked, nil
}

// Bookmark fetches one bookmark (never cached).
func (c *Catalog) Bookmark(ctx context.Context, id int64) (*domain.Bookmark, error) {
	return c.api.Bookmark(ctx, id)
}

// CreateBookmark and UpdateBookmark invalidate on every accepted write. The
// returned bookmark is nil when the backend acknowledged without a body.
func (c *Catalog) CreateBookmark(ctx context.Context, s *domain.Session, payload any) (*domain.Bookmark, error) {
	b, err := c.api.CreateBookmark(ctx, s, payload)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "create")
	c.index.AddBookmark(b)
	return b, nil
}

func (c *Catalog) UpdateBookmark(ctx context.Context, s *domain.Session, id int64, payload any) (*domain.Bookmark, error) {
	b, err := c.api.UpdateBookmark(ctx, s, id, payload)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "update")
	c.index.AddBookmark(b)
	return b, nil
}

func (c *Catalog) DeleteBookmark(ctx context.Context, s *domain.Session, id int64) error {
	if err := c.api.DeleteBookmark(ctx, s, id); err != nil {
		return err
	}
	c.invalidate(ctx, "delete")
	c.index.DeleteBookmark(id)
	return nil
}

// invalidate clears the cache after a confirmed mutation. It runs detached
// from the request context so a client disconnect cannot skip it.
func (c *Catalog) invalidate(ctx context.Context, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.cache.InvalidateAll(ctx); err != nil {
		c.log.Error("cache invalidation failed", logger.String("reason", reason), logger.Error(err))
	}
}

// Warm loads bookmarks, categories and tags through the cache without
// invalidating it, so a shared cache left by another instance is reused.
func (c *Catalog) Warm(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	c.loadAll(gctx, g)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("warm catalog: %w", err)
	}
	return nil
}

// Refresh clears the cache and reloads bookmarks, categories and tags concurrently.
func (c *Catalog) Refresh(ctx context.Context) error {
	if err := c.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	c.loadAll(gctx, g)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	return nil
}

func (c *Catalog) loadAll(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		_, err := c.AllBookmarks(ctx)
		return err
	})
	g.Go(func() error {
		_, err := c.Categories(ctx)
		return err
	})
	g.Go(func() error {
		_, err := c.Tags(ctx)
		return err
	})
}
