package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/cache"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

type fakeAPI struct {
	mu        sync.Mutex
	calls     map[string]int
	bookmarks string
	userErr   error
	writeErr  error
	searchOut []*domain.Bookmark
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:     map[string]int{},
		bookmarks: `[{"id":1,"title":"Huerto","location":{"latitude":1,"longitude":2}},{"id":2,"title":"Sin mapa"}]`,
	}
}

func (f *fakeAPI) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) FetchBookmarks(ctx context.Context) ([]byte, error) {
	f.count("bookmarks")
	return []byte(f.bookmarks), nil
}

func (f *fakeAPI) FetchCategories(ctx context.Context) ([]byte, error) {
	f.count("categories")
	return []byte(`[{"id":1,"name":"Conflictos"}]`), nil
}

func (f *fakeAPI) FetchTags(ctx context.Context) ([]byte, error) {
	f.count("tags")
	return []byte(`[{"id":1,"name":"Vivienda"}]`), nil
}

func (f *fakeAPI) FetchUser(ctx context.Context, id int64) ([]byte, error) {
	f.count("user")
	if f.userErr != nil {
		return nil, f.userErr
	}
	return []byte(`{"id":7,"name":"Ana"}`), nil
}

func (f *fakeAPI) SearchBookmarks(ctx context.Context, title string) ([]*domain.Bookmark, error) {
	f.count("search")
	return f.searchOut, nil
}

func (f *fakeAPI) Bookmark(ctx context.Context, id int64) (*domain.Bookmark, error) {
	f.count("bookmark")
	return &domain.Bookmark{ID: id}, nil
}

func (f *fakeAPI) CreateBookmark(ctx context.Context, s *domain.Session, payload any) (*domain.Bookmark, error) {
	f.count("create")
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &domain.Bookmark{ID: 3, Title: "nuevo"}, nil
}

func (f *fakeAPI) UpdateBookmark(ctx context.Context, s *domain.Session, id int64, payload any) (*domain.Bookmark, error) {
	f.count("update")
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &domain.Bookmark{ID: id, Title: "editado"}, nil
}

func (f *fakeAPI) DeleteBookmark(ctx context.Context, s *domain.Session, id int64) error {
	f.count("delete")
	return f.writeErr
}

type clock struct{ now atomic.Int64 }

func (c *clock) Now() time.Time          { return time.UnixMilli(c.now.Load()) }
func (c *clock) Advance(d time.Duration) { c.now.Add(d.Milliseconds()) }

func newCatalog(api API) (*Catalog, *clock) {
	clk := &clock{}
	clk.now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	c := cache.NewMemory(cache.Options{TTL: 5 * time.Minute, Clock: clk.Now})
	return New(api, c, nil, logger.Nop()), clk
}

func TestAllBookmarksServedFromCacheWithinTTL(t *testing.T) {
	api := newFakeAPI()
	cat, clk := newCatalog(api)
	ctx := context.Background()

	first, err := cat.AllBookmarks(ctx)
	if err != nil {
		t.Fatalf("AllBookmarks() error = %v", err)
	}
	clk.Advance(time.Minute)
	second, err := cat.AllBookmarks(ctx)
	if err != nil {
		t.Fatalf("AllBookmarks() error = %v", err)
	}

	if api.Calls("bookmarks") != 1 {
		t.Errorf("backend called %d times, want 1", api.Calls("bookmarks"))
	}
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("got %d and %d bookmarks, want 2", len(first), len(second))
	}
}

func TestAllBookmarksRefetchedAfterTTL(t *testing.T) {
	api := newFakeAPI()
	cat, clk := newCatalog(api)
	ctx := context.Background()

	_, _ = cat.AllBookmarks(ctx)
	clk.Advance(5*time.Minute + time.Second)
	_, _ = cat.AllBookmarks(ctx)

	if api.Calls("bookmarks") != 2 {
		t.Errorf("backend called %d times, want 2", api.Calls("bookmarks"))
	}
}

func TestMutationsInvalidateOnSuccess(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog) error
	}{
		{name: "create", mutate: func(c *Catalog) error {
			_, err := c.CreateBookmark(context.Background(), &domain.Session{ID: 1}, map[string]any{})
			return err
		}},
		{name: "update", mutate: func(c *Catalog) error {
			_, err := c.UpdateBookmark(context.Background(), &domain.Session{ID: 1}, 1, map[string]any{})
			return err
		}},
		{name: "delete", mutate: func(c *Catalog) error {
			return c.DeleteBookmark(context.Background(), &domain.Session{ID: 1}, 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			cat, _ := newCatalog(api)
			ctx := context.Background()

			_, _ = cat.AllBookmarks(ctx)
			_, _ = cat.Tags(ctx)
			if err := tt.mutate(cat); err != nil {
				t.Fatalf("mutation error = %v", err)
			}
			_, _ = cat.AllBookmarks(ctx)
			_, _ = cat.Tags(ctx)

			if api.Calls("bookmarks") != 2 || api.Calls("tags") != 2 {
				t.Errorf("after %s: bookmarks=%d tags=%d backend calls, want 2 each",
					tt.name, api.Calls("bookmarks"), api.Calls("tags"))
			}
		})
	}
}

// bodylessBackend accepts writes with an empty body, as some deployments
// answer 201 or 204 without echoing the bookmark.
type bodylessBackend struct {
	mu    sync.Mutex
	count int
	reads int
}

func (b *bodylessBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/bookmarks":
		b.reads++
		items := make([]string, b.count)
		for i := range items {
			items[i] = fmt.Sprintf(`{"id":%d,"title":"b%d"}`, i+1, i+1)
		}
		_, _ = w.Write([]byte("[" + strings.Join(items, ",") + "]"))
	case r.Method == http.MethodPost && r.URL.Path == "/api/bookmarks":
		b.count++
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/bookmarks/"):
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestEmptyWriteResponsesInvalidate(t *testing.T) {
	srv := &bodylessBackend{count: 1}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	cat, _ := newCatalog(backend.New(ts.URL+"/api", 2*time.Second, nil, logger.Nop()))
	ctx := context.Background()
	s := &domain.Session{Token: "tok", ID: 5}

	if list, err := cat.AllBookmarks(ctx); err != nil || len(list) != 1 {
		t.Fatalf("AllBookmarks() = %d, %v", len(list), err)
	}

	b, err := cat.CreateBookmark(ctx, s, map[string]string{"title": "nuevo"})
	if err != nil {
		t.Fatalf("CreateBookmark() error = %v", err)
	}
	if b != nil {
		t.Errorf("CreateBookmark() = %+v, want nil for an empty body", b)
	}
	list, err := cat.AllBookmarks(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("after create: %d bookmarks, %v; want 2 from a fresh read", len(list), err)
	}

	if _, err := cat.UpdateBookmark(ctx, s, 1, map[string]string{"title": "editado"}); err != nil {
		t.Fatalf("UpdateBookmark() error = %v", err)
	}
	_, _ = cat.AllBookmarks(ctx)

	srv.mu.Lock()
	reads := srv.reads
	srv.mu.Unlock()
	if reads != 3 {
		t.Errorf("backend reads = %d, want 3 (one per invalidation)", reads)
	}
	if got := cat.Index().BookmarkCount(); got != 2 {
		t.Errorf("index holds %d bookmarks, want 2", got)
	}
}

func TestFailedMutationKeepsCache(t *testing.T) {
	api := newFakeAPI()
	api.writeErr = apperr.Wrap(apperr.KindValidation, "bad", &backend.APIError{Status: 400})
	cat, _ := newCatalog(api)
	ctx := context.Background()

	_, _ = cat.AllBookmarks(ctx)
	if _, err := cat.CreateBookmark(ctx, &domain.Session{ID: 1}, nil); err == nil {
		t.Fatal("CreateBookmark() should fail")
	}
	if err := cat.DeleteBookmark(ctx, &domain.Session{ID: 1}, 1); err == nil {
		t.Fatal("DeleteBookmark() should fail")
	}
	_, _ = cat.AllBookmarks(ctx)

	if api.Calls("bookmarks") != 1 {
		t.Errorf("failed mutation invalidated the cache: %d backend reads", api.Calls("bookmarks"))
	}
}

func TestUserPlaceholderOn500(t *testing.T) {
	api := newFakeAPI()
	api.userErr = apperr.Wrap(apperr.KindBackend, "", &backend.APIError{Op: "GET /auth/user/9", Status: 500})
	cat, _ := newCatalog(api)
	ctx := context.Background()

	u, err := cat.User(ctx, 9)
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if u.ID != 9 || u.Name != PlaceholderName || u.LastName != PlaceholderLastName {
		t.Errorf("User() = %+v, want placeholder", u)
	}

	_, _ = cat.User(ctx, 9)
	if api.Calls("user") != 1 {
		t.Errorf("placeholder was not cached: %d backend calls", api.Calls("user"))
	}
}

func TestUserOtherErrorsPropagate(t *testing.T) {
	api := newFakeAPI()
	api.userErr = apperr.Wrap(apperr.KindNotFound, "", &backend.APIError{Status: 404})
	cat, _ := newCatalog(api)

	if _, err := cat.User(context.Background(), 9); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("User() error = %v, want not found", err)
	}
}

func TestSearchNeverCachedAndRanked(t *testing.T) {
	api := newFakeAPI()
	api.searchOut = []*domain.Bookmark{
		{ID: 1, Title: "Otro sitio"},
		{ID: 2, Title: "Huerto urbano"},
		{ID: 3, Title: "Huerto"},
	}
	cat, _ := newCatalog(api)
	ctx := context.Background()

	got, err := cat.SearchBookmarks(ctx, "huerto")
	if err != nil {
		t.Fatalf("SearchBookmarks() error = %v", err)
	}
	_, _ = cat.SearchBookmarks(ctx, "huerto")

	if api.Calls("search") != 2 {
		t.Errorf("search calls = %d, want 2 (never cached)", api.Calls("search"))
	}
	want := []int64{3, 2, 1}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: ID %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestBookmarkReadsFeedIndex(t *testing.T) {
	api := newFakeAPI()
	cat, _ := newCatalog(api)
	ctx := context.Background()

	_, _ = cat.AllBookmarks(ctx)
	if cat.Index().BookmarkCount() != 2 || cat.Index().MappedCount() != 1 {
		t.Errorf("index count=%d mapped=%d", cat.Index().BookmarkCount(), cat.Index().MappedCount())
	}

	_, _ = cat.CreateBookmark(ctx, &domain.Session{ID: 1}, nil)
	if _, ok := cat.Index().GetBookmark(3); !ok {
		t.Error("created bookmark missing from index")
	}
	_ = cat.DeleteBookmark(ctx, &domain.Session{ID: 1}, 1)
	if _, ok := cat.Index().GetBookmark(1); ok {
		t.Error("deleted bookmark still in index")
	}
}

func TestRefresh(t *testing.T) {
	api := newFakeAPI()
	cat, _ := newCatalog(api)
	ctx := context.Background()

	_, _ = cat.AllBookmarks(ctx)
	if err := cat.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if api.Calls("bookmarks") != 2 || api.Calls("categories") != 1 || api.Calls("tags") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
	if len(cat.Index().Categories()) != 1 || len(cat.Index().Tags()) != 1 {
		t.Error("refresh did not populate reference data")
	}
}

type failingAPI struct{ *fakeAPI }

func (failingAPI) FetchTags(ctx context.Context) ([]byte, error) {
	return nil, errors.New("down")
}

func TestRefreshReportsFailure(t *testing.T) {
	cat, _ := newCatalog(failingAPI{newFakeAPI()})
	if err := cat.Refresh(context.Background()); err == nil {
		t.Error("Refresh() should fail when one read fails")
	}
}
