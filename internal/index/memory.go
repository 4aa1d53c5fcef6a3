package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
)

// MemoryIndex keeps the latest bookmark snapshot and reference data read from
// the backend. Map views and /infra read from it without touching the cache.
type MemoryIndex struct {
	mu                 sync.RWMutex
	bookmarks          map[int64]*domain.Bookmark // ID -> Bookmark
	order              []int64                    // backend order of bookmarks
	categories         []domain.Category
	tags               []domain.Tag
	lastBookmarkReload time.Time
	lastReferenceLoad  time.Time
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		bookmarks: make(map[int64]*domain.Bookmark),
	}
}

// ─────────────────────────────────────────────────────────────────
// Bookmark methods
// ─────────────────────────────────────────────────────────────────

// UpdateBookmarks replaces all bookmarks in the index, keeping input order
func (idx *MemoryIndex) UpdateBookmarks(bookmarks []*domain.Bookmark) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.bookmarks = make(map[int64]*domain.Bookmark, len(bookmarks))
	idx.order = make([]int64, 0, len(bookmarks))
	for _, bookmark := range bookmarks {
		if bookmark == nil {
			continue
		}
		if _, dup := idx.bookmarks[bookmark.ID]; !dup {
			idx.order = append(idx.order, bookmark.ID)
		}
		idx.bookmarks[bookmark.ID] = bookmark
	}
	idx.lastBookmarkReload = time.Now()
}

// GetBookmark retrieves a bookmark by ID
func (idx *MemoryIndex) GetBookmark(id int64) (*domain.Bookmark, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bookmark, ok := idx.bookmarks[id]
	return bookmark, ok
}

// GetAllBookmarks returns all bookmarks in backend order
func (idx *MemoryIndex) GetAllBookmarks() []*domain.Bookmark {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bookmarks := make([]*domain.Bookmark, 0, len(idx.order))
	for _, id := range idx.order {
		bookmarks = append(bookmarks, idx.bookmarks[id])
	}
	return bookmarks
}

// AddBookmark adds or updates a single bookmark. nil is ignored.
func (idx *MemoryIndex) AddBookmark(bookmark *domain.Bookmark) {
	if bookmark == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.bookmarks[bookmark.ID]; !ok {
		idx.order = append(idx.order, bookmark.ID)
	}
	idx.bookmarks[bookmark.ID] = bookmark
}

// DeleteBookmark removes a bookmark from the index
func (idx *MemoryIndex) DeleteBookmark(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.bookmarks[id]; !ok {
		return
	}
	delete(idx.bookmarks, id)
	for i, v := range idx.order {
		if v == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// BookmarkCount returns the number of bookmarks in the index
func (idx *MemoryIndex) BookmarkCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.bookmarks)
}

// MappedCount returns how many bookmarks carry a location
func (idx *MemoryIndex) MappedCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, b := range idx.bookmarks {
		if b.OnMap() {
			n++
		}
	}
	return n
}

// GetLastBookmarkReload returns the timestamp of the last bookmarks reload
func (idx *MemoryIndex) GetLastBookmarkReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastBookmarkReload
}

// ─────────────────────────────────────────────────────────────────
// Reference data
// ─────────────────────────────────────────────────────────────────

func (idx *MemoryIndex) UpdateCategories(categories []domain.Category) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.categories = append([]domain.Category(nil), categories...)
	idx.lastReferenceLoad = time.Now()
}

func (idx *MemoryIndex) UpdateTags(tags []domain.Tag) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tags = append([]domain.Tag(nil), tags...)
	idx.lastReferenceLoad = time.Now()
}

func (idx *MemoryIndex) Categories() []domain.Category {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return append([]domain.Category(nil), idx.categories...)
}

func (idx *MemoryIndex) Tags() []domain.Tag {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return append([]domain.Tag(nil), idx.tags...)
}

// GetLastReferenceLoad returns when categories or tags were last replaced
func (idx *MemoryIndex) GetLastReferenceLoad() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReferenceLoad
}
