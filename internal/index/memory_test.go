package index

import (
	"sync"
	"testing"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
)

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if n := len(index.GetAllBookmarks()); n != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v bookmarks", n)
	}
	if !index.GetLastBookmarkReload().IsZero() {
		t.Error("GetLastBookmarkReload() should be zero before the first update")
	}
}

func TestUpdateBookmarksKeepsOrder(t *testing.T) {
	index := NewMemoryIndex()

	index.UpdateBookmarks([]*domain.Bookmark{
		{ID: 30, Title: "c"},
		{ID: 10, Title: "a"},
		nil,
		{ID: 20, Title: "b"},
	})

	got := index.GetAllBookmarks()
	want := []int64{30, 10, 20}
	if len(got) != len(want) {
		t.Fatalf("GetAllBookmarks() returned %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %d, want %d", i, got[i].ID, id)
		}
	}
	if index.GetLastBookmarkReload().IsZero() {
		t.Error("UpdateBookmarks() should stamp the reload time")
	}
}

func TestUpdateBookmarksOverwrites(t *testing.T) {
	index := NewMemoryIndex()

	index.UpdateBookmarks([]*domain.Bookmark{{ID: 1}})
	index.UpdateBookmarks([]*domain.Bookmark{{ID: 2}, {ID: 3}})

	if _, ok := index.GetBookmark(1); ok {
		t.Error("UpdateBookmarks() should drop bookmarks absent from the new snapshot")
	}
	if index.BookmarkCount() != 2 {
		t.Errorf("BookmarkCount() = %d, want 2", index.BookmarkCount())
	}
}

func TestAddAndDeleteBookmark(t *testing.T) {
	index := NewMemoryIndex()
	index.UpdateBookmarks([]*domain.Bookmark{{ID: 1}, {ID: 2}})

	index.AddBookmark(&domain.Bookmark{ID: 3, Title: "new"})
	index.AddBookmark(&domain.Bookmark{ID: 1, Title: "updated"})

	if b, _ := index.GetBookmark(1); b.Title != "updated" {
		t.Errorf("AddBookmark() did not replace existing entry, got %q", b.Title)
	}

	index.DeleteBookmark(2)
	index.DeleteBookmark(404)

	got := index.GetAllBookmarks()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("GetAllBookmarks() after delete = %v", got)
	}
}

func TestMappedCount(t *testing.T) {
	index := NewMemoryIndex()
	index.UpdateBookmarks([]*domain.Bookmark{
		{ID: 1, Location: &domain.Location{Latitude: 1, Longitude: 1}},
		{ID: 2},
	})
	if got := index.MappedCount(); got != 1 {
		t.Errorf("MappedCount() = %d, want 1", got)
	}
}

func TestReferenceData(t *testing.T) {
	index := NewMemoryIndex()
	cats := []domain.Category{{ID: 1, Name: "Conflictos"}}
	index.UpdateCategories(cats)
	index.UpdateTags([]domain.Tag{{ID: 2, Name: "Vivienda"}})

	cats[0].Name = "mutated"
	if got := index.Categories(); len(got) != 1 || got[0].Name != "Conflictos" {
		t.Errorf("Categories() = %v, index must hold its own copy", got)
	}
	if got := index.Tags(); len(got) != 1 || got[0].Name != "Vivienda" {
		t.Errorf("Tags() = %v", got)
	}
	if index.GetLastReferenceLoad().IsZero() {
		t.Error("reference load time not stamped")
	}
}

func TestConcurrentAccess(t *testing.T) {
	index := NewMemoryIndex()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			index.UpdateBookmarks([]*domain.Bookmark{{ID: int64(i)}})
			index.AddBookmark(&domain.Bookmark{ID: int64(100 + i)})
			_ = index.GetAllBookmarks()
			_ = index.MappedCount()
			index.DeleteBookmark(int64(i))
		}(i)
	}
	wg.Wait()
}
