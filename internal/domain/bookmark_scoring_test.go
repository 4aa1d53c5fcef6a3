package domain

import "testing"

func TestScoreBookmark(t *testing.T) {
	tests := []struct {
		name           string
		queryStr       string
		title          string
		expectPositive bool
	}{
		{
			name:           "exact match",
			queryStr:       "huerto urbano",
			title:          "Huerto Urbano",
			expectPositive: true,
		},
		{
			name:           "prefix match",
			queryStr:       "huerto",
			title:          "Huerto Urbano",
			expectPositive: true,
		},
		{
			name:           "substring match",
			queryStr:       "urbano",
			title:          "Huerto Urbano",
			expectPositive: true,
		},
		{
			name:           "accent insensitive",
			queryStr:       "plaza de la constitucion",
			title:          "Plaza de la Constitución",
			expectPositive: true,
		},
		{
			name:           "no match",
			queryStr:       "xyz",
			title:          "Huerto Urbano",
			expectPositive: false,
		},
		{
			name:           "empty query",
			queryStr:       "  ",
			title:          "Huerto Urbano",
			expectPositive: false,
		},
		{
			name:           "multi-word out of order",
			queryStr:       "urbano huerto",
			title:          "Huerto Urbano",
			expectPositive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookmark := &Bookmark{ID: 1, Title: tt.title}

			score := ScoreBookmark(tt.queryStr, bookmark)

			if tt.expectPositive && score <= 0 {
				t.Errorf("Expected positive score, got %f", score)
			}

			if !tt.expectPositive && score > 0 {
				t.Errorf("Expected zero score, got %f", score)
			}
		})
	}
}

func TestScoreBookmarkOrdering(t *testing.T) {
	exact := ScoreBookmark("huerto", &Bookmark{Title: "Huerto"})
	prefix := ScoreBookmark("huerto", &Bookmark{Title: "Huerto Urbano"})
	substring := ScoreBookmark("huerto", &Bookmark{Title: "El Huerto"})

	if !(exact > prefix && prefix > substring) {
		t.Errorf("want exact > prefix > substring, got %f, %f, %f", exact, prefix, substring)
	}
}

func TestRankBookmarks(t *testing.T) {
	bookmarks := []*Bookmark{
		{ID: 1, Title: "Playa"},
		{ID: 2, Title: "Huerto comunitario"},
		{ID: 3, Title: "Huerto"},
		{ID: 4, Title: "Calle Larga", Description: "Antiguo huerto reconvertido"},
	}

	got := RankBookmarks("huerto", bookmarks)

	wantOrder := []int64{3, 2, 4}
	if len(got) != len(wantOrder) {
		t.Fatalf("RankBookmarks() returned %d results, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: got ID %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestRankBookmarkCandidatesNil(t *testing.T) {
	if got := RankBookmarkCandidates("anything", nil); len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}
