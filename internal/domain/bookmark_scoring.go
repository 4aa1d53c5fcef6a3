package domain

import (
	"sort"
	"strings"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier is better)
	ScorePositionBonus = 10.0

	// Exact title match bonus
	ScoreExactTitleBonus = 200.0

	// Description hits count for a fraction of a title hit
	ScoreDescriptionWeight = 0.2
)

// BookmarkCandidate represents a bookmark with its match score
type BookmarkCandidate struct {
	Bookmark *Bookmark
	Score    float64
}

// ScoreBookmark calculates how well a bookmark's title (and, weakly, its
// description) matches a free-text query. Comparison is accent-insensitive.
func ScoreBookmark(queryStr string, bookmark *Bookmark) float64 {
	if bookmark == nil {
		return 0.0
	}
	query := NormalizeName(queryStr)
	if query == "" {
		return 0.0
	}

	score := scoreText(query, NormalizeName(bookmark.Title), true)
	if desc := NormalizeName(bookmark.Description); desc != "" && strings.Contains(desc, query) {
		score += ScoreSubstringMatch * ScoreDescriptionWeight
	}
	return score
}

func scoreText(query, text string, exactBonus bool) float64 {
	if text == "" {
		return 0.0
	}

	// Exact match (highest score)
	if query == text {
		if exactBonus {
			return ScoreExactMatch + ScoreExactTitleBonus
		}
		return ScoreExactMatch
	}

	// Prefix match
	if strings.HasPrefix(text, query) {
		return ScorePrefixMatch
	}

	// Substring match, earlier is better
	if index := strings.Index(text, query); index >= 0 {
		substringBonus := ScorePositionBonus * (1.0 - float64(index)/float64(len(text)))
		return ScoreSubstringMatch + substringBonus
	}

	// Word-based: every query word appears somewhere
	queryWords := strings.Fields(query)
	if len(queryWords) > 1 {
		allMatch := true
		for _, word := range queryWords {
			if !strings.Contains(text, word) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return ScoreFuzzyMatch
		}
	}

	// Character similarity
	similarity := calculateSimilarity(query, text)
	if similarity > 0.5 {
		return ScoreFuzzyMatch * similarity
	}

	return 0.0
}

// calculateSimilarity is the ratio of query runes present in text.
func calculateSimilarity(query, text string) float64 {
	if query == "" || text == "" {
		return 0.0
	}
	matches, total := 0, 0
	for _, c := range query {
		if c == ' ' {
			continue
		}
		total++
		if strings.ContainsRune(text, c) {
			matches++
		}
	}
	if total == 0 {
		return 0.0
	}
	return float64(matches) / float64(total)
}

// RankBookmarkCandidates scores bookmarks against the query, drops
// non-matches and sorts by descending score. Ties keep input order.
func RankBookmarkCandidates(queryStr string, bookmarks []*Bookmark) []*BookmarkCandidate {
	candidates := make([]*BookmarkCandidate, 0, len(bookmarks))

	for _, bookmark := range bookmarks {
		score := ScoreBookmark(queryStr, bookmark)
		if score == 0.0 {
			continue
		}
		candidates = append(candidates, &BookmarkCandidate{
			Bookmark: bookmark,
			Score:    score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}

// RankBookmarks returns the matching bookmarks in score order.
func RankBookmarks(queryStr string, bookmarks []*Bookmark) []*Bookmark {
	candidates := RankBookmarkCandidates(queryStr, bookmarks)
	out := make([]*Bookmark, len(candidates))
	for i, c := range candidates {
		out[i] = c.Bookmark
	}
	return out
}
