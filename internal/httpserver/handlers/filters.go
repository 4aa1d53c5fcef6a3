package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

type filterResponse struct {
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	Active     bool     `json:"active"`
}

func filterView(sel *domain.FilterSelection) filterResponse {
	cats, tags := sel.Categories(), sel.Tags()
	if cats == nil {
		cats = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	return filterResponse{Categories: cats, Tags: tags, Active: !sel.IsEmpty()}
}

// updateFilter runs fn on the workspace selection and answers with the result.
func updateFilter(d deps.Deps, w http.ResponseWriter, r *http.Request, fn func(sel *domain.FilterSelection)) {
	ws := mw.CurrentWorkspace(r)
	if ws == nil {
		writeError(w, r, d.Logger, apperr.New(apperr.KindInternal, "no workspace bound"))
		return
	}
	var out filterResponse
	_ = ws.Do(func(s *workspace.State) error {
		fn(&s.Filter)
		out = filterView(&s.Filter)
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func GetFilter(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updateFilter(d, w, r, func(*domain.FilterSelection) {})
	}
}

type toggleCategoryRequest struct {
	Category string `json:"category"`
}

// ToggleCategory adds or removes one category; "all" clears the set.
func ToggleCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleCategoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		updateFilter(d, w, r, func(sel *domain.FilterSelection) {
			sel.ToggleCategory(req.Category)
		})
	}
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

func SetTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setTagsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		updateFilter(d, w, r, func(sel *domain.FilterSelection) {
			sel.SetTags(req.Tags)
		})
	}
}

func ClearFilter(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updateFilter(d, w, r, func(sel *domain.FilterSelection) {
			sel.Clear()
		})
	}
}
