package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/payload"
	"github.com/MrSnakeDoc/mapmarks/internal/wizard"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

const reverseTimeout = 3 * time.Second

func viewOptions(d deps.Deps, r *http.Request) domain.ViewOptions {
	opts := domain.ViewOptions{ImageBase: d.ImageBase, Session: mw.Session(r)}
	if d.Style != nil {
		opts.Style = d.Style
	}
	return opts
}

func cardViews(bookmarks []*domain.Bookmark, opts domain.ViewOptions) []domain.CardView {
	out := make([]domain.CardView, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, domain.NewCardView(b, opts))
	}
	return out
}

// selectionFromQuery builds a filter from the category and tag params. The
// second result is false when neither param is present.
func selectionFromQuery(r *http.Request) (domain.FilterSelection, bool) {
	var sel domain.FilterSelection
	categories, tags := queryList(r, "category"), queryList(r, "tag")
	seen := map[string]bool{}
	for _, c := range categories {
		if !seen[c] {
			seen[c] = true
			sel.ToggleCategory(c)
		}
	}
	sel.SetTags(tags)
	return sel, len(categories) > 0 || len(tags) > 0
}

// filtered applies the query filter or, without one, the workspace selection.
func filtered(r *http.Request, bookmarks []*domain.Bookmark) []*domain.Bookmark {
	if sel, ok := selectionFromQuery(r); ok {
		return domain.Filter(sel, bookmarks)
	}
	ws := mw.CurrentWorkspace(r)
	if ws == nil {
		return bookmarks
	}
	var out []*domain.Bookmark
	_ = ws.Do(func(s *workspace.State) error {
		out = domain.Filter(s.Filter, bookmarks)
		return nil
	})
	return out
}

// ListBookmarks returns card views. map=true keeps only placeable bookmarks.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := d.Catalog.AllBookmarks(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		list := filtered(r, all)
		if onMap, _ := strconv.ParseBool(r.URL.Query().Get("map")); onMap {
			list = domain.OnlyOnMap(list)
		}
		writeJSON(w, http.StatusOK, cardViews(list, viewOptions(d, r)))
	}
}

// GetBookmark returns the detail view with a best-effort address.
func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		b, err := d.Catalog.Bookmark(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		var (
			addr   string
			author *domain.User
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			addr = address(ctx, d, b)
			return nil
		})
		g.Go(func() error {
			author = authorOf(ctx, d, b)
			return nil
		})
		_ = g.Wait()

		opts := viewOptions(d, r)
		opts.Address, opts.Author = addr, author
		writeJSON(w, http.StatusOK, domain.NewDetailView(b, opts))
	}
}

func address(ctx context.Context, d deps.Deps, b *domain.Bookmark) string {
	if !b.OnMap() || d.Geocoder == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, reverseTimeout)
	defer cancel()
	addr, err := d.Geocoder.Reverse(ctx, *b.Location)
	if err != nil {
		d.Logger.Debug("reverse geocoding failed", logger.Int64("bookmark_id", b.ID), logger.Error(err))
	}
	return addr
}

// authorOf is best-effort: a missing author leaves the field out.
func authorOf(ctx context.Context, d deps.Deps, b *domain.Bookmark) *domain.User {
	if b.UserID <= 0 {
		return nil
	}
	u, err := d.Catalog.User(ctx, b.UserID)
	if err != nil {
		d.Logger.Debug("author lookup failed", logger.Int64("user_id", b.UserID), logger.Error(err))
		return nil
	}
	return u
}

// draftPayload validates a draft like a wizard submission and builds its body.
func draftPayload(ctx context.Context, d deps.Deps, draft payload.Draft) (*payload.Payload, error) {
	if fields := wizard.ValidateAll(&draft, d.Workspaces.Strict()); len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}
	return d.Payloads.Build(ctx, draft)
}

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft payload.Draft
		if err := decodeJSON(w, r, &draft); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		p, err := draftPayload(r.Context(), d, draft)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		b, err := d.Catalog.CreateBookmark(r.Context(), mw.Session(r), p)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if b == nil {
			w.WriteHeader(http.StatusCreated)
			return
		}
		writeJSON(w, http.StatusCreated, domain.NewDetailView(b, viewOptions(d, r)))
	}
}

// owned fetches the bookmark and checks the caller owns it. The backend
// still authorizes the mutation itself.
func owned(r *http.Request, d deps.Deps) (int64, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, err
	}
	b, err := d.Catalog.Bookmark(r.Context(), id)
	if err != nil {
		return 0, err
	}
	if !domain.CanModify(mw.Session(r), b) {
		return 0, apperr.New(apperr.KindForbidden, "You can only change your own bookmarks.")
	}
	return id, nil
}

func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := owned(r, d)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		var draft payload.Draft
		if err := decodeJSON(w, r, &draft); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		p, err := draftPayload(r.Context(), d, draft)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		b, err := d.Catalog.UpdateBookmark(r.Context(), mw.Session(r), id, p)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if b == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, domain.NewDetailView(b, viewOptions(d, r)))
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := owned(r, d)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if err := d.Catalog.DeleteBookmark(r.Context(), mw.Session(r), id); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
