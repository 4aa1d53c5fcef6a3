package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/geocode"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mapmarks/internal/mapflow"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

type mapResponse struct {
	Map    mapflow.Snapshot `json:"map"`
	Placed *bool            `json:"placed,omitempty"`
	Place  *geocode.Place   `json:"place,omitempty"`
	Wizard *wizardView      `json:"wizard,omitempty"`
}

type textRequest struct {
	Text string `json:"text"`
}

// workflow returns the workspace's map. The workflow guards itself, so
// callers use it without holding the workspace lock.
func workflow(r *http.Request) (*mapflow.Workflow, error) {
	ws := mw.CurrentWorkspace(r)
	if ws == nil {
		return nil, apperr.New(apperr.KindInternal, "no workspace bound")
	}
	var m *mapflow.Workflow
	_ = ws.Do(func(s *workspace.State) error {
		m = s.Map
		return nil
	})
	return m, nil
}

func GetMap(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := workflow(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, mapResponse{Map: m.Snapshot()})
	}
}

type placeFunc func(m *mapflow.Workflow, s *domain.Session, p domain.Location) (bool, error)

// place handles click and locate. Anonymous callers get placed=false.
func place(d deps.Deps, fn placeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p domain.Location
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		m, err := workflow(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		placed, err := fn(m, mw.Session(r), p)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, mapResponse{Map: m.Snapshot(), Placed: &placed})
	}
}

func ClickMap(d deps.Deps) http.HandlerFunc {
	return place(d, (*mapflow.Workflow).Click)
}

// LocateMap places the marker at the device position and centers on it.
func LocateMap(d deps.Deps) http.HandlerFunc {
	return place(d, (*mapflow.Workflow).PlaceAtCurrentLocation)
}

func DragMarker(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p domain.Location
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		m, err := workflow(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if err := m.Drag(p); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, mapResponse{Map: m.Snapshot()})
	}
}

// ConfirmPlacement opens the wizard prefilled with the marker position.
func ConfirmPlacement(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := mw.CurrentWorkspace(r)
		if ws == nil {
			writeError(w, r, d.Logger, apperr.New(apperr.KindInternal, "no workspace bound"))
			return
		}
		var resp mapResponse
		err := ws.Do(func(s *workspace.State) error {
			wz, err := s.ConfirmPlacement()
			if err != nil {
				return err
			}
			view := newWizardView(wz)
			resp = mapResponse{Map: s.Map.Snapshot(), Wizard: &view}
			return nil
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func CancelPlacement(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := mw.CurrentWorkspace(r)
		if ws == nil {
			writeError(w, r, d.Logger, apperr.New(apperr.KindInternal, "no workspace bound"))
			return
		}
		var snap mapflow.Snapshot
		_ = ws.Do(func(s *workspace.State) error {
			s.CancelPlacement()
			snap = s.Map.Snapshot()
			return nil
		})
		writeJSON(w, http.StatusOK, mapResponse{Map: snap})
	}
}

// SearchMap geocodes the text now. A miss is not an error; the viewport
// simply stays where it was.
func SearchMap(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		m, err := workflow(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		found := m.Search(r.Context(), req.Text)
		writeJSON(w, http.StatusOK, mapResponse{Map: m.Snapshot(), Place: found})
	}
}

// TypeMap feeds the search box; the lookup runs once typing pauses.
func TypeMap(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		m, err := workflow(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		m.Type(req.Text)
		writeJSON(w, http.StatusAccepted, mapResponse{Map: m.Snapshot()})
	}
}
