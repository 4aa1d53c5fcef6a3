package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/media"
	"github.com/MrSnakeDoc/mapmarks/internal/payload"
	"github.com/MrSnakeDoc/mapmarks/internal/wizard"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

type fileView struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type wizardView struct {
	Step     int               `json:"step"`
	StepName string            `json:"stepName"`
	Strict   bool              `json:"strict"`
	Draft    payload.Draft     `json:"draft"`
	Files    []fileView        `json:"files"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func newWizardView(wz *wizard.Wizard) wizardView {
	draft := wz.Draft()
	files := make([]fileView, 0, len(draft.Files))
	for _, f := range draft.Files {
		files = append(files, fileView{Name: f.Name, Type: f.Detect(), Size: f.Size()})
	}
	return wizardView{
		Step:     int(wz.Step()),
		StepName: wz.Step().String(),
		Strict:   wz.Strict(),
		Draft:    draft,
		Files:    files,
		Errors:   wz.Errors(),
	}
}

// withWizard runs fn on the workspace's open wizard, opening a blank one
// when none exists, and answers with the wizard state. A failed fn answers
// with the error instead.
func withWizard(d deps.Deps, w http.ResponseWriter, r *http.Request, fn func(wz *wizard.Wizard) error) {
	ws := mw.CurrentWorkspace(r)
	if ws == nil {
		writeError(w, r, d.Logger, apperr.New(apperr.KindInternal, "no workspace bound"))
		return
	}
	var view wizardView
	err := ws.Do(func(s *workspace.State) error {
		wz := s.EnsureWizard(d.Workspaces.Strict())
		if err := fn(wz); err != nil {
			return err
		}
		view = newWizardView(wz)
		return nil
	})
	if err != nil {
		writeError(w, r, d.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func GetWizard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withWizard(d, w, r, func(*wizard.Wizard) error { return nil })
	}
}

// StartWizard discards any open draft and starts over on the first step.
func StartWizard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := mw.CurrentWorkspace(r)
		if ws == nil {
			writeError(w, r, d.Logger, apperr.New(apperr.KindInternal, "no workspace bound"))
			return
		}
		var view wizardView
		_ = ws.Do(func(s *workspace.State) error {
			s.DiscardWizard()
			view = newWizardView(s.OpenWizard(d.Workspaces.Strict()))
			return nil
		})
		writeJSON(w, http.StatusCreated, view)
	}
}

func PatchWizard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p wizard.Patch
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		withWizard(d, w, r, func(wz *wizard.Wizard) error { return wz.Apply(p) })
	}
}

// AttachWizardImages adds the "images" parts to the draft. Size is checked
// here; the type is checked when leaving the first step.
func AttachWizardImages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limits := limitsOf(d)
		files, err := readFiles(w, r, "images", imageBatchBytes(limits))
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		for _, f := range files {
			if f.Size() == 0 {
				writeError(w, r, d.Logger, apperr.New(apperr.KindValidation, "Empty files cannot be attached."))
				return
			}
			if limits.MaxImageBytes > 0 && f.Size() > limits.MaxImageBytes {
				_, err := limits.Check(media.KindImage, f)
				writeError(w, r, d.Logger, err)
				return
			}
		}
		withWizard(d, w, r, func(wz *wizard.Wizard) error { return wz.AttachFiles(files...) })
	}
}

func ClearWizardImages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withWizard(d, w, r, func(wz *wizard.Wizard) error {
			wz.ClearFiles()
			return nil
		})
	}
}

func NextStep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withWizard(d, w, r, func(wz *wizard.Wizard) error { return wz.Next() })
	}
}

func PreviousStep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withWizard(d, w, r, func(wz *wizard.Wizard) error { return wz.Back() })
	}
}

// SubmitWizard creates the bookmark from the reviewed draft. On success the
// response carries the created bookmark and where the UI goes next.
func SubmitWizard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := mw.CurrentWorkspace(r)
		if ws == nil {
			writeError(w, r, d.Logger, apperr.New(apperr.KindInternal, "no workspace bound"))
			return
		}
		var res *wizard.Result
		err := ws.Do(func(s *workspace.State) (err error) {
			res, err = s.SubmitWizard(r.Context(), mw.Session(r), d.Payloads, d.Catalog)
			return err
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if res.Bookmark != nil {
			d.Logger.Info("bookmark created via wizard", logger.Int64("bookmark_id", res.Bookmark.ID))
		} else {
			d.Logger.Info("bookmark created via wizard, backend returned no body")
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func DiscardWizard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ws := mw.CurrentWorkspace(r); ws != nil {
			_ = ws.Do(func(s *workspace.State) error {
				s.DiscardWizard()
				return nil
			})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
