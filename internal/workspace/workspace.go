// Package workspace keeps the per-user interaction state (wizard draft, map
// workflow, filter selection) in memory between HTTP requests.
package workspace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/mapflow"
	"github.com/MrSnakeDoc/mapmarks/internal/payload"
	"github.com/MrSnakeDoc/mapmarks/internal/wizard"
)

// State is the mutable part of a workspace, only reachable under its lock.
type State struct {
	Wizard *wizard.Wizard // nil when no wizard is open
	Map    *mapflow.Workflow
	Filter domain.FilterSelection

	wizardFromMap bool
}

type Workspace struct {
	ID string

	mu    sync.Mutex
	state State

	// unix nanos, read by the sweeper without taking mu
	lastSeen atomic.Int64
}

// Do runs fn with the workspace locked.
func (w *Workspace) Do(fn func(s *State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(&w.state)
}

// EnsureWizard returns the open wizard or opens a blank one.
func (s *State) EnsureWizard(strict bool) *wizard.Wizard {
	if s.Wizard == nil {
		s.Wizard = wizard.New(strict)
		s.wizardFromMap = false
	}
	return s.Wizard
}

// OpenWizard replaces any open wizard with a blank one.
func (s *State) OpenWizard(strict bool) *wizard.Wizard {
	s.Wizard = wizard.New(strict)
	s.wizardFromMap = false
	return s.Wizard
}

// ConfirmPlacement confirms the pending map marker and opens the wizard
// prefilled with its coordinate.
func (s *State) ConfirmPlacement() (*wizard.Wizard, error) {
	wz, err := s.Map.Confirm()
	if err != nil {
		return nil, err
	}
	s.Wizard = wz
	s.wizardFromMap = true
	return wz, nil
}

// CancelPlacement resets the map and drops a wizard opened from it.
func (s *State) CancelPlacement() {
	s.Map.Cancel()
	if s.wizardFromMap {
		s.Wizard = nil
		s.wizardFromMap = false
	}
}

// DiscardWizard drops the draft. A map placement that opened it goes back to idle.
func (s *State) DiscardWizard() {
	if s.wizardFromMap {
		s.Map.Cancel()
	}
	s.Wizard = nil
	s.wizardFromMap = false
}

// SubmitWizard submits the open wizard. On success the wizard is closed and
// the map returns to idle; on failure everything is kept for a retry.
func (s *State) SubmitWizard(ctx context.Context, sess *domain.Session, b *payload.Builder, c wizard.Creator) (*wizard.Result, error) {
	if s.Wizard == nil {
		return nil, apperr.New(apperr.KindNotFound, "No bookmark is being created.")
	}
	res, err := s.Wizard.Submit(ctx, sess, b, c)
	if err != nil {
		return nil, err
	}
	if s.wizardFromMap {
		s.Map.Complete()
	}
	s.Wizard = nil
	s.wizardFromMap = false
	return res, nil
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastSeen.Load()))
}

func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Map.Close()
	w.state.Wizard = nil
}
