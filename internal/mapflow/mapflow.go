// Package mapflow holds the map interaction state of one user: the viewport,
// the pending marker placed by a click and the search box.
package mapflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/geocode"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/wizard"
)

type State int

const (
	Idle State = iota
	PendingPlacement
	Confirmed
)

func (s State) String() string {
	switch s {
	case PendingPlacement:
		return "pending_placement"
	case Confirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const (
	DefaultZoom = 13
	SearchZoom  = 16

	searchTimeout = 10 * time.Second
)

// DefaultCenter is Málaga.
var DefaultCenter = domain.Location{Latitude: 36.7213, Longitude: -4.4214}

// ErrInvalidState is returned for an action the current state does not allow.
var ErrInvalidState = errors.New("invalid map state")

type Viewport struct {
	Center domain.Location `json:"center"`
	Zoom   int             `json:"zoom"`
}

func DefaultViewport() Viewport {
	return Viewport{Center: DefaultCenter, Zoom: DefaultZoom}
}

// Geocoder resolves free text to a place.
type Geocoder interface {
	Search(ctx context.Context, q string) (*geocode.Place, error)
}

// Snapshot is the state the UI renders.
type Snapshot struct {
	State    State            `json:"state"`
	Viewport Viewport         `json:"viewport"`
	Pending  *domain.Location `json:"pending,omitempty"`
	Query    string           `json:"query,omitempty"`
	Place    string           `json:"place,omitempty"`
}

type Options struct {
	Geocoder Geocoder
	Debounce time.Duration
	Strict   bool // passed to wizards opened on confirm
	Logger   logger.Logger
}

// Workflow is safe for concurrent use; debounced searches update it from
// timer goroutines.
type Workflow struct {
	mu       sync.Mutex
	state    State
	viewport Viewport
	pending  *domain.Location
	query    string
	place    string

	geo       Geocoder
	strict    bool
	debouncer *geocode.Debouncer
	log       logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Workflow {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		viewport:  DefaultViewport(),
		geo:       opts.Geocoder,
		strict:    opts.Strict,
		debouncer: geocode.NewDebouncer(opts.Debounce),
		log:       opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{State: w.state, Viewport: w.viewport, Query: w.query, Place: w.place}
	if w.pending != nil {
		p := *w.pending
		s.Pending = &p
	}
	return s
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Click places or moves the temporary marker. Without a session it does
// nothing and reports false. While a placement is confirmed clicks are ignored.
func (w *Workflow) Click(s *domain.Session, p domain.Location) (bool, error) {
	if s == nil {
		return false, nil
	}
	if err := checkPoint(p); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Confirmed {
		return false, nil
	}
	w.state = PendingPlacement
	w.pending = &p
	return true, nil
}

// PlaceAtCurrentLocation is the "at my location" shortcut. It behaves like a
// click and also centers the viewport on the point.
func (w *Workflow) PlaceAtCurrentLocation(s *domain.Session, p domain.Location) (bool, error) {
	placed, err := w.Click(s, p)
	if !placed || err != nil {
		return placed, err
	}
	w.mu.Lock()
	w.viewport.Center = p
	w.mu.Unlock()
	return true, nil
}

// Drag moves the pending marker; the workflow stays pending.
func (w *Workflow) Drag(p domain.Location) error {
	if err := checkPoint(p); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != PendingPlacement {
		return w.stateError("drag")
	}
	w.pending = &p
	return nil
}

// Confirm accepts the pending coordinate and opens a wizard prefilled with it.
func (w *Workflow) Confirm() (*wizard.Wizard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != PendingPlacement || w.pending == nil {
		return nil, w.stateError("confirm")
	}
	w.state = Confirmed
	return wizard.NewAt(*w.pending, w.strict), nil
}

// Cancel drops the pending marker from any state.
func (w *Workflow) Cancel() {
	w.reset()
}

// Complete returns to Idle after the confirmed bookmark was submitted.
func (w *Workflow) Complete() {
	w.reset()
}

func (w *Workflow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = Idle
	w.pending = nil
}

// Search geocodes text and recenters the viewport on the match. An empty
// query or a failed lookup leaves the viewport as it was and is only logged.
func (w *Workflow) Search(ctx context.Context, text string) *geocode.Place {
	text = strings.TrimSpace(text)
	if text == "" {
		w.log.Debug("empty map search ignored")
		return nil
	}
	if w.geo == nil {
		w.log.Warn("map search without geocoder", logger.String("query", text))
		return nil
	}

	place, err := w.geo.Search(ctx, text)
	if err != nil {
		if errors.Is(err, geocode.ErrNoResults) {
			w.log.Info("map search found nothing", logger.String("query", text))
		} else {
			w.log.Warn("map search failed", logger.String("query", text), logger.Error(err))
		}
		return nil
	}

	w.mu.Lock()
	w.viewport = Viewport{Center: place.Location, Zoom: SearchZoom}
	w.query = text
	w.place = place.Name
	w.mu.Unlock()
	return place
}

// Type records the search box text and runs Search once typing pauses.
// Clearing the box cancels any pending search.
func (w *Workflow) Type(text string) {
	w.mu.Lock()
	w.query = text
	w.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		w.debouncer.Stop()
		return
	}
	w.debouncer.Trigger(func() {
		ctx, cancel := context.WithTimeout(w.ctx, searchTimeout)
		defer cancel()
		w.Search(ctx, text)
	})
}

// SearchPending reports whether a debounced search is waiting to run.
func (w *Workflow) SearchPending() bool {
	return w.debouncer.Pending()
}

// Close stops pending searches. The workflow must not be used afterwards.
func (w *Workflow) Close() {
	w.debouncer.Stop()
	w.cancel()
}

func (w *Workflow) stateError(action string) error {
	return apperr.Wrap(apperr.KindConflict,
		fmt.Sprintf("Cannot %s the marker right now.", action),
		fmt.Errorf("%w: %s while %s", ErrInvalidState, action, w.state))
}

func checkPoint(p domain.Location) error {
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return apperr.Validation(map[string]string{"location": "Coordinates are out of range."})
	}
	return nil
}
