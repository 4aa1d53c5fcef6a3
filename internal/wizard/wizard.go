// Package wizard drives the four-step bookmark creation form as an explicit
// state machine. A Wizard is not safe for concurrent use; callers hold it
// behind their own lock.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/media"
	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
	"github.com/MrSnakeDoc/mapmarks/internal/payload"
)

type Step int

const (
	StepBasicInfo Step = iota + 1
	StepAdditionalInfo
	StepPlanning
	StepReview
	Submitted
)

func (s Step) String() string {
	switch s {
	case StepBasicInfo:
		return "basic_info"
	case StepAdditionalInfo:
		return "additional_info"
	case StepPlanning:
		return "planning"
	case StepReview:
		return "review"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type Event string

const (
	EventNext   Event = "next"
	EventBack   Event = "back"
	EventSubmit Event = "submit"
)

const (
	// FailureMessage is shown when a submission fails without a backend message.
	FailureMessage = "Error adding bookmark"

	// RedirectTarget is where the UI goes after a successful submission.
	RedirectTarget = "/bookmarks"
)

// ErrInvalidTransition is returned for an event the current step does not accept.
var ErrInvalidTransition = errors.New("invalid wizard transition")

// Validator returns field messages for the draft; nil or empty means valid.
type Validator func(d *payload.Draft, strict bool) map[string]string

type transitionKey struct {
	from  Step
	event Event
}

type transition struct {
	to       Step
	validate Validator
}

// Back never validates. Submit re-checks every step since the draft can be
// patched after a step was passed.
var transitions = map[transitionKey]transition{
	{StepBasicInfo, EventNext}:      {StepAdditionalInfo, ValidateBasicInfo},
	{StepAdditionalInfo, EventNext}: {StepPlanning, ValidateAdditionalInfo},
	{StepPlanning, EventNext}:       {StepReview, ValidatePlanning},
	{StepAdditionalInfo, EventBack}: {StepBasicInfo, nil},
	{StepPlanning, EventBack}:       {StepAdditionalInfo, nil},
	{StepReview, EventBack}:         {StepPlanning, nil},
	{StepReview, EventSubmit}:       {Submitted, ValidateAll},
}

// Creator persists a built payload.
type Creator interface {
	CreateBookmark(ctx context.Context, s *domain.Session, payload any) (*domain.Bookmark, error)
}

// Result is the outcome of a successful submission.
type Result struct {
	Bookmark *domain.Bookmark `json:"bookmark"`
	Redirect string           `json:"redirect"`
}

type Wizard struct {
	step   Step
	draft  payload.Draft
	strict bool
	errors map[string]string
}

// New starts a wizard on the first step. Strict mode caps the description
// length and requires coordinates.
func New(strict bool) *Wizard {
	return &Wizard{step: StepBasicInfo, strict: strict}
}

// NewAt starts a wizard with the coordinate prefilled, as opened from the map.
func NewAt(loc domain.Location, strict bool) *Wizard {
	w := New(strict)
	w.draft.Latitude = payload.Text(fmt.Sprintf("%g", loc.Latitude))
	w.draft.Longitude = payload.Text(fmt.Sprintf("%g", loc.Longitude))
	return w
}

func (w *Wizard) Step() Step   { return w.step }
func (w *Wizard) Strict() bool { return w.strict }

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() payload.Draft {
	d := w.draft
	d.ImageURLs = append([]string(nil), w.draft.ImageURLs...)
	d.Files = append([]media.File(nil), w.draft.Files...)
	return d
}

// Errors returns the field messages of the last rejected transition.
func (w *Wizard) Errors() map[string]string {
	out := make(map[string]string, len(w.errors))
	for k, v := range w.errors {
		out[k] = v
	}
	return out
}

// Patch carries the draft fields a client wants to change. Nil fields are left as is.
type Patch struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	TagID       *payload.Text `json:"tagId"`
	CategoryID  *payload.Text `json:"categoryId"`
	Latitude    *payload.Text `json:"latitude"`
	Longitude   *payload.Text `json:"longitude"`
	ImageURLs   *[]string     `json:"imageUrls"`
	Video       *string       `json:"video"`
	URL         *string       `json:"url"`
}

// Apply merges p into the draft. A submitted wizard is closed to edits.
func (w *Wizard) Apply(p Patch) error {
	if w.step == Submitted {
		return apperr.Wrap(apperr.KindConflict, "This bookmark was already submitted.", ErrInvalidTransition)
	}
	set(&w.draft.Title, p.Title)
	set(&w.draft.Description, p.Description)
	set(&w.draft.TagID, p.TagID)
	set(&w.draft.CategoryID, p.CategoryID)
	set(&w.draft.Latitude, p.Latitude)
	set(&w.draft.Longitude, p.Longitude)
	set(&w.draft.Video, p.Video)
	set(&w.draft.URL, p.URL)
	if p.ImageURLs != nil {
		w.draft.ImageURLs = append([]string(nil), (*p.ImageURLs)...)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// AttachFiles adds raw images to the draft. Their type is checked when
// leaving the first step.
func (w *Wizard) AttachFiles(files ...media.File) error {
	if w.step == Submitted {
		return apperr.Wrap(apperr.KindConflict, "This bookmark was already submitted.", ErrInvalidTransition)
	}
	w.draft.Files = append(w.draft.Files, files...)
	return nil
}

// ClearFiles drops every attached raw image.
func (w *Wizard) ClearFiles() {
	w.draft.Files = nil
}

// Next advances one step when the current step validates. A rejected
// transition keeps the step and returns a validation error with field messages.
func (w *Wizard) Next() error {
	return w.fire(EventNext)
}

// Back returns to the previous step without validating.
func (w *Wizard) Back() error {
	return w.fire(EventBack)
}

func (w *Wizard) fire(ev Event) error {
	t, ok := transitions[transitionKey{w.step, ev}]
	if !ok {
		metrics.WizardTransitions.WithLabelValues(string(ev), "invalid").Inc()
		return apperr.Wrap(apperr.KindConflict,
			fmt.Sprintf("Cannot %s from step %d.", ev, int(w.step)),
			fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, w.step))
	}
	if t.validate != nil {
		if fields := t.validate(&w.draft, w.strict); len(fields) > 0 {
			w.errors = fields
			metrics.WizardTransitions.WithLabelValues(string(ev), "rejected").Inc()
			return apperr.Validation(fields)
		}
	}
	w.errors = nil
	w.step = t.to
	metrics.WizardTransitions.WithLabelValues(string(ev), "ok").Inc()
	return nil
}

// Submit validates the whole draft, builds the payload and creates the
// bookmark. On failure the wizard stays on the review step with its draft
// intact so the user can retry.
func (w *Wizard) Submit(ctx context.Context, s *domain.Session, b *payload.Builder, c Creator) (*Result, error) {
	if s == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "You must be logged in to add a bookmark.")
	}
	t, ok := transitions[transitionKey{w.step, EventSubmit}]
	if !ok {
		return nil, w.fire(EventSubmit)
	}
	if fields := t.validate(&w.draft, w.strict); len(fields) > 0 {
		w.errors = fields
		metrics.WizardTransitions.WithLabelValues(string(EventSubmit), "rejected").Inc()
		return nil, apperr.Validation(fields)
	}

	p, err := b.Build(ctx, w.draft)
	if err != nil {
		metrics.WizardTransitions.WithLabelValues(string(EventSubmit), "failed").Inc()
		return nil, submitError(err)
	}
	created, err := c.CreateBookmark(ctx, s, p)
	if err != nil {
		metrics.WizardTransitions.WithLabelValues(string(EventSubmit), "failed").Inc()
		return nil, submitError(err)
	}

	w.errors = nil
	w.step = t.to
	w.draft = payload.Draft{}
	metrics.WizardTransitions.WithLabelValues(string(EventSubmit), "ok").Inc()
	return &Result{Bookmark: created, Redirect: RedirectTarget}, nil
}

func submitError(err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.KindValidation {
		return err
	}
	if kind == apperr.KindInternal {
		kind = apperr.KindBackend
	}
	return apperr.Wrap(kind, apperr.MessageOf(err, FailureMessage), err)
}
