package mapflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/geocode"
	"github.com/MrSnakeDoc/mapmarks/internal/wizard"
)

var (
	session = &domain.Session{Token: "tok", ID: 1}
	plaza   = domain.Location{Latitude: 36.7236, Longitude: -4.4180}
)

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	place   *geocode.Place
	err     error
}

func (f *fakeGeocoder) Search(_ context.Context, q string) (*geocode.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.place, nil
}

func (f *fakeGeocoder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func TestClickWithoutSessionIsNoop(t *testing.T) {
	w := New(Options{})
	placed, err := w.Click(nil, plaza)
	if placed || err != nil {
		t.Fatalf("Click(nil) = %v, %v", placed, err)
	}
	snap := w.Snapshot()
	if snap.State != Idle || snap.Pending != nil {
		t.Errorf("Snapshot() = %+v, want idle without marker", snap)
	}
	if _, err := w.Confirm(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Confirm() error = %v, no form should open", err)
	}
}

func TestPlacementLifecycle(t *testing.T) {
	w := New(Options{})

	if placed, err := w.Click(session, plaza); !placed || err != nil {
		t.Fatalf("Click() = %v, %v", placed, err)
	}
	moved := domain.Location{Latitude: 36.72, Longitude: -4.41}
	if err := w.Drag(moved); err != nil {
		t.Fatalf("Drag() error = %v", err)
	}
	if snap := w.Snapshot(); snap.State != PendingPlacement || *snap.Pending != moved {
		t.Errorf("after drag = %+v", snap)
	}

	wz, err := w.Confirm()
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if wz.Step() != wizard.StepBasicInfo || wz.Draft().Latitude != "36.72" || wz.Draft().Longitude != "-4.41" {
		t.Errorf("wizard draft = %+v", wz.Draft())
	}
	if w.State() != Confirmed {
		t.Errorf("State() = %v", w.State())
	}

	if placed, _ := w.Click(session, plaza); placed {
		t.Error("click while confirmed should be ignored")
	}
	if err := w.Drag(plaza); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Drag() while confirmed error = %v", err)
	}

	w.Complete()
	if snap := w.Snapshot(); snap.State != Idle || snap.Pending != nil {
		t.Errorf("after complete = %+v", snap)
	}
}

func TestCancelFromPending(t *testing.T) {
	w := New(Options{})
	_, _ = w.Click(session, plaza)
	w.Cancel()
	if w.State() != Idle {
		t.Errorf("State() = %v", w.State())
	}
	if err := w.Drag(plaza); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("Drag() after cancel error = %v", err)
	}
}

func TestOutOfRangePoint(t *testing.T) {
	w := New(Options{})
	_, err := w.Click(session, domain.Location{Latitude: 91})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("Click() error = %v", err)
	}
}

func TestPlaceAtCurrentLocation(t *testing.T) {
	w := New(Options{})
	if placed, _ := w.PlaceAtCurrentLocation(nil, plaza); placed {
		t.Error("should be a no-op without session")
	}
	if placed, err := w.PlaceAtCurrentLocation(session, plaza); !placed || err != nil {
		t.Fatalf("PlaceAtCurrentLocation() = %v, %v", placed, err)
	}
	snap := w.Snapshot()
	if snap.State != PendingPlacement || snap.Viewport.Center != plaza || snap.Viewport.Zoom != DefaultZoom {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		geo      *fakeGeocoder
		wantView Viewport
	}{
		{
			name:     "found recenters",
			query:    "Plaza de la Merced",
			geo:      &fakeGeocoder{place: &geocode.Place{Name: "Plaza", Location: plaza}},
			wantView: Viewport{Center: plaza, Zoom: SearchZoom},
		},
		{
			name:     "no results keeps view",
			query:    "nowhere",
			geo:      &fakeGeocoder{err: geocode.ErrNoResults},
			wantView: DefaultViewport(),
		},
		{
			name:     "failure keeps view",
			query:    "Málaga",
			geo:      &fakeGeocoder{err: errors.New("boom")},
			wantView: DefaultViewport(),
		},
		{
			name:     "empty query skips lookup",
			query:    "   ",
			geo:      &fakeGeocoder{},
			wantView: DefaultViewport(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(Options{Geocoder: tt.geo})
			w.Search(context.Background(), tt.query)
			if got := w.Snapshot().Viewport; got != tt.wantView {
				t.Errorf("Viewport = %+v, want %+v", got, tt.wantView)
			}
		})
	}
}

func TestTypeDebouncesSearch(t *testing.T) {
	geo := &fakeGeocoder{place: &geocode.Place{Name: "Málaga", Location: plaza}}
	w := New(Options{Geocoder: geo, Debounce: 20 * time.Millisecond})
	defer w.Close()

	for _, q := range []string{"M", "Má", "Mál", "Málaga"} {
		w.Type(q)
	}

	deadline := time.Now().Add(time.Second)
	for w.SearchPending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	calls := geo.calls()
	if len(calls) != 1 || calls[0] != "Málaga" {
		t.Fatalf("geocoder calls = %v, want only the last query", calls)
	}
	if got := w.Snapshot().Viewport.Zoom; got != SearchZoom {
		t.Errorf("Zoom = %d, want %d", got, SearchZoom)
	}
}

func TestTypeEmptyCancels(t *testing.T) {
	geo := &fakeGeocoder{place: &geocode.Place{Location: plaza}}
	w := New(Options{Geocoder: geo, Debounce: 20 * time.Millisecond})
	defer w.Close()

	w.Type("Málaga")
	w.Type("")
	time.Sleep(60 * time.Millisecond)
	if calls := geo.calls(); len(calls) != 0 {
		t.Errorf("geocoder calls = %v, want none", calls)
	}
}
