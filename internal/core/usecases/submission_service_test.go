package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/core/usecases"
	"github.com/roadclosures/capture/internal/events"
)

// --- Mock ClosureBackend ---

type mockBackend struct {
	createFn func(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error)
	updateFn func(ctx context.Context, id string, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error)
}

func (m *mockBackend) Create(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
	if m.createFn != nil {
		return m.createFn(ctx, draft, geom)
	}
	return &domain.Closure{ID: "c-1"}, nil
}

func (m *mockBackend) Update(ctx context.Context, id string, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, draft, geom)
	}
	return &domain.Closure{ID: id}, nil
}

func (m *mockBackend) Get(ctx context.Context, id string) (*domain.Closure, error) {
	return &domain.Closure{ID: id}, nil
}

// --- Mock SubmissionJournal ---

type mockJournal struct {
	records []domain.SubmissionRecord
	listFn  func(ctx context.Context, offset, limit int) ([]domain.SubmissionRecord, int, error)
}

func (m *mockJournal) Record(ctx context.Context, rec *domain.SubmissionRecord) error {
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockJournal) List(ctx context.Context, offset, limit int) ([]domain.SubmissionRecord, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return m.records, len(m.records), nil
}

func validDraft() domain.ClosureDraft {
	return domain.ClosureDraft{
		Description: "Water main repair blocking eastbound traffic",
		ClosureType: domain.ClosureConstruction,
		StartTime:   time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

// --- Tests ---

func TestSubmit_PointClosure(t *testing.T) {
	bus := events.New()
	sel := usecases.NewSelectionService(&mockResolver{}, bus, domain.ProfileDriving)
	openSession(t, sel)
	sel.AddPoint(domain.GeoPoint{Lat: 41.88, Lon: -87.63})

	var gotGeom domain.EffectiveGeometry
	backend := &mockBackend{
		createFn: func(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
			gotGeom = geom
			return &domain.Closure{ID: "c-42", Status: "active"}, nil
		},
	}
	journal := &mockJournal{}
	svc := usecases.NewSubmissionService(sel, backend, journal, bus)

	closure, err := svc.Submit(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if closure.ID != "c-42" {
		t.Errorf("unexpected closure id %s", closure.ID)
	}
	if gotGeom.Mode != domain.ModePoint || len(gotGeom.Coordinates) != 1 {
		t.Errorf("unexpected geometry sent to backend: %+v", gotGeom)
	}

	// Successful submission closes the session.
	if _, err := sel.Snapshot(); err != domain.ErrNoSession {
		t.Errorf("expected session closed after submit, got %v", err)
	}

	if len(journal.records) != 1 || !journal.records[0].Succeeded {
		t.Fatalf("expected one successful journal record, got %+v", journal.records)
	}
	if journal.records[0].ClosureID != "c-42" {
		t.Errorf("journal missing closure id: %+v", journal.records[0])
	}
}

func TestSubmit_ArityRecheckedAtSubmitTime(t *testing.T) {
	bus := events.New()
	sel := usecases.NewSelectionService(&mockResolver{}, bus, domain.ProfileDriving)
	openSession(t, sel)
	sel.SetMode(domain.ModeSegment)
	sel.AddPoint(domain.GeoPoint{Lat: 41.88, Lon: -87.63}) // one point: under arity

	svc := usecases.NewSubmissionService(sel, &mockBackend{}, nil, bus)

	_, err := svc.Submit(context.Background(), validDraft())
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Reason != "arity" {
		t.Errorf("expected arity reason, got %s", ve.Reason)
	}

	// The session must survive a failed validation.
	if _, err := sel.Snapshot(); err != nil {
		t.Errorf("session should still be live: %v", err)
	}
}

func TestSubmit_DegradedSegmentStillSubmits(t *testing.T) {
	bus := events.New()
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, points domain.PointSet, profile domain.TransportProfile) (*domain.RouteResult, error) {
			return nil, errors.New("routing engine unreachable")
		},
	}
	sel := usecases.NewSelectionService(resolver, bus, domain.ProfileDriving)
	openSession(t, sel)
	sel.SetMode(domain.ModeSegment)

	failed := waitFor(bus, domain.TopicRouteFailed)
	sel.AddPoint(domain.GeoPoint{Lat: 41.88, Lon: -87.63})
	sel.AddPoint(domain.GeoPoint{Lat: 41.90, Lon: -87.60})
	recv(t, failed)

	var gotGeom domain.EffectiveGeometry
	backend := &mockBackend{
		createFn: func(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
			gotGeom = geom
			return &domain.Closure{ID: "c-9"}, nil
		},
	}
	journal := &mockJournal{}
	svc := usecases.NewSubmissionService(sel, backend, journal, bus)

	if _, err := svc.Submit(context.Background(), validDraft()); err != nil {
		t.Fatalf("degraded submit: %v", err)
	}
	if gotGeom.Routed {
		t.Error("degraded geometry must not claim to be routed")
	}
	if len(gotGeom.Coordinates) != 2 {
		t.Errorf("expected the 2 raw points, got %d", len(gotGeom.Coordinates))
	}
	if journal.records[0].Routed {
		t.Error("journal must record the straight-line fallback")
	}
}

func TestSubmit_EditSessionUpdates(t *testing.T) {
	bus := events.New()
	sel := usecases.NewSelectionService(&mockResolver{}, bus, domain.ProfileDriving)
	if _, err := sel.Open(domain.SessionEdit, "closure-7", false); err != nil {
		t.Fatalf("open: %v", err)
	}
	sel.AddPoint(domain.GeoPoint{Lat: 41.88, Lon: -87.63})

	updated := false
	backend := &mockBackend{
		updateFn: func(ctx context.Context, id string, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
			updated = true
			if id != "closure-7" {
				t.Errorf("expected update of closure-7, got %s", id)
			}
			return &domain.Closure{ID: id}, nil
		},
	}
	svc := usecases.NewSubmissionService(sel, backend, nil, bus)

	if _, err := svc.Submit(context.Background(), validDraft()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !updated {
		t.Error("edit session must call Update, not Create")
	}
}

func TestSubmit_InvalidDraftBlocks(t *testing.T) {
	bus := events.New()
	sel := usecases.NewSelectionService(&mockResolver{}, bus, domain.ProfileDriving)
	openSession(t, sel)
	sel.AddPoint(domain.GeoPoint{Lat: 41.88, Lon: -87.63})

	svc := usecases.NewSubmissionService(sel, &mockBackend{}, nil, bus)

	draft := validDraft()
	draft.Description = "too short"
	if _, err := svc.Submit(context.Background(), draft); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	draft = validDraft()
	end := draft.StartTime.Add(-time.Hour)
	draft.EndTime = &end
	if _, err := svc.Submit(context.Background(), draft); !domain.IsValidation(err) {
		t.Fatalf("expected time_range validation error, got %v", err)
	}
}

func TestSubmit_BackendFailureJournaled(t *testing.T) {
	bus := events.New()
	sel := usecases.NewSelectionService(&mockResolver{}, bus, domain.ProfileDriving)
	openSession(t, sel)
	sel.AddPoint(domain.GeoPoint{Lat: 41.88, Lon: -87.63})

	backend := &mockBackend{
		createFn: func(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
			return nil, errors.New("backend 503")
		},
	}
	journal := &mockJournal{}
	svc := usecases.NewSubmissionService(sel, backend, journal, bus)

	if _, err := svc.Submit(context.Background(), validDraft()); err == nil {
		t.Fatal("expected submit error")
	}

	if len(journal.records) != 1 || journal.records[0].Succeeded {
		t.Fatalf("expected failed attempt journaled, got %+v", journal.records)
	}

	// The session survives so the user can retry.
	if _, err := sel.Snapshot(); err != nil {
		t.Errorf("session should still be live after backend failure: %v", err)
	}
}

func TestHistory_ClampsLimit(t *testing.T) {
	bus := events.New()
	sel := usecases.NewSelectionService(&mockResolver{}, bus, domain.ProfileDriving)
	journal := &mockJournal{
		listFn: func(ctx context.Context, offset, limit int) ([]domain.SubmissionRecord, int, error) {
			if limit != 50 {
				t.Errorf("expected limit clamped to 50, got %d", limit)
			}
			if offset != 0 {
				t.Errorf("expected offset clamped to 0, got %d", offset)
			}
			return nil, 0, nil
		},
	}
	svc := usecases.NewSubmissionService(sel, &mockBackend{}, journal, bus)

	if _, _, err := svc.History(context.Background(), -3, 9999); err != nil {
		t.Fatalf("history: %v", err)
	}
}
