package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/core/ports"
	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// SubmissionService turns the coordinator's effective geometry plus
// the form fields into a backend closure record. It is the last line
// of defense: arity is re-checked here regardless of what the UI
// believed, since the two can race.
type SubmissionService struct {
	selection *SelectionService
	backend   ports.ClosureBackend
	journal   ports.SubmissionJournal
	bus       ports.EventBus
}

// NewSubmissionService creates a new SubmissionService. journal may be
// nil when auditing is disabled.
func NewSubmissionService(selection *SelectionService, backend ports.ClosureBackend, journal ports.SubmissionJournal, bus ports.EventBus) *SubmissionService {
	return &SubmissionService{selection: selection, backend: backend, journal: journal, bus: bus}
}

// Submit validates the draft and the live selection, sends the closure
// to the backend (create or update depending on the session kind), and
// closes the session on success. The submission attempt is journaled
// either way.
func (s *SubmissionService) Submit(ctx context.Context, draft domain.ClosureDraft) (*domain.Closure, error) {
	snap, err := s.selection.Snapshot()
	if err != nil {
		return nil, err
	}

	if err := draft.Validate(); err != nil {
		return nil, err
	}

	eff, ok := s.selection.Effective()
	if !ok || len(eff.Coordinates) < snap.Mode.RequiredArity() {
		return nil, &domain.ValidationError{
			Reason:  "arity",
			Message: fmt.Sprintf("%s geometry needs at least %d point(s)", snap.Mode, snap.Mode.RequiredArity()),
		}
	}

	closure, err := s.send(ctx, snap, draft, eff)
	s.record(ctx, snap, eff, closure, err)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("submit closure: %w", err)
	}
	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()

	s.selection.Close()
	s.bus.Publish(domain.TopicClosureSubmitted, domain.ClosureSubmittedEvent{
		ClosureID: closure.ID,
		Routed:    eff.Routed,
	})
	return closure, nil
}

func (s *SubmissionService) send(ctx context.Context, snap domain.SessionSnapshot, draft domain.ClosureDraft, eff domain.EffectiveGeometry) (*domain.Closure, error) {
	if snap.Kind == domain.SessionEdit {
		if snap.ClosureID == "" {
			return nil, &domain.ValidationError{Reason: "closure_id", Message: "edit session has no closure id"}
		}
		return s.backend.Update(ctx, snap.ClosureID, draft, eff)
	}
	return s.backend.Create(ctx, draft, eff)
}

func (s *SubmissionService) record(ctx context.Context, snap domain.SessionSnapshot, eff domain.EffectiveGeometry, closure *domain.Closure, submitErr error) {
	if s.journal == nil {
		return
	}

	rec := &domain.SubmissionRecord{
		Kind:        snap.Kind,
		Mode:        eff.Mode,
		PointCount:  len(eff.Coordinates),
		Routed:      eff.Routed,
		Succeeded:   submitErr == nil,
		SubmittedAt: time.Now(),
	}
	if closure != nil {
		rec.ClosureID = closure.ID
	} else if snap.ClosureID != "" {
		rec.ClosureID = snap.ClosureID
	}
	if submitErr != nil {
		rec.Error = submitErr.Error()
	}

	if err := s.journal.Record(ctx, rec); err != nil {
		slog.Warn("journal submission attempt", "error", err)
	}
}

// History lists journaled submission attempts, newest first.
func (s *SubmissionService) History(ctx context.Context, offset, limit int) ([]domain.SubmissionRecord, int, error) {
	if s.journal == nil {
		return nil, 0, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.journal.List(ctx, offset, limit)
}
