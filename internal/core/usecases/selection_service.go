package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/core/ports"
	"github.com/roadclosures/capture/internal/pkg/geospatial"
	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// SelectionService is the selection coordinator: it owns the singleton
// selection session, decides when routing should run, reconciles
// user-clicked points against routing-engine output, and broadcasts
// every state change so the map, the instruction banner, and the form
// stay consistent without referencing each other.
type SelectionService struct {
	resolver ports.RouteResolver
	bus      ports.EventBus
	profile  domain.TransportProfile

	mu   sync.Mutex
	sess *session
}

// session is the mutable state behind domain.SessionSnapshot. The
// generation counter supersedes in-flight resolves: a resolve result
// is committed only if the generation it was started under is still
// current.
type session struct {
	kind        domain.SessionKind
	closureID   string
	mode        domain.GeometryMode
	state       domain.SessionState
	points      domain.PointSet
	route       *domain.RouteResult
	routeErr    string
	isSelecting bool
	openedAt    time.Time

	generation    uint64
	cancelResolve context.CancelFunc
}

// NewSelectionService creates a coordinator resolving segment routes
// with the given transport profile.
func NewSelectionService(resolver ports.RouteResolver, bus ports.EventBus, profile domain.TransportProfile) *SelectionService {
	if !profile.Valid() {
		profile = domain.ProfileDriving
	}
	return &SelectionService{resolver: resolver, bus: bus, profile: profile}
}

// Open starts a new selection session. Exactly one session may be live
// at a time: opening while another is active fails with
// ErrSessionActive unless force is set, in which case the previous
// session is reset first rather than merged.
func (s *SelectionService) Open(kind domain.SessionKind, closureID string, force bool) (domain.SessionSnapshot, error) {
	s.mu.Lock()

	// The swap from the old session to the new one must be atomic:
	// releasing the lock in between would open a window where a
	// concurrent Open could install a session this one then silently
	// overwrites. Events are collected here and published after.
	var closed *domain.SessionEvent
	if s.sess != nil {
		if !force {
			s.mu.Unlock()
			return domain.SessionSnapshot{}, domain.ErrSessionActive
		}
		closed = &domain.SessionEvent{Kind: s.sess.kind, ClosureID: s.sess.closureID}
		s.dropLocked()
	}

	s.sess = &session{
		kind:        kind,
		closureID:   closureID,
		mode:        domain.ModePoint,
		state:       domain.StateSelecting,
		isSelecting: true,
		openedAt:    time.Now(),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if closed != nil {
		metrics.SessionsForceClosed.Inc()
		s.bus.Publish(domain.TopicSessionClosed, *closed)
	}
	metrics.SessionsOpened.WithLabelValues(string(kind)).Inc()
	s.bus.Publish(domain.TopicSessionOpened, domain.SessionEvent{Kind: kind, ClosureID: closureID})
	return snap, nil
}

// Close destroys the live session. Closing with no session is a no-op.
func (s *SelectionService) Close() {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return
	}
	prev := s.sess
	s.dropLocked()
	s.mu.Unlock()

	s.bus.Publish(domain.TopicSessionClosed, domain.SessionEvent{Kind: prev.kind, ClosureID: prev.closureID})
}

// SetMode switches the geometry mode. Points collected under one arity
// rule are meaningless under the other, so the switch always clears the
// point set and any route before broadcasting.
func (s *SelectionService) SetMode(mode domain.GeometryMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown geometry mode %q", mode)
	}

	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return domain.ErrNoSession
	}
	s.sess.mode = mode
	s.sess.points = nil
	s.invalidateRouteLocked()
	s.sess.state = domain.StateSelecting
	s.mu.Unlock()

	s.bus.Publish(domain.TopicModeChanged, domain.ModeChangedEvent{Mode: mode})
	return nil
}

// StartSelection re-enables point input after Finish. Routing is not
// re-triggered here; only a point mutation does that.
func (s *SelectionService) StartSelection() error {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return domain.ErrNoSession
	}
	s.sess.isSelecting = true
	if s.sess.state == domain.StateReady {
		s.sess.state = domain.StateSelecting
	}
	s.mu.Unlock()

	s.bus.Publish(domain.TopicSelectionResumed, struct{}{})
	return nil
}

// AddPoint feeds one map click into the collector. In point mode the
// new click replaces the sole point; in segment mode it appends. Any
// mutation invalidates the current route before a new resolve starts.
// Clicks while selection is inactive are silently ignored: accepted is
// false and err is nil.
func (s *SelectionService) AddPoint(p domain.GeoPoint) (accepted bool, err error) {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return false, domain.ErrNoSession
	}
	if !s.sess.isSelecting {
		s.mu.Unlock()
		return false, nil
	}

	switch s.sess.mode {
	case domain.ModePoint:
		s.sess.points = domain.PointSet{p}
	default:
		s.sess.points = append(s.sess.points, p)
	}
	s.invalidateRouteLocked()
	s.sess.state = domain.StateSelecting

	pointsEv := domain.PointsChangedEvent{Points: s.sess.points.Clone(), Mode: s.sess.mode}
	resolveStart := s.maybeResolveLocked()
	s.mu.Unlock()

	metrics.PointsAccepted.WithLabelValues(string(pointsEv.Mode)).Inc()
	s.bus.Publish(domain.TopicPointsChanged, pointsEv)
	if resolveStart != nil {
		resolveStart()
	}
	return true, nil
}

// Clear empties the point set and route, leaving the selecting flag
// unchanged. Clearing twice yields the same empty state as once.
func (s *SelectionService) Clear() error {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return domain.ErrNoSession
	}
	s.sess.points = nil
	s.invalidateRouteLocked()
	s.sess.state = domain.StateSelecting
	ev := domain.PointsChangedEvent{Points: nil, Mode: s.sess.mode}
	s.mu.Unlock()

	s.bus.Publish(domain.TopicPointsChanged, ev)
	return nil
}

// Finish ends point collection. The session stays live so the form can
// read the effective geometry and submit.
func (s *SelectionService) Finish() error {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return domain.ErrNoSession
	}
	s.sess.isSelecting = false
	if s.submitEligibleLocked() && s.sess.state != domain.StateRouting {
		s.sess.state = domain.StateReady
	}
	s.mu.Unlock()

	s.bus.Publish(domain.TopicSelectionFinished, struct{}{})
	return nil
}

// Effective derives the geometry that submission would use right now.
// Segment mode prefers the routed path when one exists for the current
// point set; otherwise the raw clicks are used as-is (degraded
// straight-line mode). ok is false when no geometry is derivable.
func (s *SelectionService) Effective() (eff domain.EffectiveGeometry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveLocked()
}

// SubmitEligible reports whether the current selection meets the
// mode's arity rule. Routing outcome does not matter: a failed route
// still submits as a straight-line segment.
func (s *SelectionService) SubmitEligible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitEligibleLocked()
}

// Snapshot returns an immutable view of the live session.
func (s *SelectionService) Snapshot() (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return domain.SessionSnapshot{State: domain.StateIdle}, domain.ErrNoSession
	}
	return s.snapshotLocked(), nil
}

// --- internals (all *Locked methods require s.mu held) ---

func (s *SelectionService) dropLocked() {
	if s.sess.cancelResolve != nil {
		s.sess.cancelResolve()
	}
	s.sess = nil
}

// invalidateRouteLocked discards the current route and cancels any
// resolve in flight. Bumping the generation guarantees a late result
// for the old point set can never be committed.
func (s *SelectionService) invalidateRouteLocked() {
	s.sess.route = nil
	s.sess.routeErr = ""
	s.sess.generation++
	if s.sess.cancelResolve != nil {
		s.sess.cancelResolve()
		s.sess.cancelResolve = nil
	}
}

// maybeResolveLocked starts an implicit resolve when segment mode has
// crossed the two-point threshold. It returns the goroutine launcher
// so the caller can start it after releasing the lock.
func (s *SelectionService) maybeResolveLocked() func() {
	if s.sess.mode != domain.ModeSegment || len(s.sess.points) < 2 {
		return nil
	}

	s.sess.state = domain.StateRouting
	gen := s.sess.generation
	pts := s.sess.points.Clone()
	ctx, cancel := context.WithCancel(context.Background())
	s.sess.cancelResolve = cancel

	return func() { go s.resolve(ctx, gen, pts) }
}

func (s *SelectionService) resolve(ctx context.Context, gen uint64, pts domain.PointSet) {
	route, err := s.resolver.Resolve(ctx, pts, s.profile)

	s.mu.Lock()
	if s.sess == nil || gen != s.sess.generation {
		// Superseded: newer input invalidated this request. Discard
		// unconditionally, never merge, never retry.
		s.mu.Unlock()
		metrics.ResolvesSuperseded.Inc()
		slog.Debug("discarding superseded route result", "points", len(pts))
		return
	}
	s.sess.cancelResolve = nil

	if err != nil {
		s.sess.route = nil
		s.sess.routeErr = err.Error()
		s.sess.state = domain.StateSelecting
		s.mu.Unlock()
		s.bus.Publish(domain.TopicRouteFailed, domain.RouteFailedEvent{Reason: err.Error()})
		return
	}

	s.sess.route = route
	s.sess.routeErr = ""
	s.sess.state = domain.StateReady
	s.mu.Unlock()

	s.bus.Publish(domain.TopicRouteComputed, domain.RouteComputedEvent{Route: route})
}

func (s *SelectionService) effectiveLocked() (domain.EffectiveGeometry, bool) {
	if s.sess == nil || len(s.sess.points) == 0 {
		return domain.EffectiveGeometry{}, false
	}

	if s.sess.mode == domain.ModeSegment && s.sess.route != nil {
		return domain.EffectiveGeometry{
			Mode:        domain.ModeSegment,
			Coordinates: append([]domain.GeoPoint(nil), s.sess.route.Path...),
			Routed:      true,
			DistanceKm:  s.sess.route.DistanceKm,
		}, true
	}

	eff := domain.EffectiveGeometry{
		Mode:        s.sess.mode,
		Coordinates: s.sess.points.Clone(),
	}
	if s.sess.mode == domain.ModeSegment {
		coords := make([][2]float64, len(eff.Coordinates))
		for i, p := range eff.Coordinates {
			coords[i] = [2]float64{p.Lat, p.Lon}
		}
		eff.DistanceKm = geospatial.PathLengthKm(coords)
	}
	return eff, true
}

func (s *SelectionService) submitEligibleLocked() bool {
	if s.sess == nil {
		return false
	}
	if s.sess.mode == domain.ModePoint {
		return len(s.sess.points) == 1
	}
	return len(s.sess.points) >= 2
}

func (s *SelectionService) snapshotLocked() domain.SessionSnapshot {
	sess := s.sess
	var route *domain.RouteResult
	if sess.route != nil {
		r := *sess.route
		route = &r
	}
	return domain.SessionSnapshot{
		Kind:        sess.kind,
		ClosureID:   sess.closureID,
		Mode:        sess.mode,
		State:       sess.state,
		Points:      sess.points.Clone(),
		Route:       route,
		IsSelecting: sess.isSelecting,
		IsRouting:   sess.state == domain.StateRouting,
		RouteError:  sess.routeErr,
		OpenedAt:    sess.openedAt,
	}
}
