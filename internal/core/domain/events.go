package domain

// Event topics broadcast by the selection coordinator. Delivery is
// synchronous, in-process, best-effort: a subscriber that attaches
// after an event fired will not receive it retroactively.
const (
	TopicPointsChanged     = "points.changed"
	TopicRouteComputed     = "route.computed"
	TopicRouteFailed       = "route.failed"
	TopicSelectionFinished = "selection.finished"
	TopicSelectionResumed  = "selection.resumed"
	TopicModeChanged       = "mode.changed"
	TopicSessionOpened     = "session.opened"
	TopicSessionClosed     = "session.closed"
	TopicClosureSubmitted  = "closure.submitted"
)

// PointsChangedEvent carries the new point set after a mutation.
type PointsChangedEvent struct {
	Points PointSet     `json:"points"`
	Mode   GeometryMode `json:"mode"`
}

// RouteComputedEvent carries a freshly committed route.
type RouteComputedEvent struct {
	Route *RouteResult `json:"route"`
}

// RouteFailedEvent carries the human-readable reason routing failed.
// The session stays submit-eligible with straight-line geometry.
type RouteFailedEvent struct {
	Reason string `json:"reason"`
}

// ModeChangedEvent announces a geometry mode switch. The switch always
// clears points and route.
type ModeChangedEvent struct {
	Mode GeometryMode `json:"mode"`
}

// SessionEvent announces a session opening or closing.
type SessionEvent struct {
	Kind      SessionKind `json:"kind"`
	ClosureID string      `json:"closure_id,omitempty"`
}

// ClosureSubmittedEvent announces a successful submission.
type ClosureSubmittedEvent struct {
	ClosureID string `json:"closure_id"`
	Routed    bool   `json:"routed"`
}
