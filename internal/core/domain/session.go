package domain

import (
	"errors"
	"fmt"
	"time"
)

// SessionKind distinguishes drawing a new closure from editing an
// existing one. The two may never be open at the same time.
type SessionKind string

const (
	SessionCreate SessionKind = "create"
	SessionEdit   SessionKind = "edit"
)

// SessionState is the coordinator's state machine position.
type SessionState string

const (
	// StateIdle: no live session.
	StateIdle SessionState = "idle"
	// StateSelecting: session open, collecting points.
	StateSelecting SessionState = "selecting"
	// StateRouting: segment mode with enough points, resolve in flight.
	StateRouting SessionState = "routing"
	// StateReady: effective geometry computable and submit-eligible.
	StateReady SessionState = "ready"
)

// SessionSnapshot is an immutable view of the live selection session,
// safe to hand to handlers and event subscribers.
type SessionSnapshot struct {
	Kind        SessionKind  `json:"kind"`
	ClosureID   string       `json:"closure_id,omitempty"`
	Mode        GeometryMode `json:"mode"`
	State       SessionState `json:"state"`
	Points      PointSet     `json:"points"`
	Route       *RouteResult `json:"route,omitempty"`
	IsSelecting bool         `json:"is_selecting"`
	IsRouting   bool         `json:"is_routing"`
	RouteError  string       `json:"route_error,omitempty"`
	OpenedAt    time.Time    `json:"opened_at"`
}

var (
	// ErrSessionActive: a second session was requested while one is
	// live. Create and edit sessions are mutually exclusive.
	ErrSessionActive = errors.New("a selection session is already active")

	// ErrNoSession: an operation needs a live session and none exists.
	ErrNoSession = errors.New("no selection session is active")
)

// ValidationError blocks a submission. Reason is a stable machine code
// ("arity", "description", "time_range", ...); Message is for humans.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
