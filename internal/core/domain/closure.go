package domain

import (
	"strings"
	"time"
)

// ClosureType categorizes why a road is closed.
type ClosureType string

const (
	ClosureConstruction ClosureType = "construction"
	ClosureAccident     ClosureType = "accident"
	ClosureEvent        ClosureType = "event"
	ClosureMaintenance  ClosureType = "maintenance"
	ClosureWeather      ClosureType = "weather"
	ClosureOther        ClosureType = "other"
)

// Valid reports whether t is a known closure type.
func (t ClosureType) Valid() bool {
	switch t {
	case ClosureConstruction, ClosureAccident, ClosureEvent,
		ClosureMaintenance, ClosureWeather, ClosureOther:
		return true
	}
	return false
}

// ClosureDraft holds the form fields collected alongside the geometry.
// Geometry is deliberately absent: it comes from the selection session
// at submit time.
type ClosureDraft struct {
	Description     string      `json:"description"`
	ClosureType     ClosureType `json:"closure_type"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	Source          string      `json:"source,omitempty"`
	ConfidenceLevel int         `json:"confidence_level,omitempty"` // 1-10, 0 = unset
}

// Validate applies the backend's field rules locally so a bad draft
// fails before the geometry is even considered.
func (d *ClosureDraft) Validate() error {
	desc := strings.TrimSpace(d.Description)
	if len(desc) < 10 || len(desc) > 1000 {
		return &ValidationError{Reason: "description", Message: "description must be 10-1000 characters"}
	}
	if !d.ClosureType.Valid() {
		return &ValidationError{Reason: "closure_type", Message: "unknown closure type: " + string(d.ClosureType)}
	}
	if d.StartTime.IsZero() {
		return &ValidationError{Reason: "start_time", Message: "start_time is required"}
	}
	if d.EndTime != nil && !d.EndTime.After(d.StartTime) {
		return &ValidationError{Reason: "time_range", Message: "end_time must be after start_time"}
	}
	if d.ConfidenceLevel != 0 && (d.ConfidenceLevel < 1 || d.ConfidenceLevel > 10) {
		return &ValidationError{Reason: "confidence_level", Message: "confidence_level must be 1-10"}
	}
	if len(d.Source) > 100 {
		return &ValidationError{Reason: "source", Message: "source must be at most 100 characters"}
	}
	return nil
}

// Closure is the backend's record of a submitted closure.
type Closure struct {
	ID              string            `json:"id"`
	Geometry        EffectiveGeometry `json:"geometry"`
	Description     string            `json:"description"`
	ClosureType     ClosureType       `json:"closure_type"`
	Status          string            `json:"status"`
	OpenLRCode      string            `json:"openlr_code,omitempty"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         *time.Time        `json:"end_time,omitempty"`
	Source          string            `json:"source,omitempty"`
	ConfidenceLevel int               `json:"confidence_level,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SubmissionRecord is one journaled submission attempt.
type SubmissionRecord struct {
	ID          string       `json:"id"`
	ClosureID   string       `json:"closure_id,omitempty"`
	Kind        SessionKind  `json:"kind"`
	Mode        GeometryMode `json:"mode"`
	PointCount  int          `json:"point_count"`
	Routed      bool         `json:"routed"`
	Succeeded   bool         `json:"succeeded"`
	Error       string       `json:"error,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
