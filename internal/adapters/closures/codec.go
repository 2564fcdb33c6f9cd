// Package closures implements ports.ClosureBackend against the
// road-closure backend API, including the GeoJSON wire codec.
package closures

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roadclosures/capture/internal/core/domain"
)

// The backend stores coordinates rounded to 5 decimal places (~1 m).
const coordPrecision = 1e5

func round5(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}

// EncodeGeometry converts an effective geometry into the backend's
// GeoJSON shape. Two contracts live here and are easy to miss:
//   - internal points are (lat, lon); the wire is [lon, lat] pairs
//   - the backend always takes the array-of-arrays form, so a Point is
//     written as [[lon, lat]], not [lon, lat]
func EncodeGeometry(eff domain.EffectiveGeometry) (json.RawMessage, error) {
	if len(eff.Coordinates) < eff.Mode.RequiredArity() {
		return nil, &domain.ValidationError{
			Reason:  "arity",
			Message: fmt.Sprintf("%s geometry needs at least %d point(s), got %d", eff.Mode, eff.Mode.RequiredArity(), len(eff.Coordinates)),
		}
	}

	if eff.Mode == domain.ModeSegment {
		line := make(orb.LineString, len(eff.Coordinates))
		for i, p := range eff.Coordinates {
			line[i] = orb.Point{round5(p.Lon), round5(p.Lat)}
		}
		return json.Marshal(geojson.NewGeometry(line))
	}

	p := eff.Coordinates[0]
	return json.Marshal(map[string]any{
		"type":        "Point",
		"coordinates": [][]float64{{round5(p.Lon), round5(p.Lat)}},
	})
}

// DecodeGeometry normalizes a backend geometry into domain points.
// Standard GeoJSON is handled by orb; the nested Point variant some
// backend builds emit ([[lon, lat]] instead of [lon, lat]) is
// unwrapped by hand since it is not valid GeoJSON.
func DecodeGeometry(raw json.RawMessage) (domain.EffectiveGeometry, error) {
	if g, err := geojson.UnmarshalGeometry(raw); err == nil {
		switch geom := g.Geometry().(type) {
		case orb.Point:
			return domain.EffectiveGeometry{
				Mode:        domain.ModePoint,
				Coordinates: []domain.GeoPoint{{Lat: geom.Lat(), Lon: geom.Lon()}},
			}, nil
		case orb.LineString:
			pts := make([]domain.GeoPoint, len(geom))
			for i, p := range geom {
				pts[i] = domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
			}
			return domain.EffectiveGeometry{Mode: domain.ModeSegment, Coordinates: pts}, nil
		default:
			return domain.EffectiveGeometry{}, fmt.Errorf("unsupported geometry type %T", geom)
		}
	}

	// Fall back to the nested-point shape.
	var wrapped struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return domain.EffectiveGeometry{}, fmt.Errorf("malformed geometry: %w", err)
	}
	if wrapped.Type != "Point" || len(wrapped.Coordinates) != 1 || len(wrapped.Coordinates[0]) < 2 {
		return domain.EffectiveGeometry{}, fmt.Errorf("unrecognized geometry shape %q", wrapped.Type)
	}
	c := wrapped.Coordinates[0]
	return domain.EffectiveGeometry{
		Mode:        domain.ModePoint,
		Coordinates: []domain.GeoPoint{{Lat: c[1], Lon: c[0]}},
	}, nil
}

// closureWire is the create/update request body.
type closureWire struct {
	Geometry        json.RawMessage    `json:"geometry"`
	Description     string             `json:"description"`
	ClosureType     domain.ClosureType `json:"closure_type"`
	StartTime       string             `json:"start_time"`
	EndTime         *string            `json:"end_time,omitempty"`
	Source          string             `json:"source,omitempty"`
	ConfidenceLevel int                `json:"confidence_level,omitempty"`
	// Routed distinguishes a path-snapped segment from the
	// straight-line fallback so downstream consumers can tell them
	// apart.
	Routed bool `json:"routed"`
}

// BuildPayload assembles the wire body for a create or update call.
func BuildPayload(draft domain.ClosureDraft, eff domain.EffectiveGeometry) ([]byte, error) {
	geom, err := EncodeGeometry(eff)
	if err != nil {
		return nil, err
	}

	wire := closureWire{
		Geometry:        geom,
		Description:     draft.Description,
		ClosureType:     draft.ClosureType,
		StartTime:       draft.StartTime.UTC().Format(timeLayout),
		Source:          draft.Source,
		ConfidenceLevel: draft.ConfidenceLevel,
		Routed:          eff.Routed,
	}
	if draft.EndTime != nil {
		s := draft.EndTime.UTC().Format(timeLayout)
		wire.EndTime = &s
	}
	return json.Marshal(wire)
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
