package closures_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/roadclosures/capture/internal/adapters/closures"
	"github.com/roadclosures/capture/internal/core/domain"
)

func TestEncodeGeometry_SegmentSwapsLatLon(t *testing.T) {
	eff := domain.EffectiveGeometry{
		Mode: domain.ModeSegment,
		Coordinates: []domain.GeoPoint{
			{Lat: 41.87810, Lon: -87.62980},
			{Lat: 41.87850, Lon: -87.62900},
		},
	}

	raw, err := closures.EncodeGeometry(eff)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var wire struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Type != "LineString" {
		t.Errorf("expected LineString, got %s", wire.Type)
	}
	// Wire pairs are [lon, lat].
	if wire.Coordinates[0][0] != -87.62980 || wire.Coordinates[0][1] != 41.87810 {
		t.Errorf("lat/lon not swapped on write: %v", wire.Coordinates[0])
	}
}

func TestEncodeGeometry_PointUsesArrayOfArrays(t *testing.T) {
	eff := domain.EffectiveGeometry{
		Mode:        domain.ModePoint,
		Coordinates: []domain.GeoPoint{{Lat: 41.88, Lon: -87.63}},
	}

	raw, err := closures.EncodeGeometry(eff)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var wire struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("point must be encoded as array-of-arrays: %v", err)
	}
	if wire.Type != "Point" || len(wire.Coordinates) != 1 {
		t.Fatalf("unexpected wire shape: %+v", wire)
	}
	if wire.Coordinates[0][0] != -87.63 || wire.Coordinates[0][1] != 41.88 {
		t.Errorf("unexpected point pair: %v", wire.Coordinates[0])
	}
}

func TestEncodeGeometry_RoundsToFiveDecimals(t *testing.T) {
	eff := domain.EffectiveGeometry{
		Mode:        domain.ModePoint,
		Coordinates: []domain.GeoPoint{{Lat: 41.123456789, Lon: -87.987654321}},
	}

	raw, _ := closures.EncodeGeometry(eff)
	var wire struct {
		Coordinates [][]float64 `json:"coordinates"`
	}
	_ = json.Unmarshal(raw, &wire)

	if wire.Coordinates[0][1] != 41.12346 || wire.Coordinates[0][0] != -87.98765 {
		t.Errorf("expected 5-decimal rounding, got %v", wire.Coordinates[0])
	}
}

func TestEncodeGeometry_UnderArity(t *testing.T) {
	eff := domain.EffectiveGeometry{
		Mode:        domain.ModeSegment,
		Coordinates: []domain.GeoPoint{{Lat: 41.88, Lon: -87.63}},
	}
	if _, err := closures.EncodeGeometry(eff); !domain.IsValidation(err) {
		t.Fatalf("expected arity validation error, got %v", err)
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	original := domain.EffectiveGeometry{
		Mode: domain.ModeSegment,
		Coordinates: []domain.GeoPoint{
			{Lat: 41.87810, Lon: -87.62980},
			{Lat: 41.87850, Lon: -87.62900},
			{Lat: 41.87900, Lon: -87.62800},
		},
	}

	raw, err := closures.EncodeGeometry(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := closures.DecodeGeometry(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Mode != original.Mode {
		t.Errorf("mode changed in round trip: %s", decoded.Mode)
	}
	if len(decoded.Coordinates) != len(original.Coordinates) {
		t.Fatalf("coordinate count changed: %d", len(decoded.Coordinates))
	}
	for i := range original.Coordinates {
		if math.Abs(decoded.Coordinates[i].Lat-original.Coordinates[i].Lat) > 1e-9 ||
			math.Abs(decoded.Coordinates[i].Lon-original.Coordinates[i].Lon) > 1e-9 {
			t.Errorf("coordinate %d changed: %+v vs %+v", i, decoded.Coordinates[i], original.Coordinates[i])
		}
	}
}

func TestDecodeGeometry_NormalizesBothPointShapes(t *testing.T) {
	flat := json.RawMessage(`{"type":"Point","coordinates":[-87.63,41.88]}`)
	nested := json.RawMessage(`{"type":"Point","coordinates":[[-87.63,41.88]]}`)

	for name, raw := range map[string]json.RawMessage{"flat": flat, "nested": nested} {
		got, err := closures.DecodeGeometry(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if got.Mode != domain.ModePoint || len(got.Coordinates) != 1 {
			t.Fatalf("%s: unexpected geometry %+v", name, got)
		}
		if got.Coordinates[0].Lat != 41.88 || got.Coordinates[0].Lon != -87.63 {
			t.Errorf("%s: unexpected point %+v", name, got.Coordinates[0])
		}
	}
}

func TestDecodeGeometry_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		`{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,1],[0,0]]]}`,
		`{"type":"Point","coordinates":[]}`,
		`not json`,
	} {
		if _, err := closures.DecodeGeometry(json.RawMessage(raw)); err == nil {
			t.Errorf("expected decode error for %s", raw)
		}
	}
}

func TestBuildPayload_CarriesRoutedFlag(t *testing.T) {
	draft := domain.ClosureDraft{
		Description: "Bridge deck resurfacing, both lanes closed",
		ClosureType: domain.ClosureConstruction,
	}
	eff := domain.EffectiveGeometry{
		Mode: domain.ModeSegment,
		Coordinates: []domain.GeoPoint{
			{Lat: 41.88, Lon: -87.63},
			{Lat: 41.90, Lon: -87.60},
		},
		Routed: true,
	}

	payload, err := closures.BuildPayload(draft, eff)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["routed"] != true {
		t.Error("payload must carry the routed flag")
	}
	if wire["closure_type"] != "construction" {
		t.Errorf("unexpected closure_type: %v", wire["closure_type"])
	}
}
