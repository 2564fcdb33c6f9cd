package closures_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roadclosures/capture/internal/adapters/closures"
	"github.com/roadclosures/capture/internal/core/domain"
)

func closureJSON(id int) map[string]any {
	return map[string]any{
		"id":          id,
		"geometry":    map[string]any{"type": "Point", "coordinates": [][]float64{{-87.63, 41.88}}},
		"description": "Water main repair at Madison and Wacker",
		"closure_type": "construction",
		"status":       "active",
		"start_time":   "2026-08-25T09:00:00Z",
		"created_at":   "2026-08-25T08:55:00Z",
		"updated_at":   "2026-08-25T08:55:00Z",
	}
}

func testDraft() domain.ClosureDraft {
	return domain.ClosureDraft{
		Description: "Water main repair at Madison and Wacker",
		ClosureType: domain.ClosureConstruction,
		StartTime:   time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
}

func pointGeometry() domain.EffectiveGeometry {
	return domain.EffectiveGeometry{
		Mode:        domain.ModePoint,
		Coordinates: []domain.GeoPoint{{Lat: 41.88, Lon: -87.63}},
	}
}

func TestClient_CreateSendsBearerAndPayload(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/closures" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(closureJSON(7))
	}))
	defer srv.Close()

	client := closures.NewClient(srv.URL, "secret-token", time.Second)
	closure, err := client.Create(context.Background(), testDraft(), pointGeometry())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("missing bearer token, got %q", gotAuth)
	}
	if gotBody["closure_type"] != "construction" {
		t.Errorf("unexpected payload closure_type: %v", gotBody["closure_type"])
	}
	if closure.ID != "7" {
		t.Errorf("integer id must come back as string, got %q", closure.ID)
	}
	if closure.Geometry.Mode != domain.ModePoint || closure.Geometry.Coordinates[0].Lat != 41.88 {
		t.Errorf("geometry not decoded: %+v", closure.Geometry)
	}
}

func TestClient_UpdateTargetsClosureID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/closures/42" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(closureJSON(42))
	}))
	defer srv.Close()

	client := closures.NewClient(srv.URL, "", time.Second)
	closure, err := client.Update(context.Background(), "42", testDraft(), pointGeometry())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if closure.ID != "42" {
		t.Errorf("unexpected id %q", closure.ID)
	}
}

func TestClient_BackendErrorSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"description too short"}`))
	}))
	defer srv.Close()

	client := closures.NewClient(srv.URL, "", time.Second)
	_, err := client.Create(context.Background(), testDraft(), pointGeometry())
	if err == nil {
		t.Fatal("expected backend error")
	}
}

func TestClient_InvalidGeometryRejectedBeforeRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the backend")
	}))
	defer srv.Close()

	client := closures.NewClient(srv.URL, "", time.Second)
	under := domain.EffectiveGeometry{
		Mode:        domain.ModeSegment,
		Coordinates: []domain.GeoPoint{{Lat: 41.88, Lon: -87.63}},
	}
	if _, err := client.Create(context.Background(), testDraft(), under); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMockBackend_CreateThenGet(t *testing.T) {
	backend := closures.NewMockBackend()

	created, err := backend.Create(context.Background(), testDraft(), pointGeometry())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}

	fetched, err := backend.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Description != created.Description {
		t.Errorf("round trip lost description: %q", fetched.Description)
	}
}

func TestMockBackend_RunsCodecValidation(t *testing.T) {
	backend := closures.NewMockBackend()
	under := domain.EffectiveGeometry{
		Mode:        domain.ModeSegment,
		Coordinates: []domain.GeoPoint{{Lat: 41.88, Lon: -87.63}},
	}
	if _, err := backend.Create(context.Background(), testDraft(), under); err == nil {
		t.Fatal("mock must reject geometry the codec rejects")
	}
}
