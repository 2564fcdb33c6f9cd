package routing_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roadclosures/capture/internal/adapters/routing"
	"github.com/roadclosures/capture/internal/core/domain"
)

var twoPoints = domain.PointSet{
	{Lat: 41.88, Lon: -87.63},
	{Lat: 41.90, Lon: -87.60},
}

func TestOSRMResolver_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("geometries") != "geojson" {
			t.Errorf("expected geojson geometries, got %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": "Ok",
			"routes": []map[string]any{{
				"distance": 3400.0,
				"geometry": map[string]any{
					"type": "LineString",
					"coordinates": [][]float64{
						{-87.63, 41.88}, {-87.625, 41.885}, {-87.60, 41.90},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	resolver := routing.NewOSRMResolver(srv.URL, time.Second)
	result, err := resolver.Resolve(context.Background(), twoPoints, domain.ProfileDriving)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if result.PointCount != 3 || len(result.Path) != 3 {
		t.Fatalf("expected 3-point path, got %d", result.PointCount)
	}
	if result.DistanceKm != 3.4 {
		t.Errorf("expected 3.4 km, got %f", result.DistanceKm)
	}
	// Wire order is lon,lat; internal order is lat,lon.
	if result.Path[0].Lat != 41.88 || result.Path[0].Lon != -87.63 {
		t.Errorf("coordinate order not swapped: %+v", result.Path[0])
	}
	if result.DirectDistanceKm <= 0 || result.DirectDistanceKm > result.DistanceKm {
		t.Errorf("implausible direct distance %f", result.DirectDistanceKm)
	}
	if eff := result.Efficiency(); eff <= 0 || eff > 1 {
		t.Errorf("efficiency out of range: %f", eff)
	}
}

func TestOSRMResolver_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "InvalidQuery", "message": "no segment"})
	}))
	defer srv.Close()

	resolver := routing.NewOSRMResolver(srv.URL, time.Second)
	if _, err := resolver.Resolve(context.Background(), twoPoints, domain.ProfileDriving); err == nil {
		t.Fatal("expected error for engine failure")
	}
}

func TestOSRMResolver_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "NoRoute", "routes": []any{}})
	}))
	defer srv.Close()

	resolver := routing.NewOSRMResolver(srv.URL, time.Second)
	if _, err := resolver.Resolve(context.Background(), twoPoints, domain.ProfileDriving); err == nil {
		t.Fatal("expected error when no route found")
	}
}

func TestOSRMResolver_EmptyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": "Ok",
			"routes": []map[string]any{{
				"distance": 0.0,
				"geometry": map[string]any{"type": "LineString", "coordinates": [][]float64{}},
			}},
		})
	}))
	defer srv.Close()

	resolver := routing.NewOSRMResolver(srv.URL, time.Second)
	if _, err := resolver.Resolve(context.Background(), twoPoints, domain.ProfileDriving); err == nil {
		t.Fatal("expected error for zero-length path")
	}
}

func TestOSRMResolver_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	resolver := routing.NewOSRMResolver(srv.URL, time.Second)
	if _, err := resolver.Resolve(context.Background(), twoPoints, domain.ProfileDriving); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestOSRMResolver_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	resolver := routing.NewOSRMResolver(srv.URL, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := resolver.Resolve(ctx, twoPoints, domain.ProfileDriving)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestOSRMResolver_UnderArity(t *testing.T) {
	resolver := routing.NewOSRMResolver("http://localhost:1", time.Second)
	if _, err := resolver.Resolve(context.Background(), domain.PointSet{{Lat: 1, Lon: 2}}, domain.ProfileDriving); err == nil {
		t.Fatal("expected error for single point")
	}
}

// --- CachedResolver ---

type stubResolver struct {
	calls  int
	result *domain.RouteResult
	err    error
}

func (s *stubResolver) Resolve(ctx context.Context, points domain.PointSet, profile domain.TransportProfile) (*domain.RouteResult, error) {
	s.calls++
	return s.result, s.err
}

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func TestCachedResolver_SecondHitServedFromCache(t *testing.T) {
	stub := &stubResolver{result: &domain.RouteResult{Path: twoPoints, DistanceKm: 3.4, PointCount: 2}}
	cached := routing.NewCachedResolver(stub, newMemCache(), 60)

	for i := 0; i < 2; i++ {
		result, err := cached.Resolve(context.Background(), twoPoints, domain.ProfileDriving)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if math.Abs(result.DistanceKm-3.4) > 1e-9 {
			t.Errorf("unexpected distance %f", result.DistanceKm)
		}
	}

	if stub.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", stub.calls)
	}
}

func TestCachedResolver_ErrorsNotCached(t *testing.T) {
	stub := &stubResolver{err: errors.New("unreachable")}
	cached := routing.NewCachedResolver(stub, newMemCache(), 60)

	for i := 0; i < 2; i++ {
		if _, err := cached.Resolve(context.Background(), twoPoints, domain.ProfileDriving); err == nil {
			t.Fatal("expected error")
		}
	}
	if stub.calls != 2 {
		t.Errorf("failures must not be cached, got %d calls", stub.calls)
	}
}
