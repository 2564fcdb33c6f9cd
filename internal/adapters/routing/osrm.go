// Package routing implements ports.RouteResolver against an OSRM
// routing engine.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/pkg/geospatial"
	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// OSRMResolver calls the OSRM /route/v1 endpoint with GeoJSON
// geometries. The engine may be slow, may fail, and may return fewer
// path nodes than requested; every unexpected shape becomes a plain
// error so the coordinator can fall back to straight-line geometry.
type OSRMResolver struct {
	baseURL string
	client  *http.Client
}

// NewOSRMResolver creates a resolver against baseURL
// (e.g. "https://router.project-osrm.org").
func NewOSRMResolver(baseURL string, timeout time.Duration) *OSRMResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OSRMResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// osrmProfile maps transport profiles onto OSRM profile names.
func osrmProfile(p domain.TransportProfile) string {
	switch p {
	case domain.ProfileCycling:
		return "cycling"
	case domain.ProfileWalking:
		return "walking"
	default:
		return "driving"
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Distance float64 `json:"distance"` // meters
	} `json:"routes"`
	Message string `json:"message"`
}

// Resolve snaps points to the road network. Points are sent in
// insertion order; OSRM expects lon,lat pairs on the URL.
func (r *OSRMResolver) Resolve(ctx context.Context, points domain.PointSet, profile domain.TransportProfile) (*domain.RouteResult, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("route needs at least 2 points, got %d", len(points))
	}

	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%f,%f", p.Lon, p.Lat)
	}
	reqURL := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		r.baseURL, osrmProfile(profile), strings.Join(coords, ";"))

	start := time.Now()
	result, err := r.fetch(ctx, reqURL)
	metrics.ObserveResolve(string(profile), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	result.DirectDistanceKm = geospatial.HaversineKm(
		points[0].Lat, points[0].Lon,
		points[len(points)-1].Lat, points[len(points)-1].Lon,
	)
	return result, nil
}

func (r *OSRMResolver) fetch(ctx context.Context, reqURL string) (*domain.RouteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build routing request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing engine returned status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed routing response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		if body.Message != "" {
			return nil, fmt.Errorf("routing engine: %s", body.Message)
		}
		return nil, fmt.Errorf("routing engine returned no route")
	}

	route := body.Routes[0]
	if len(route.Geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("routing engine returned an empty path")
	}

	path := make([]domain.GeoPoint, 0, len(route.Geometry.Coordinates))
	for _, c := range route.Geometry.Coordinates {
		if len(c) < 2 {
			return nil, fmt.Errorf("malformed coordinate in routing response")
		}
		path = append(path, domain.GeoPoint{Lat: c[1], Lon: c[0]})
	}

	return &domain.RouteResult{
		Path:       path,
		DistanceKm: route.Distance / 1000,
		PointCount: len(path),
	}, nil
}
