package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/core/ports"
	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// CachedResolver wraps a RouteResolver with read-through caching so
// re-drawing the same segment does not re-hit the engine. Keys round
// coordinates to 5 decimals (~1 m), matching the precision the backend
// stores anyway.
type CachedResolver struct {
	next  ports.RouteResolver
	cache ports.CacheService
	ttl   int // seconds
}

// NewCachedResolver decorates next. A nil cache disables caching.
func NewCachedResolver(next ports.RouteResolver, cache ports.CacheService, ttlSeconds int) *CachedResolver {
	if ttlSeconds <= 0 {
		ttlSeconds = 600
	}
	return &CachedResolver{next: next, cache: cache, ttl: ttlSeconds}
}

func (r *CachedResolver) Resolve(ctx context.Context, points domain.PointSet, profile domain.TransportProfile) (*domain.RouteResult, error) {
	key := cacheKey(points, profile)

	if r.cache != nil {
		if data, err := r.cache.Get(ctx, key); err == nil {
			var cached domain.RouteResult
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("route").Inc()
				return &cached, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	result, err := r.next.Resolve(ctx, points, profile)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = r.cache.Set(ctx, key, data, r.ttl)
		}
	}
	return result, nil
}

func cacheKey(points domain.PointSet, profile domain.TransportProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "route:%s", profile)
	for _, p := range points {
		fmt.Fprintf(&b, ":%.5f,%.5f", p.Lat, p.Lon)
	}
	return b.String()
}
