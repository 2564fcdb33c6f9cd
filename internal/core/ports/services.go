package ports

import (
	"context"

	"github.com/roadclosures/capture/internal/core/domain"
)

// RouteResolver snaps an ordered point set to the road network via an
// external routing engine. Implementations must honour ctx
// cancellation: the coordinator cancels superseded resolves.
type RouteResolver interface {
	Resolve(ctx context.Context, points domain.PointSet, profile domain.TransportProfile) (*domain.RouteResult, error)
}

// ClosureBackend is the closure API this tool submits to. The wire
// format (GeoJSON, lon/lat order) is an adapter concern; the core only
// speaks domain types.
type ClosureBackend interface {
	Create(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error)
	Update(ctx context.Context, id string, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error)
	Get(ctx context.Context, id string) (*domain.Closure, error)
}

// EventBus is the cross-region notifier: named topics, synchronous
// in-process delivery, no persistence or replay. Subscribers of the
// same topic run in unspecified order.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string, fn func(topic string, payload any)) (unsubscribe func())
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
