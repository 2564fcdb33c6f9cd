package closures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roadclosures/capture/internal/core/domain"
)

// MockBackend is an in-memory ClosureBackend for development and
// demos without a live backend. Selecting mock vs. live is an explicit
// constructor choice in cmd/api, driven by config.
type MockBackend struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*domain.Closure
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{nextID: 1, byID: make(map[string]*domain.Closure)}
}

func (m *MockBackend) Create(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
	// Run the real codec so the mock catches payload bugs too.
	if _, err := BuildPayload(draft, geom); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("%d", m.nextID)
	m.nextID++
	now := time.Now()
	closure := &domain.Closure{
		ID:              id,
		Geometry:        geom,
		Description:     draft.Description,
		ClosureType:     draft.ClosureType,
		Status:          "active",
		StartTime:       draft.StartTime,
		EndTime:         draft.EndTime,
		Source:          draft.Source,
		ConfidenceLevel: draft.ConfidenceLevel,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.byID[id] = closure

	out := *closure
	return &out, nil
}

func (m *MockBackend) Update(ctx context.Context, id string, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
	if _, err := BuildPayload(draft, geom); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	closure, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("closure %s not found", id)
	}
	closure.Geometry = geom
	closure.Description = draft.Description
	closure.ClosureType = draft.ClosureType
	closure.StartTime = draft.StartTime
	closure.EndTime = draft.EndTime
	closure.Source = draft.Source
	closure.ConfidenceLevel = draft.ConfidenceLevel
	closure.UpdatedAt = time.Now()

	out := *closure
	return &out, nil
}

func (m *MockBackend) Get(ctx context.Context, id string) (*domain.Closure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closure, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("closure %s not found", id)
	}
	out := *closure
	return &out, nil
}
