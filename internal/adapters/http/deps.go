package http

import (
	"github.com/nats-io/nats.go"

	"github.com/roadclosures/capture/internal/adapters/postgres"
	"github.com/roadclosures/capture/internal/adapters/valkey"
	"github.com/roadclosures/capture/internal/core/ports"
	"github.com/roadclosures/capture/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Selection  *usecases.SelectionService
	Submission *usecases.SubmissionService
	Backend    ports.ClosureBackend
	Bus        ports.EventBus
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
}
