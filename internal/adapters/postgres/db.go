package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadclosures/capture/internal/pkg/metrics"
)

// DB wraps pgxpool.Pool and keeps the journal's pool statistics
// flowing into Prometheus.
type DB struct {
	Pool *pgxpool.Pool

	statsDone chan struct{}
}

// New opens a connection pool and starts the pool stats reporter.
// The journal is append-mostly and low-volume, so the pool stays small.
func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &DB{Pool: pool, statsDone: make(chan struct{})}
	go db.reportStats()

	return db, nil
}

func (db *DB) reportStats() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-db.statsDone:
			return
		}
	}
}

// Close stops the stats reporter and releases pool resources.
func (db *DB) Close() {
	close(db.statsDone)
	db.Pool.Close()
}
