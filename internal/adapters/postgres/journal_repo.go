package postgres

import (
	"context"
	"fmt"

	"github.com/roadclosures/capture/internal/core/domain"
)

// JournalRepo persists submission attempts. It implements
// ports.SubmissionJournal.
type JournalRepo struct {
	db *DB
}

// NewJournalRepo creates a journal backed by the shared pool.
func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Record appends one submission attempt. Failures are recorded too so
// the history shows what was tried, not just what landed.
func (r *JournalRepo) Record(ctx context.Context, rec *domain.SubmissionRecord) error {
	const q = `
		INSERT INTO submission_journal
			(closure_id, session_kind, geometry_mode, point_count, routed, succeeded, error, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text`

	err := r.db.Pool.QueryRow(ctx, q,
		rec.ClosureID,
		string(rec.Kind),
		string(rec.Mode),
		rec.PointCount,
		rec.Routed,
		rec.Succeeded,
		rec.Error,
		rec.SubmittedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert submission record: %w", err)
	}
	return nil
}

// List returns attempts newest first plus the total count.
func (r *JournalRepo) List(ctx context.Context, offset, limit int) ([]domain.SubmissionRecord, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM submission_journal`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submission records: %w", err)
	}

	const q = `
		SELECT id::text, closure_id, session_kind, geometry_mode, point_count, routed, succeeded, error, submitted_at
		FROM submission_journal
		ORDER BY submitted_at DESC, id DESC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list submission records: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmissionRecord
	for rows.Next() {
		var rec domain.SubmissionRecord
		var kind, mode string
		if err := rows.Scan(&rec.ID, &rec.ClosureID, &kind, &mode,
			&rec.PointCount, &rec.Routed, &rec.Succeeded, &rec.Error, &rec.SubmittedAt); err != nil {
			return nil, 0, fmt.Errorf("scan submission record: %w", err)
		}
		rec.Kind = domain.SessionKind(kind)
		rec.Mode = domain.GeometryMode(mode)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
