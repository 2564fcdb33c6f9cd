package ports

import (
	"context"

	"github.com/roadclosures/capture/internal/core/domain"
)

// SubmissionJournal persists submission attempts for auditing. The
// journal records both successes and failures.
type SubmissionJournal interface {
	Record(ctx context.Context, rec *domain.SubmissionRecord) error
	List(ctx context.Context, offset, limit int) ([]domain.SubmissionRecord, int, error)
}
