package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateResult(ctx context.Context, analysisID string, result map[string]any, completedAt *time.Time) error
	UpdateStatusAndError(ctx context.Context, analysisID, status string, errorCode, errorMessage *string, startedAt, completedAt *time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}
