package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	UpdateExtraction(ctx context.Context, userID, documentID, extractedTextKey string, extractedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
}
