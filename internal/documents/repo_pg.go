package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
	id, user_id, file_name, mime_type, size_bytes, storage_key,
	extracted_text_key, extracted_at, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	var extractedKey any
	if doc.ExtractedTextKey != "" {
		extractedKey = doc.ExtractedTextKey
	}
	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		extractedKey,
		doc.ExtractedAt,
		doc.CreatedAt,
	)
	return err
}

// GetByID returns a document owned by the user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT id, user_id, file_name, mime_type, size_bytes, storage_key,
       extracted_text_key, extracted_at, created_at
FROM documents
WHERE id = $1 AND user_id = $2
LIMIT 1`
	var doc Document
	var extractedKey sql.NullString
	var extractedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, documentID, userID).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&extractedKey,
		&extractedAt,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.ExtractedTextKey = extractedKey.String
	if extractedAt.Valid {
		doc.ExtractedAt = &extractedAt.Time
	}
	return doc, nil
}

// UpdateExtraction records the derived extracted-text object for a document.
func (r *PGRepo) UpdateExtraction(ctx context.Context, userID, documentID, extractedTextKey string, extractedAt time.Time) error {
	const query = `
UPDATE documents
SET extracted_text_key = $3, extracted_at = $4
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, documentID, userID, extractedTextKey, extractedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns documents for a user, newest first, with limit/offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, file_name, mime_type, size_bytes, storage_key,
       extracted_text_key, extracted_at, created_at
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var extractedKey sql.NullString
		var extractedAt sql.NullTime
		if err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.FileName,
			&doc.MimeType,
			&doc.SizeBytes,
			&doc.StorageKey,
			&extractedKey,
			&extractedAt,
			&doc.CreatedAt,
		); err != nil {
			return nil, err
		}
		doc.ExtractedTextKey = extractedKey.String
		if extractedAt.Valid {
			doc.ExtractedAt = &extractedAt.Time
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
