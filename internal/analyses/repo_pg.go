package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, document_id, user_id, status, content_hash, provider, model,
	prompt_version, ruleset_version, result, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	resultPayload, err := marshalJSONB(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		nullString(analysis.DocumentID),
		analysis.UserID,
		analysis.Status,
		nullString(analysis.ContentHash),
		analysis.Provider,
		analysis.Model,
		analysis.PromptVersion,
		analysis.RulesetVersion,
		resultPayload,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, document_id, user_id, status, content_hash, provider, model,
       prompt_version, ruleset_version, result, error_code, error_message,
       started_at, completed_at, created_at
FROM analyses
WHERE id = $1
LIMIT 1`
	var a Analysis
	var documentID sql.NullString
	var contentHash sql.NullString
	var result sql.NullString
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&a.ID,
		&documentID,
		&a.UserID,
		&a.Status,
		&contentHash,
		&a.Provider,
		&a.Model,
		&a.PromptVersion,
		&a.RulesetVersion,
		&result,
		&errorCode,
		&errorMessage,
		&startedAt,
		&completedAt,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	a.DocumentID = documentID.String
	a.ContentHash = contentHash.String
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &a.Result); err != nil {
			return Analysis{}, err
		}
	}
	if errorCode.Valid {
		a.ErrorCode = &errorCode.String
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

// UpdateResult marks an analysis completed with its formatted result.
func (r *PGRepo) UpdateResult(ctx context.Context, analysisID string, result map[string]any, completedAt *time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, result = $3, completed_at = $4
WHERE id = $1`
	resultPayload, err := marshalJSONB(result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, analysisID, StatusCompleted, resultPayload, completedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStatusAndError updates status, error fields, and timestamps.
func (r *PGRepo) UpdateStatusAndError(ctx context.Context, analysisID, status string, errorCode, errorMessage *string, startedAt, completedAt *time.Time) error {
	const query = `
UPDATE analyses
SET status = $2,
    error_code = COALESCE($3, error_code),
    error_message = COALESCE($4, error_message),
    started_at = COALESCE($5, started_at),
    completed_at = COALESCE($6, completed_at)
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, analysisID, status, errorCode, errorMessage, startedAt, completedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, document_id, user_id, status, content_hash, provider, model,
       prompt_version, ruleset_version, result, error_code, error_message,
       started_at, completed_at, created_at
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		var a Analysis
		var documentID sql.NullString
		var contentHash sql.NullString
		var result sql.NullString
		var errorCode sql.NullString
		var errorMessage sql.NullString
		var startedAt sql.NullTime
		var completedAt sql.NullTime
		if err := rows.Scan(
			&a.ID,
			&documentID,
			&a.UserID,
			&a.Status,
			&contentHash,
			&a.Provider,
			&a.Model,
			&a.PromptVersion,
			&a.RulesetVersion,
			&result,
			&errorCode,
			&errorMessage,
			&startedAt,
			&completedAt,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.DocumentID = documentID.String
		a.ContentHash = contentHash.String
		if result.Valid && result.String != "" {
			if err := json.Unmarshal([]byte(result.String), &a.Result); err != nil {
				return nil, err
			}
		}
		if errorCode.Valid {
			a.ErrorCode = &errorCode.String
		}
		if errorMessage.Valid {
			a.ErrorMessage = &errorMessage.String
		}
		if startedAt.Valid {
			a.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			a.CompletedAt = &completedAt.Time
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func marshalJSONB(value map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
