package renders

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a render record.
func (r *PGRepo) Create(ctx context.Context, render Render) error {
	const query = `
INSERT INTO render_records (
    id, session_id, version_index, file_name, storage_key, mime_type, size_bytes, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		render.ID,
		render.SessionID,
		render.VersionIndex,
		render.FileName,
		render.StorageKey,
		render.MimeType,
		render.SizeBytes,
		render.CreatedAt,
	)
	return err
}

// GetByID returns a render by ID scoped to its session.
func (r *PGRepo) GetByID(ctx context.Context, sessionID, renderID string) (Render, error) {
	const query = `
SELECT id, session_id, version_index, file_name, storage_key, mime_type, size_bytes, created_at
FROM render_records
WHERE id = $1 AND session_id = $2
LIMIT 1`
	var render Render
	err := r.DB.QueryRowContext(ctx, query, renderID, sessionID).Scan(
		&render.ID,
		&render.SessionID,
		&render.VersionIndex,
		&render.FileName,
		&render.StorageKey,
		&render.MimeType,
		&render.SizeBytes,
		&render.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Render{}, ErrNotFound
		}
		return Render{}, err
	}
	return render, nil
}

// ListBySession lists renders ordered newest-first.
func (r *PGRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]Render, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, session_id, version_index, file_name, storage_key, mime_type, size_bytes, created_at
FROM render_records
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Render{}
	for rows.Next() {
		var render Render
		if err := rows.Scan(
			&render.ID,
			&render.SessionID,
			&render.VersionIndex,
			&render.FileName,
			&render.StorageKey,
			&render.MimeType,
			&render.SizeBytes,
			&render.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, render)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
