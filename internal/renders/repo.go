package renders

import "context"

// Repo defines persistence operations for render records.
type Repo interface {
	Create(ctx context.Context, render Render) error
	GetByID(ctx context.Context, sessionID, renderID string) (Render, error)
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]Render, error)
}
