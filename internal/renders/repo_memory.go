package renders

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores render records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Render
	bySession map[string][]Render
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Render),
		bySession: make(map[string][]Render),
	}
}

// Create stores the render record.
func (r *MemoryRepo) Create(ctx context.Context, render Render) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[render.ID] = render
	r.bySession[render.SessionID] = append(r.bySession[render.SessionID], render)
	return nil
}

// GetByID returns a render by ID. Renders owned by another session are
// reported as not found.
func (r *MemoryRepo) GetByID(ctx context.Context, sessionID, renderID string) (Render, error) {
	if err := ctx.Err(); err != nil {
		return Render{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	render, ok := r.byID[renderID]
	if !ok || render.SessionID != sessionID {
		return Render{}, ErrNotFound
	}
	return render, nil
}

// ListBySession returns renders for a session, newest first, with limit/offset.
func (r *MemoryRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]Render, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	sessionRenders := r.bySession[sessionID]
	out := make([]Render, len(sessionRenders))
	copy(out, sessionRenders)
	r.mu.RUnlock()

	if len(out) == 0 || offset >= len(out) {
		return []Render{}, nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
