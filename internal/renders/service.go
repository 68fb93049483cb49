package renders

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-agent/internal/shared/storage/object"
)

// Service persists regenerated markup and its records.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// Save writes markup to the object store under fileName and records it.
func (s *Service) Save(ctx context.Context, sessionID string, versionIndex int, fileName, markup string) (Render, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(fileName) == "" || markup == "" || versionIndex < 0 {
		return Render{}, ErrInvalidInput
	}
	if s.Repo == nil || s.Store == nil {
		return Render{}, errors.New("missing dependencies")
	}

	storageKey, err := object.Key(sessionID, fileName)
	if err != nil {
		return Render{}, ErrInvalidInput
	}
	size, err := s.Store.Put(ctx, storageKey, MimeTypeTeX, strings.NewReader(markup))
	if err != nil {
		return Render{}, err
	}

	render := Render{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		VersionIndex: versionIndex,
		FileName:     fileName,
		StorageKey:   storageKey,
		MimeType:     MimeTypeTeX,
		SizeBytes:    size,
		CreatedAt:    s.now(),
	}
	if err := s.Repo.Create(ctx, render); err != nil {
		return Render{}, err
	}
	return render, nil
}

// Open returns the render record and a reader over its stored markup.
// The caller must close the reader.
func (s *Service) Open(ctx context.Context, sessionID, renderID string) (Render, io.ReadCloser, error) {
	if sessionID == "" || renderID == "" {
		return Render{}, nil, ErrInvalidInput
	}
	render, err := s.Repo.GetByID(ctx, sessionID, renderID)
	if err != nil {
		return Render{}, nil, err
	}
	rc, err := s.Store.Open(ctx, render.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Render{}, nil, ErrNotFound
		}
		return Render{}, nil, err
	}
	return render, rc, nil
}

// List returns renders for a session ordered newest-first.
func (s *Service) List(ctx context.Context, sessionID string, limit, offset int) ([]Render, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListBySession(ctx, sessionID, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
