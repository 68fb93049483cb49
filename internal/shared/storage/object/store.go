package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"resume-agent/internal/shared/util"
)

// ErrNotFound indicates no object exists at the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore saves and retrieves opaque objects by key.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Key builds the storage key for fileName under namespace. The namespace is
// hashed so raw session ids never appear in paths.
func Key(namespace, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.HashKey(namespace), name), nil
}
