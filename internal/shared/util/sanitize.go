package util

import (
	"errors"
	"strings"
	"unicode"
)

// MaxFileNameLength bounds names accepted for stored renders.
const MaxFileNameLength = 200

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators into underscores and rejects
// traversal, control characters and overlong names.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.TrimSpace(name)
	if s == "" || len(s) > MaxFileNameLength {
		return "", ErrInvalidFileName
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", ErrInvalidFileName
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(s), nil
}
