package prompts

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Template names used by resume sessions.
const (
	ResumeParser  = "resume_parser"
	ResumeCreator = "resume_creator"
)

// Store maps a template name to its text. Missing templates yield "".
type Store interface {
	Load(name string) string
}

// DirStore reads <Dir>/<name>.md on every Load so edits apply without a restart.
type DirStore struct {
	Dir string
}

// Load returns the template text, or "" when the file is absent or unreadable.
func (s DirStore) Load(name string) string {
	if strings.TrimSpace(s.Dir) == "" || !validName(name) {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name+".md"))
	if err != nil {
		return ""
	}
	return string(data)
}

//go:embed defaults/*.md
var defaultFS embed.FS

// Defaults serves the templates compiled into the binary.
type Defaults struct{}

// Load returns the embedded template text, or "" when none exists.
func (Defaults) Load(name string) string {
	if !validName(name) {
		return ""
	}
	data, err := fs.ReadFile(defaultFS, "defaults/"+name+".md")
	if err != nil {
		return ""
	}
	return string(data)
}

// Chain returns the first non-empty template across stores.
type Chain []Store

// Load consults each store in order.
func (c Chain) Load(name string) string {
	for _, s := range c {
		if s == nil {
			continue
		}
		if text := s.Load(name); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// Static is an in-memory store, mostly for tests.
type Static map[string]string

// Load returns the mapped text.
func (s Static) Load(name string) string {
	return s[name]
}

func validName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
