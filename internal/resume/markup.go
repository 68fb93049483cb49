package resume

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentRootMarker opens every valid generated document.
const DocumentRootMarker = `\documentclass`

// ExtractMarkup returns the reply from the first DocumentRootMarker onward.
// Commentary before the marker and a trailing markdown fence are dropped.
func ExtractMarkup(reply string) (string, bool) {
	i := strings.Index(reply, DocumentRootMarker)
	if i < 0 {
		return "", false
	}
	markup := strings.TrimRightFunc(reply[i:], isSpace)
	markup = strings.TrimSuffix(markup, "```")
	return strings.TrimRightFunc(markup, isSpace) + "\n", true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// SuggestedID names a rendered document after its generation time plus a
// random suffix so two renders within one second never collide.
func SuggestedID(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("tailored_resume_%s_%s.tex", at.UTC().Format("20060102_150405"), suffix)
}
