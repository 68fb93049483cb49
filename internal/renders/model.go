package renders

import "time"

// MimeTypeTeX is the content type stored for rendered markup.
const MimeTypeTeX = "application/x-tex"

// Render records one regenerated markup document persisted for a session.
type Render struct {
	ID           string    `json:"renderId"`
	SessionID    string    `json:"sessionId"`
	VersionIndex int       `json:"versionIndex"`
	FileName     string    `json:"fileName"`
	StorageKey   string    `json:"storageKey"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
}
