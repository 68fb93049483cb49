package resume

import (
	"sync"
	"time"
)

// Snapshot is one version of a candidate's resume. Only RenderedMarkup and
// Feedback change after creation.
type Snapshot struct {
	Data           Resume    `json:"resumeData"`
	RenderedMarkup *string   `json:"renderedMarkup,omitempty"`
	ChangeSummary  string    `json:"changeSummary"`
	Feedback       *string   `json:"feedback,omitempty"`
	VersionIndex   int       `json:"versionIndex"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Data = s.Data.Clone()
	if s.RenderedMarkup != nil {
		markup := *s.RenderedMarkup
		out.RenderedMarkup = &markup
	}
	if s.Feedback != nil {
		feedback := *s.Feedback
		out.Feedback = &feedback
	}
	return out
}

// VersionStore holds snapshots in creation order. Snapshots are never removed
// or reordered, so a snapshot's VersionIndex is its position. Reads return
// copies. It is safe for concurrent use.
type VersionStore struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	now       func() time.Time
}

// NewVersionStore constructs an empty store stamped by now (time.Now when nil).
func NewVersionStore(now func() time.Time) *VersionStore {
	if now == nil {
		now = time.Now
	}
	return &VersionStore{now: now}
}

// Add appends a snapshot with the next version index.
func (s *VersionStore) Add(data Resume, changeSummary string, markup, feedback *string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Data:           data.Clone(),
		RenderedMarkup: markup,
		ChangeSummary:  changeSummary,
		Feedback:       feedback,
		VersionIndex:   len(s.snapshots),
		CreatedAt:      s.now().UTC(),
	}
	snap = snap.clone()
	s.snapshots = append(s.snapshots, snap)
	return snap.clone()
}

// Latest returns the newest snapshot, or false when the store is empty.
func (s *VersionStore) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return Snapshot{}, false
	}
	return s.snapshots[len(s.snapshots)-1].clone(), true
}

// At returns the snapshot at index. Negative indices count from the end, down
// to -Len(). Out-of-range indices return a KindNotFound error.
func (s *VersionStore) At(index int) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.resolve(index)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshots[i].clone(), nil
}

// Len returns the number of snapshots.
func (s *VersionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// All returns copies of every snapshot in order.
func (s *VersionStore) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		out[i] = snap.clone()
	}
	return out
}

func (s *VersionStore) setMarkup(index int, markup string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.resolve(index)
	if err != nil {
		return Snapshot{}, err
	}
	s.snapshots[i].RenderedMarkup = &markup
	return s.snapshots[i].clone(), nil
}

func (s *VersionStore) setFeedback(index int, feedback string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.resolve(index)
	if err != nil {
		return Snapshot{}, err
	}
	s.snapshots[i].Feedback = &feedback
	return s.snapshots[i].clone(), nil
}

func (s *VersionStore) resolve(index int) (int, error) {
	n := len(s.snapshots)
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, newError(KindNotFound, nil, "version %d out of range (have %d)", index, n)
	}
	return i, nil
}
