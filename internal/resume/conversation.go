package resume

import (
	"iter"
	"slices"
	"sync"
	"time"
)

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable conversation entry.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationLog is an append-only, ordered record of turns. It is safe for
// concurrent use.
type ConversationLog struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

// NewConversationLog constructs an empty log stamped by now (time.Now when nil).
func NewConversationLog(now func() time.Time) *ConversationLog {
	if now == nil {
		now = time.Now
	}
	return &ConversationLog{now: now}
}

// Append adds a turn at the end of the log.
func (l *ConversationLog) Append(role Role, text string) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	turn := Turn{Role: role, Text: text, CreatedAt: l.now().UTC()}
	l.turns = append(l.turns, turn)
	return turn
}

// Len returns the number of turns.
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Turns returns a copy of every turn.
func (l *ConversationLog) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.turns)
}

// TurnsWithRoles yields, in order, the turns whose role is one of roles.
// Each iteration starts over and covers the turns present when it began;
// turns appended mid-iteration are not visited. No lock is held while
// yielding, so the consumer may append.
func (l *ConversationLog) TurnsWithRoles(roles ...Role) iter.Seq[Turn] {
	return func(yield func(Turn) bool) {
		l.mu.RLock()
		n := len(l.turns)
		l.mu.RUnlock()
		for i := 0; i < n; i++ {
			l.mu.RLock()
			turn := l.turns[i]
			l.mu.RUnlock()
			if !slices.Contains(roles, turn.Role) {
				continue
			}
			if !yield(turn) {
				return
			}
		}
	}
}
