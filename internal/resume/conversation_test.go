package resume

import (
	"testing"
)

func collect(log *ConversationLog, roles ...Role) []Turn {
	var out []Turn
	for turn := range log.TurnsWithRoles(roles...) {
		out = append(out, turn)
	}
	return out
}

func TestConversationLogFiltersAndKeepsOrder(t *testing.T) {
	log := NewConversationLog(nil)
	log.Append(RoleSystem, "note")
	log.Append(RoleUser, "q1")
	log.Append(RoleAssistant, "a1")
	log.Append(RoleSystem, "note2")
	log.Append(RoleUser, "q2")

	got := collect(log, RoleUser, RoleAssistant)
	want := []string{"q1", "a1", "q2"}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i, turn := range got {
		if turn.Text != want[i] {
			t.Fatalf("turn %d = %q, want %q", i, turn.Text, want[i])
		}
		if turn.Role == RoleSystem {
			t.Fatalf("system turn leaked into filtered view")
		}
	}
	if log.Len() != 5 || len(log.Turns()) != 5 {
		t.Fatalf("Len = %d", log.Len())
	}
}

func TestTurnsWithRolesIsRestartable(t *testing.T) {
	log := NewConversationLog(nil)
	log.Append(RoleUser, "q1")
	log.Append(RoleAssistant, "a1")

	seq := log.TurnsWithRoles(RoleUser)
	first := 0
	for range seq {
		first++
	}
	log.Append(RoleUser, "q2")
	second := 0
	for range seq {
		second++
	}
	if first != 1 || second != 2 {
		t.Fatalf("first=%d second=%d", first, second)
	}
}

func TestTurnsWithRolesAllowsAppendWhileIterating(t *testing.T) {
	log := NewConversationLog(nil)
	log.Append(RoleUser, "q1")
	log.Append(RoleUser, "q2")

	seen := 0
	for range log.TurnsWithRoles(RoleUser) {
		seen++
		log.Append(RoleUser, "more")
	}
	if seen != 2 {
		t.Fatalf("seen = %d, want 2", seen)
	}
	if log.Len() != 4 {
		t.Fatalf("Len = %d, want 4", log.Len())
	}
}

func TestTurnsWithRolesStopsEarly(t *testing.T) {
	log := NewConversationLog(nil)
	for i := 0; i < 3; i++ {
		log.Append(RoleUser, "q")
	}
	seen := 0
	for range log.TurnsWithRoles(RoleUser) {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("seen = %d", seen)
	}
}
