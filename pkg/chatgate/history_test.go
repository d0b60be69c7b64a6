package chatgate_test

import (
	"fmt"
	"testing"

	"github.com/botfold/chatgate/pkg/chatgate"
)

func buildHistory(turns int) *chatgate.History {
	h := chatgate.NewHistory()
	for i := 0; i < turns; i++ {
		if i%2 == 0 {
			h.Append(chatgate.RoleUser, fmt.Sprintf("question %d", i/2))
		} else {
			h.Append(chatgate.RoleAssistant, fmt.Sprintf("answer %d", i/2))
		}
	}
	return h
}

func assertAlternation(t *testing.T, turns []chatgate.Turn) {
	t.Helper()
	start := 0
	if len(turns) > 0 && turns[0].Role == chatgate.RoleSystem {
		start = 1
	}
	for i := start + 1; i < len(turns); i++ {
		if turns[i].Role == turns[i-1].Role {
			t.Fatalf("consecutive %s turns at positions %d and %d", turns[i].Role, i-1, i)
		}
	}
}

func TestHistory_TruncateShortIsNoop(t *testing.T) {
	h := buildHistory(6)
	h.Truncate(20)
	if h.Len() != 6 {
		t.Errorf("Len = %d after no-op truncate, want 6", h.Len())
	}
}

func TestHistory_TruncateKeepsMostRecent(t *testing.T) {
	h := buildHistory(30)
	h.Truncate(10)

	turns := h.Turns()
	if len(turns) != 10 {
		t.Fatalf("Len = %d, want 10", len(turns))
	}
	if turns[0].Role != chatgate.RoleUser {
		t.Errorf("first kept turn role = %s, want user", turns[0].Role)
	}
	if turns[len(turns)-1].Content != "answer 14" {
		t.Errorf("last kept turn = %q, want the newest answer", turns[len(turns)-1].Content)
	}
	assertAlternation(t, turns)
}

func TestHistory_TruncateDropsLeadingAssistant(t *testing.T) {
	// An odd cut lands on an assistant turn; one more must be dropped so the
	// sequence starts on a user turn.
	h := buildHistory(30)
	h.Truncate(9)

	turns := h.Turns()
	if len(turns) != 8 {
		t.Fatalf("Len = %d, want 8 after dropping the leading assistant turn", len(turns))
	}
	if turns[0].Role != chatgate.RoleUser {
		t.Errorf("first kept turn role = %s, want user", turns[0].Role)
	}
	assertAlternation(t, turns)
}

func TestHistory_TruncatePreservesAlternationRepeatedly(t *testing.T) {
	h := chatgate.NewHistory()
	h.Append(chatgate.RoleSystem, "be brief")
	for i := 0; i < 40; i++ {
		h.Append(chatgate.RoleUser, fmt.Sprintf("q%d", i))
		h.Append(chatgate.RoleAssistant, fmt.Sprintf("a%d", i))
		h.Truncate(12)
		if h.Len() == 0 {
			t.Fatal("history emptied by truncation")
		}
		assertAlternation(t, h.Turns())
	}
}

func TestHistory_TruncateZeroMaxIsNoop(t *testing.T) {
	h := buildHistory(4)
	h.Truncate(0)
	if h.Len() != 4 {
		t.Errorf("Len = %d after Truncate(0), want 4", h.Len())
	}
}
