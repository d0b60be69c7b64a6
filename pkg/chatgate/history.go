package chatgate

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleSystem is an instruction turn at the head of a conversation
	RoleSystem Role = "system"
	// RoleUser is a turn written by the end user
	RoleUser Role = "user"
	// RoleAssistant is a turn written by the provider
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a client-side conversation history.
type Turn struct {
	Role    Role
	Content string
}

// History is an ordered turn sequence for providers that require the client
// to resend prior context with each call. After any leading system turn the
// sequence alternates user/assistant; Truncate preserves that invariant.
type History struct {
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn to the end of the history.
func (h *History) Append(role Role, content string) {
	h.turns = append(h.turns, Turn{Role: role, Content: content})
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the turn sequence.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Truncate keeps only the most recent maxTurns entries. If the earliest kept
// entry is an assistant turn one more is dropped, so the sequence always
// starts on a user or system turn and alternation survives truncation.
func (h *History) Truncate(maxTurns int) {
	if maxTurns <= 0 || len(h.turns) <= maxTurns {
		return
	}

	kept := h.turns[len(h.turns)-maxTurns:]
	if kept[0].Role == RoleAssistant {
		kept = kept[1:]
	}

	// Reslice into a fresh backing array so dropped turns are collectable.
	h.turns = append([]Turn(nil), kept...)
}
