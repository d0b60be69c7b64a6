package chatgate

// Session is the ephemeral conversational state for one (user, provider)
// pair. Exactly one of History or Handle is populated, depending on the
// provider's MemoryStyle. Sessions live only in process memory: they are
// created lazily on first use, replaced wholesale on an explicit reset, and
// never written into a durable snapshot.
type Session struct {
	// History holds client-side turns for MemoryHistory providers
	History *History

	// Handle is the opaque server-side conversation handle for
	// MemoryHandle providers
	Handle any
}

// newSession constructs fresh session state for the given memory style.
// MemoryNone providers carry no session at all.
func newSession(style MemoryStyle) *Session {
	switch style {
	case MemoryHistory:
		return &Session{History: NewHistory()}
	case MemoryHandle:
		return &Session{}
	default:
		return nil
	}
}
