package chatgate

import "context"

// Client is the contract every provider adapter satisfies. Adapters own
// credentials, system prompts and wire formats; the core only sees text in
// and text out. Failures should be returned as *ProviderError so the router
// can log the classified kind without exposing vendor error text to users.
type Client interface {
	// SendChat sends text with optional prior history and returns the reply.
	// history is nil for providers without client-side memory.
	SendChat(ctx context.Context, history []Turn, text string) (string, error)

	// SendVision sends an image with a prompt and returns the reply.
	// Called only for providers whose Capabilities include Vision.
	SendVision(ctx context.Context, image []byte, prompt string) (string, error)
}

// SessionClient is implemented by providers whose conversation state lives
// server-side behind an opaque handle. A nil handle starts a fresh
// conversation; the returned handle replaces the stored one after each
// exchange. Handles may hold live connection state and are never persisted.
type SessionClient interface {
	Client

	// SendSession sends text within the conversation identified by handle
	// and returns the reply together with the handle for the next call.
	SendSession(ctx context.Context, handle any, text string) (string, any, error)
}
