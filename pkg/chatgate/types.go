package chatgate

import (
	"time"
)

// UserID identifies a chat participant. All per-user state is keyed by it.
type UserID string

// ProviderID identifies an external LLM provider.
type ProviderID string

const (
	// ProviderGemini is Google's Gemini API
	ProviderGemini ProviderID = "gemini"
	// ProviderChatGPT is OpenAI's chat API
	ProviderChatGPT ProviderID = "chatgpt"
	// ProviderGrok is xAI's Grok API
	ProviderGrok ProviderID = "grok"
	// ProviderClaude is Anthropic's Claude API
	ProviderClaude ProviderID = "claude"
	// ProviderDeepSeek is DeepSeek's chat API
	ProviderDeepSeek ProviderID = "deepseek"
)

// MemoryStyle describes how a provider keeps conversational context
type MemoryStyle string

const (
	// MemoryNone means every message is an independent exchange
	MemoryNone MemoryStyle = "none"
	// MemoryHistory means the client must resend prior turns with each call
	MemoryHistory MemoryStyle = "history"
	// MemoryHandle means the provider keeps state server-side behind an
	// opaque conversation handle
	MemoryHandle MemoryStyle = "handle"
)

// Capabilities describes what a provider supports. Text is always supported.
type Capabilities struct {
	Vision bool
	Memory MemoryStyle
}

// PolicyKind defines the type of quota policy
type PolicyKind string

const (
	// PolicyUnlimited performs no usage tracking
	PolicyUnlimited PolicyKind = "unlimited"
	// PolicyCountWindow caps the number of uses before a fixed cooldown
	PolicyCountWindow PolicyKind = "count_window"
	// PolicyRateWindow caps requests and estimated tokens per window
	PolicyRateWindow PolicyKind = "rate_window"
)

// QuotaPolicy defines per-provider usage limits.
// CountWindow policies use MaxUses and Cooldown; RateWindow policies use
// MaxRequests, MaxTokens and Window. Unlimited policies ignore all fields.
type QuotaPolicy struct {
	Kind PolicyKind

	// MaxUses is the number of uses allowed before a cooldown starts
	MaxUses int
	// Cooldown is how long a user waits after exhausting MaxUses
	Cooldown time.Duration

	// MaxRequests is the number of requests allowed per window
	MaxRequests int
	// MaxTokens is the estimated token budget per window
	MaxTokens int
	// Window is the cooldown applied when either rate cap is hit
	Window time.Duration
}

// Unlimited returns a policy that never denies.
func Unlimited() QuotaPolicy {
	return QuotaPolicy{Kind: PolicyUnlimited}
}

// CountWindow returns a policy allowing maxUses uses, then a cooldown.
func CountWindow(maxUses int, cooldown time.Duration) QuotaPolicy {
	return QuotaPolicy{Kind: PolicyCountWindow, MaxUses: maxUses, Cooldown: cooldown}
}

// RateWindow returns a policy capping requests and estimated tokens per window.
func RateWindow(maxRequests, maxTokens int, window time.Duration) QuotaPolicy {
	return QuotaPolicy{
		Kind:        PolicyRateWindow,
		MaxRequests: maxRequests,
		MaxTokens:   maxTokens,
		Window:      window,
	}
}

// UsageState holds the durable counters for one (user, provider) pair.
// Counters only move forward within a window; they are zeroed lazily when an
// expired cooldown is observed by the next check, never by a background sweep.
type UsageState struct {
	// Uses counts completed calls under a CountWindow policy
	Uses int `json:"uses,omitempty"`

	// Requests counts completed calls under a RateWindow policy
	Requests int `json:"requests,omitempty"`

	// Tokens accumulates estimated token cost under a RateWindow policy
	Tokens int `json:"tokens,omitempty"`

	// CooldownUntil is when the current cooldown expires (zero if none)
	CooldownUntil time.Time `json:"cooldown_until"`
}

// Verdict is the outcome of a quota check.
type Verdict struct {
	// Allowed reports whether the call may proceed
	Allowed bool

	// RetryAfter is how long the user must wait when denied
	RetryAfter time.Duration
}

// Outcome classifies the result of routing one inbound message.
type Outcome string

const (
	// OutcomeAnswer means the provider produced a reply
	OutcomeAnswer Outcome = "answer"
	// OutcomeQuotaExceeded means the usage ledger denied the call
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	// OutcomeNoProviderSelected means the user has not picked a provider yet
	OutcomeNoProviderSelected Outcome = "no_provider_selected"
	// OutcomeCapabilityMismatch means the selected provider cannot handle
	// the message kind (e.g. an image to a text-only provider)
	OutcomeCapabilityMismatch Outcome = "capability_mismatch"
	// OutcomeProviderFailed means the external provider call failed
	OutcomeProviderFailed Outcome = "provider_failed"
)

// Result is what the transport layer relays back to the user.
// Text is always safe to show; raw provider errors never appear in it.
type Result struct {
	Outcome Outcome

	// Text is the user-facing reply
	Text string

	// RetryAfter is set when Outcome is OutcomeQuotaExceeded
	RetryAfter time.Duration
}

// ProviderSpec describes one routable provider: its capabilities, its quota
// policy and the client used to reach it. Adding a provider is a registry
// entry, not a new code path.
type ProviderSpec struct {
	ID ProviderID

	// Name is the display name used in user-facing messages
	Name string

	Caps   Capabilities
	Policy QuotaPolicy

	// Client performs the actual API calls. Providers with
	// Caps.Memory == MemoryHandle must implement SessionClient.
	Client Client
}

// Config holds manager configuration
type Config struct {
	// Providers is the provider registry (required, at least one entry)
	Providers []ProviderSpec

	// MaxTurns caps client-side history length before truncation (default: 20)
	MaxTurns int

	// AssumedOutputTokens is the fixed output estimate added to each
	// request's token cost (default: 500)
	AssumedOutputTokens int

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics is used for tracking routing operations (default: NoopMetrics)
	Metrics Metrics

	// Now overrides the clock, for tests (default: time.Now().UTC)
	Now func() time.Time
}
