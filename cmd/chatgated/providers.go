package main

import (
	"time"

	"github.com/botfold/chatgate/pkg/chatgate"
	"github.com/botfold/chatgate/providers/anthropic"
	"github.com/botfold/chatgate/providers/openaicompat"
	"github.com/botfold/chatgate/providers/openairesponses"
)

const systemPrompt = "You are a helpful, witty, and knowledgeable assistant. " +
	"You provide clear, accurate, and friendly responses and remember context " +
	"from earlier in the conversation."

// buildProviders registers one spec per configured API key. Policies are the
// service defaults; tune them per deployment.
func buildProviders(cfg serverConfig) []chatgate.ProviderSpec {
	var specs []chatgate.ProviderSpec

	if cfg.GeminiKey != "" {
		specs = append(specs, chatgate.ProviderSpec{
			ID:     chatgate.ProviderGemini,
			Name:   "Gemini",
			Caps:   chatgate.Capabilities{Vision: true, Memory: chatgate.MemoryHistory},
			Policy: chatgate.Unlimited(),
			Client: openaicompat.New(chatgate.ProviderGemini,
				openaicompat.WithAPIKey(cfg.GeminiKey),
				openaicompat.WithBaseURL("https://generativelanguage.googleapis.com/v1beta/openai"),
				openaicompat.WithModel("gemini-2.0-flash"),
				openaicompat.WithSystemPrompt(systemPrompt),
			),
		})
	}

	if cfg.OpenAIKey != "" {
		specs = append(specs, chatgate.ProviderSpec{
			ID:     chatgate.ProviderChatGPT,
			Name:   "ChatGPT",
			Caps:   chatgate.Capabilities{Vision: true, Memory: chatgate.MemoryHandle},
			Policy: chatgate.RateWindow(50, 100000, time.Hour),
			Client: openairesponses.New(chatgate.ProviderChatGPT,
				openairesponses.WithAPIKey(cfg.OpenAIKey),
				openairesponses.WithModel("gpt-4o"),
				openairesponses.WithInstructions(systemPrompt),
			),
		})
	}

	if cfg.XAIKey != "" {
		specs = append(specs, chatgate.ProviderSpec{
			ID:     chatgate.ProviderGrok,
			Name:   "Grok",
			Caps:   chatgate.Capabilities{Vision: true, Memory: chatgate.MemoryHistory},
			Policy: chatgate.CountWindow(25, time.Hour),
			Client: openaicompat.New(chatgate.ProviderGrok,
				openaicompat.WithAPIKey(cfg.XAIKey),
				openaicompat.WithBaseURL("https://api.x.ai/v1"),
				openaicompat.WithModel("grok-4"),
				openaicompat.WithSystemPrompt(systemPrompt),
			),
		})
	}

	if cfg.AnthropicKey != "" {
		specs = append(specs, chatgate.ProviderSpec{
			ID:     chatgate.ProviderClaude,
			Name:   "Claude",
			Caps:   chatgate.Capabilities{Vision: true, Memory: chatgate.MemoryHistory},
			Policy: chatgate.CountWindow(30, time.Hour),
			Client: anthropic.New(
				anthropic.WithAPIKey(cfg.AnthropicKey),
				anthropic.WithSystemPrompt(systemPrompt),
			),
		})
	}

	if cfg.DeepSeekKey != "" {
		specs = append(specs, chatgate.ProviderSpec{
			ID:     chatgate.ProviderDeepSeek,
			Name:   "DeepSeek",
			Caps:   chatgate.Capabilities{Memory: chatgate.MemoryHistory},
			Policy: chatgate.RateWindow(100, 200000, time.Hour),
			Client: openaicompat.New(chatgate.ProviderDeepSeek,
				openaicompat.WithAPIKey(cfg.DeepSeekKey),
				openaicompat.WithBaseURL("https://api.deepseek.com"),
				openaicompat.WithModel("deepseek-chat"),
				openaicompat.WithSystemPrompt(systemPrompt),
			),
		})
	}

	return specs
}
