package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/botfold/chatgate/pkg/chatgate"
)

type roundTrip func(*http.Request) (*http.Response, error)

func (r roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return r(req)
}

func replyWith(text string) *http.Response {
	body := map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
	}
	buf, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewReader(buf)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestSendChat(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") != "Bearer key" {
			t.Fatalf("missing bearer token")
		}
		if !strings.HasSuffix(req.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var payload chatRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "gpt-4o" {
			t.Fatalf("unexpected model: %s", payload.Model)
		}
		// system prompt + 2 history turns + the new message
		if len(payload.Messages) != 4 {
			t.Fatalf("got %d messages, want 4", len(payload.Messages))
		}
		if payload.Messages[0].Role != "system" {
			t.Fatalf("first message is %s, want system", payload.Messages[0].Role)
		}
		last := payload.Messages[3]
		if last.Role != "user" || last.Content != "and now?" {
			t.Fatalf("unexpected final message: %+v", last)
		}
		return replyWith("Sure."), nil
	})

	client := New(chatgate.ProviderChatGPT,
		WithAPIKey("key"),
		WithModel("gpt-4o"),
		WithSystemPrompt("be helpful"),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	history := []chatgate.Turn{
		{Role: chatgate.RoleUser, Content: "hi"},
		{Role: chatgate.RoleAssistant, Content: "hello"},
	}
	reply, err := client.SendChat(context.Background(), history, "and now?")
	if err != nil {
		t.Fatalf("SendChat error: %v", err)
	}
	if reply != "Sure." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestSendChat_NoSystemPrompt(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		var payload chatRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" {
			t.Fatalf("unexpected messages: %+v", payload.Messages)
		}
		return replyWith("ok"), nil
	})

	client := New(chatgate.ProviderDeepSeek,
		WithAPIKey("key"),
		WithModel("deepseek-chat"),
		WithBaseURL("https://api.deepseek.com/v1"),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	if _, err := client.SendChat(context.Background(), nil, "hi"); err != nil {
		t.Fatalf("SendChat error: %v", err)
	}
}

func TestSendVision(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string        `json:"role"`
				Content []contentPart `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "gpt-4o" {
			t.Fatalf("vision model not used: %s", payload.Model)
		}
		parts := payload.Messages[0].Content
		if len(parts) != 2 || parts[0].Type != "text" || parts[1].Type != "image_url" {
			t.Fatalf("unexpected content parts: %+v", parts)
		}
		if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
			t.Fatalf("image not sent as data URL: %s", parts[1].ImageURL.URL)
		}
		return replyWith("A cat."), nil
	})

	client := New(chatgate.ProviderChatGPT,
		WithAPIKey("key"),
		WithModel("gpt-3.5-turbo"),
		WithVisionModel("gpt-4o"),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	reply, err := client.SendVision(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0}, "What is this?")
	if err != nil {
		t.Fatalf("SendVision error: %v", err)
	}
	if reply != "A cat." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestSendChat_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   chatgate.ErrorKind
	}{
		{429, chatgate.KindRateLimited},
		{401, chatgate.KindAuthFailed},
		{403, chatgate.KindAuthFailed},
		{503, chatgate.KindOverloaded},
		{404, chatgate.KindBadRequest},
	}

	for _, tc := range cases {
		transport := roundTrip(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: tc.status,
				Status:     http.StatusText(tc.status),
				Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"nope"}}`)),
			}, nil
		})
		client := New(chatgate.ProviderGrok,
			WithAPIKey("key"),
			WithModel("grok-4"),
			WithBaseURL("https://api.x.ai/v1"),
			WithHTTPClient(&http.Client{Transport: transport}),
		)

		_, err := client.SendChat(context.Background(), nil, "hi")
		var perr *chatgate.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("status %d: error is not a ProviderError: %v", tc.status, err)
		}
		if perr.Kind != tc.kind {
			t.Fatalf("status %d: got kind %s, want %s", tc.status, perr.Kind, tc.kind)
		}
		if perr.Provider != chatgate.ProviderGrok {
			t.Fatalf("status %d: got provider %s", tc.status, perr.Provider)
		}
	}
}

func TestSendChat_EmptyChoices(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(`{"choices":[]}`)),
		}, nil
	})
	client := New(chatgate.ProviderChatGPT,
		WithAPIKey("key"),
		WithModel("gpt-4o"),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	_, err := client.SendChat(context.Background(), nil, "hi")
	var perr *chatgate.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error is not a ProviderError: %v", err)
	}
	if perr.Kind != chatgate.KindUnknown {
		t.Fatalf("got kind %s, want %s", perr.Kind, chatgate.KindUnknown)
	}
}
