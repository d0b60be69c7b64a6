package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/botfold/chatgate/pkg/chatgate"
)

type roundTrip func(*http.Request) (*http.Response, error)

func (r roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return r(req)
}

func jsonResponse(status int, body any) *http.Response {
	buf, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(buf)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestSendChat(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-API-Key") != "key" {
			t.Fatalf("missing api key header")
		}
		if req.Header.Get("anthropic-version") == "" {
			t.Fatalf("missing anthropic-version header")
		}
		var payload messagesRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.System != "be brief" {
			t.Fatalf("unexpected system: %q", payload.System)
		}
		if len(payload.Messages) != 3 {
			t.Fatalf("got %d messages, want 3", len(payload.Messages))
		}
		last := payload.Messages[2]
		if last.Role != "user" || last.Content[0].Text != "and now?" {
			t.Fatalf("unexpected final message: %+v", last)
		}
		return jsonResponse(200, messagesResponse{
			ID:         "msg_1",
			Content:    []contentBlock{{Type: "text", Text: "Hello"}, {Type: "text", Text: " again"}},
			StopReason: "end_turn",
		}), nil
	})

	client := New(
		WithAPIKey("key"),
		WithSystemPrompt("be brief"),
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
	if reply != "Hello again" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestSendChat_SystemTurnMovesToSystemField(t *testing.T) {
	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		var payload messagesRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.System != "you are a pirate" {
			t.Fatalf("unexpected system: %q", payload.System)
		}
		for _, m := range payload.Messages {
			if m.Role == "system" {
				t.Fatalf("system role leaked into messages")
			}
		}
		return jsonResponse(200, messagesResponse{Content: []contentBlock{{Type: "text", Text: "arr"}}}), nil
	})

	client := New(WithAPIKey("key"), WithHTTPClient(&http.Client{Transport: transport}))

	history := []chatgate.Turn{{Role: chatgate.RoleSystem, Content: "you are a pirate"}}
	reply, err := client.SendChat(context.Background(), history, "hi")
	if err != nil {
		t.Fatalf("SendChat error: %v", err)
	}
	if reply != "arr" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestSendVision(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	transport := roundTrip(func(req *http.Request) (*http.Response, error) {
		var payload messagesRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		blocks := payload.Messages[0].Content
		if len(blocks) != 2 || blocks[0].Type != "image" {
			t.Fatalf("unexpected content blocks: %+v", blocks)
		}
		if blocks[0].Source.Data != base64.StdEncoding.EncodeToString(image) {
			t.Fatalf("image not base64 encoded")
		}
		if blocks[1].Text != "What is this?" {
			t.Fatalf("unexpected prompt: %q", blocks[1].Text)
		}
		return jsonResponse(200, messagesResponse{Content: []contentBlock{{Type: "text", Text: "A photo"}}}), nil
	})

	client := New(WithAPIKey("key"), WithHTTPClient(&http.Client{Transport: transport}))

	reply, err := client.SendVision(context.Background(), image, "What is this?")
	if err != nil {
		t.Fatalf("SendVision error: %v", err)
	}
	if reply != "A photo" {
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
		{529, chatgate.KindOverloaded},
		{400, chatgate.KindBadRequest},
	}

	for _, tc := range cases {
		transport := roundTrip(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, map[string]string{"type": "error"}), nil
		})
		client := New(WithAPIKey("key"), WithHTTPClient(&http.Client{Transport: transport}))

		_, err := client.SendChat(context.Background(), nil, "hi")
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		var perr *chatgate.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("status %d: error is not a ProviderError: %v", tc.status, err)
		}
		if perr.Kind != tc.kind {
			t.Fatalf("status %d: got kind %s, want %s", tc.status, perr.Kind, tc.kind)
		}
		if perr.Provider != chatgate.ProviderClaude {
			t.Fatalf("status %d: got provider %s", tc.status, perr.Provider)
		}
	}
}
