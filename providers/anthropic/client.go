// Package anthropic implements a chatgate.Client for Anthropic's Messages
// API, including base64 image analysis.
package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// Client talks to the Anthropic Messages API.
type Client struct {
	opts       options
	httpClient *http.Client
}

// New constructs an Anthropic client.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	if _, ok := o.headers["anthropic-version"]; !ok {
		o.headers["anthropic-version"] = "2023-06-01"
	}
	return &Client{opts: o, httpClient: o.httpClient}
}

func (c *Client) SendChat(ctx context.Context, history []chatgate.Turn, text string) (string, error) {
	messages := make([]message, 0, len(history)+1)
	system := c.opts.systemPrompt
	for _, turn := range history {
		// The Messages API takes instructions in a separate system field,
		// never as a message role.
		if turn.Role == chatgate.RoleSystem {
			system = turn.Content
			continue
		}
		messages = append(messages, message{
			Role:    string(turn.Role),
			Content: []contentBlock{{Type: "text", Text: turn.Content}},
		})
	}
	messages = append(messages, message{
		Role:    "user",
		Content: []contentBlock{{Type: "text", Text: text}},
	})

	return c.send(ctx, messagesRequest{
		Model:     c.opts.model,
		Messages:  messages,
		System:    system,
		MaxTokens: c.opts.maxTokens,
	})
}

func (c *Client) SendVision(ctx context.Context, image []byte, prompt string) (string, error) {
	messages := []message{{
		Role: "user",
		Content: []contentBlock{
			{Type: "image", Source: &imageSource{
				Type:      "base64",
				MediaType: http.DetectContentType(image),
				Data:      base64.StdEncoding.EncodeToString(image),
			}},
			{Type: "text", Text: prompt},
		},
	}}

	return c.send(ctx, messagesRequest{
		Model:     c.opts.model,
		Messages:  messages,
		System:    c.opts.systemPrompt,
		MaxTokens: c.opts.maxTokens,
	})
}

func (c *Client) send(ctx context.Context, payload messagesRequest) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", chatgate.NewProviderError(chatgate.ProviderClaude, chatgate.KindBadRequest, fmt.Errorf("marshal payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.opts.baseURL, "/")+"/messages", buf)
	if err != nil {
		return "", chatgate.NewProviderError(chatgate.ProviderClaude, chatgate.KindBadRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.opts.apiKey)
	for k, v := range c.opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", chatgate.NewProviderError(chatgate.ProviderClaude, chatgate.KindUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", chatgate.NewProviderError(chatgate.ProviderClaude, classifyStatus(resp.StatusCode),
			fmt.Errorf("%s: %s", resp.Status, data))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", chatgate.NewProviderError(chatgate.ProviderClaude, chatgate.KindUnknown, fmt.Errorf("decode response: %w", err))
	}
	return parsed.joinText(), nil
}

// classifyStatus maps an HTTP status to an error kind. Anthropic signals
// capacity problems with 529 as well as the usual 5xx range.
func classifyStatus(status int) chatgate.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return chatgate.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return chatgate.KindAuthFailed
	case status >= 500:
		return chatgate.KindOverloaded
	case status >= 400:
		return chatgate.KindBadRequest
	default:
		return chatgate.KindUnknown
	}
}
