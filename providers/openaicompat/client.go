// Package openaicompat implements a chatgate.Client against any
// OpenAI-compatible chat completions endpoint. Pointing the base URL at
// api.openai.com, api.x.ai or api.deepseek.com covers ChatGPT, Grok and
// DeepSeek with the same wire format.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	provider   chatgate.ProviderID
	opts       options
	httpClient *http.Client
}

// New constructs a client for the given provider identity. The identity is
// attached to every classified error so the router can log which vendor
// failed.
func New(provider chatgate.ProviderID, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	if o.visionModel == "" {
		o.visionModel = o.model
	}
	return &Client{provider: provider, opts: o, httpClient: o.httpClient}
}

func (c *Client) SendChat(ctx context.Context, history []chatgate.Turn, text string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	if c.opts.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.opts.systemPrompt})
	}
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	return c.complete(ctx, chatRequest{
		Model:     c.opts.model,
		Messages:  messages,
		MaxTokens: c.opts.maxTokens,
	})
}

func (c *Client) SendVision(ctx context.Context, image []byte, prompt string) (string, error) {
	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	messages := []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}}

	return c.complete(ctx, chatRequest{
		Model:     c.opts.visionModel,
		Messages:  messages,
		MaxTokens: c.opts.maxTokens,
	})
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", chatgate.NewProviderError(c.provider, chatgate.KindBadRequest, fmt.Errorf("marshal payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.opts.baseURL, "/")+"/chat/completions", buf)
	if err != nil {
		return "", chatgate.NewProviderError(c.provider, chatgate.KindBadRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)
	}
	for k, v := range c.opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", chatgate.NewProviderError(c.provider, chatgate.KindUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", chatgate.NewProviderError(c.provider, classifyStatus(resp.StatusCode),
			fmt.Errorf("%s: %s", resp.Status, data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", chatgate.NewProviderError(c.provider, chatgate.KindUnknown, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", chatgate.NewProviderError(c.provider, chatgate.KindUnknown, errors.New("empty choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// classifyStatus maps an HTTP status to an error kind. Classification is
// structural: no vendor error text is inspected.
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
