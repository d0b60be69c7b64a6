// Package openairesponses implements a chatgate.SessionClient for the OpenAI
// Responses API. Conversation state lives server-side: each reply carries a
// response ID which, passed back as previous_response_id, continues the same
// conversation. The response ID is the session handle.
package openairesponses

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

// Client talks to an OpenAI Responses API endpoint.
type Client struct {
	provider   chatgate.ProviderID
	opts       options
	httpClient *http.Client
}

// New constructs a client for the given provider identity.
func New(provider chatgate.ProviderID, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	return &Client{provider: provider, opts: o, httpClient: o.httpClient}
}

func (c *Client) SendChat(ctx context.Context, history []chatgate.Turn, text string) (string, error) {
	input := make([]inputMessage, 0, len(history)+1)
	for _, turn := range history {
		input = append(input, inputMessage{
			Role:    string(turn.Role),
			Content: []inputPart{{Type: partType(turn.Role), Text: turn.Content}},
		})
	}
	input = append(input, inputMessage{
		Role:    "user",
		Content: []inputPart{{Type: "input_text", Text: text}},
	})

	reply, _, err := c.send(ctx, input, "")
	return reply, err
}

func (c *Client) SendSession(ctx context.Context, handle any, text string) (string, any, error) {
	previous := ""
	if handle != nil {
		id, ok := handle.(string)
		if !ok {
			return "", handle, chatgate.NewProviderError(c.provider, chatgate.KindBadRequest,
				fmt.Errorf("session handle has type %T, want string", handle))
		}
		previous = id
	}

	input := []inputMessage{{
		Role:    "user",
		Content: []inputPart{{Type: "input_text", Text: text}},
	}}
	reply, id, err := c.send(ctx, input, previous)
	if err != nil {
		return "", handle, err
	}
	return reply, id, nil
}

func (c *Client) SendVision(ctx context.Context, image []byte, prompt string) (string, error) {
	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	input := []inputMessage{{
		Role: "user",
		Content: []inputPart{
			{Type: "input_text", Text: prompt},
			{Type: "input_image", ImageURL: dataURL},
		},
	}}

	reply, _, err := c.send(ctx, input, "")
	return reply, err
}

func (c *Client) send(ctx context.Context, input []inputMessage, previousID string) (string, string, error) {
	payload := responsesRequest{
		Model:              c.opts.model,
		Input:              input,
		Instructions:       c.opts.instructions,
		PreviousResponseID: previousID,
		MaxOutputTokens:    c.opts.maxTokens,
		Store:              true,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", "", chatgate.NewProviderError(c.provider, chatgate.KindBadRequest, fmt.Errorf("marshal payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.opts.baseURL, "/")+"/responses", buf)
	if err != nil {
		return "", "", chatgate.NewProviderError(c.provider, chatgate.KindBadRequest, err)
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
		return "", "", chatgate.NewProviderError(c.provider, chatgate.KindUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", chatgate.NewProviderError(c.provider, classifyStatus(resp.StatusCode),
			fmt.Errorf("%s: %s", resp.Status, data))
	}

	var parsed responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", chatgate.NewProviderError(c.provider, chatgate.KindUnknown, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return "", "", chatgate.NewProviderError(c.provider, chatgate.KindUnknown,
			fmt.Errorf("response error: %s", parsed.Error.Code))
	}
	return parsed.joinText(), parsed.ID, nil
}

// partType maps a conversation role to the Responses API content part type:
// assistant turns carry output_text, everything else input_text.
func partType(role chatgate.Role) string {
	if role == chatgate.RoleAssistant {
		return "output_text"
	}
	return "input_text"
}

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
