package anthropic

import (
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	apiKey       string
	model        string
	baseURL      string
	systemPrompt string
	maxTokens    int
	httpClient   *http.Client
	headers      map[string]string
	timeout      time.Duration
}

func defaultOptions() options {
	return options{
		model:     "claude-sonnet-4-5-20250929",
		baseURL:   "https://api.anthropic.com/v1",
		maxTokens: 1024,
		timeout:   60 * time.Second,
		headers:   map[string]string{},
	}
}

func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithSystemPrompt sets the system field sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}
