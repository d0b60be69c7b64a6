package openaicompat

import (
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	apiKey       string
	model        string
	visionModel  string
	baseURL      string
	systemPrompt string
	maxTokens    int
	httpClient   *http.Client
	headers      map[string]string
	timeout      time.Duration
}

func defaultOptions() options {
	return options{
		baseURL:   "https://api.openai.com/v1",
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

// WithVisionModel overrides the model used for image requests. When unset,
// image requests use the chat model.
func WithVisionModel(model string) Option {
	return func(o *options) { o.visionModel = model }
}

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithSystemPrompt sets an instruction message prepended to every request.
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
