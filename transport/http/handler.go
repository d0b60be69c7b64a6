// Package http exposes a chatgate.Manager over plain net/http. The handler
// is router-agnostic: mount it under any mux that can strip a path prefix.
package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// UserIDExtractor extracts the user ID from an HTTP request.
// Return empty string if the user is not authenticated.
type UserIDExtractor func(r *http.Request) string

// FromHeader returns a UserIDExtractor that reads the user ID from a header.
func FromHeader(headerName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// Config holds handler configuration.
type Config struct {
	// Manager routes the messages (required)
	Manager *chatgate.Manager

	// GetUserID extracts the user ID from a request
	// Default: FromHeader("X-User-ID")
	GetUserID UserIDExtractor

	// Logger receives request logs
	// Default: chatgate.NoopLogger
	Logger chatgate.Logger

	// MaxImageBytes caps decoded image payloads
	// Default: 8 MiB
	MaxImageBytes int
}

// Handler serves the chat endpoints:
//
//	POST   /chat       {"text": "..."}
//	POST   /image      {"image": "<base64>", "prompt": "..."}
//	POST   /select     {"provider": "..."}
//	DELETE /select
//	POST   /reset
//	GET    /status
//	GET    /providers
type Handler struct {
	manager   *chatgate.Manager
	getUserID UserIDExtractor
	log       chatgate.Logger
	maxImage  int
}

// NewHandler builds a Handler from config, applying defaults.
func NewHandler(config Config) (*Handler, error) {
	if config.Manager == nil {
		return nil, errors.New("transport: Manager is required")
	}
	if config.GetUserID == nil {
		config.GetUserID = FromHeader("X-User-ID")
	}
	if config.Logger == nil {
		config.Logger = &chatgate.NoopLogger{}
	}
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 8 << 20
	}
	return &Handler{
		manager:   config.Manager,
		getUserID: config.GetUserID,
		log:       config.Logger,
		maxImage:  config.MaxImageBytes,
	}, nil
}

type chatRequest struct {
	Text string `json:"text"`
}

type imageRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type selectRequest struct {
	Provider string `json:"provider"`
}

type resultResponse struct {
	Outcome    chatgate.Outcome `json:"outcome"`
	Text       string           `json:"text"`
	RetryAfter float64          `json:"retry_after_seconds,omitempty"`
}

type providerInfo struct {
	ID     chatgate.ProviderID `json:"id"`
	Name   string              `json:"name"`
	Vision bool                `json:"vision"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	user := chatgate.UserID(h.getUserID(r))
	if user == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.log.Debug("request received",
		chatgate.Field{Key: "request_id", Value: requestID},
		chatgate.Field{Key: "method", Value: r.Method},
		chatgate.Field{Key: "path", Value: r.URL.Path},
	)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/chat":
		h.handleChat(w, r, user)
	case r.Method == http.MethodPost && r.URL.Path == "/image":
		h.handleImage(w, r, user)
	case r.Method == http.MethodPost && r.URL.Path == "/select":
		h.handleSelect(w, r, user)
	case r.Method == http.MethodDelete && r.URL.Path == "/select":
		h.manager.ClearSelection(user)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == "/reset":
		h.manager.ResetSession(user)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == "/status":
		writeJSON(w, http.StatusOK, map[string]string{"status": h.manager.Status(user)})
	case r.Method == http.MethodGet && r.URL.Path == "/providers":
		h.handleProviders(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request, user chatgate.UserID) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	res, err := h.manager.HandleText(r.Context(), user, req.Text)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeResult(w, res)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request, user chatgate.UserID) {
	var req imageRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		http.Error(w, "image must be base64 encoded", http.StatusBadRequest)
		return
	}
	if len(image) == 0 || len(image) > h.maxImage {
		http.Error(w, fmt.Sprintf("image must be 1..%d bytes", h.maxImage), http.StatusBadRequest)
		return
	}
	res, err := h.manager.HandleImage(r.Context(), user, image, req.Prompt)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeResult(w, res)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request, user chatgate.UserID) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	res, err := h.manager.HandleSelection(r.Context(), user, chatgate.ProviderID(req.Provider))
	if err != nil {
		if errors.Is(err, chatgate.ErrUnknownProvider) {
			http.Error(w, "unknown provider", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeResult(w, res)
}

func (h *Handler) handleProviders(w http.ResponseWriter) {
	specs := h.manager.Providers()
	out := make([]providerInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, providerInfo{ID: spec.ID, Name: spec.Name, Vision: spec.Caps.Vision})
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(r *http.Request, v any) error {
	defer io.Copy(io.Discard, r.Body)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeResult(w http.ResponseWriter, res chatgate.Result) {
	body := resultResponse{
		Outcome:    res.Outcome,
		Text:       res.Text,
		RetryAfter: res.RetryAfter.Seconds(),
	}
	if res.Outcome == chatgate.OutcomeQuotaExceeded {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
	}
	writeJSON(w, statusFor(res.Outcome), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a routing outcome to an HTTP status.
func statusFor(outcome chatgate.Outcome) int {
	switch outcome {
	case chatgate.OutcomeAnswer:
		return http.StatusOK
	case chatgate.OutcomeQuotaExceeded:
		return http.StatusTooManyRequests
	case chatgate.OutcomeNoProviderSelected:
		return http.StatusConflict
	case chatgate.OutcomeCapabilityMismatch:
		return http.StatusUnprocessableEntity
	case chatgate.OutcomeProviderFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}
