// Package echo registers chat routes on an Echo router.
package echo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	goecho "github.com/labstack/echo/v4"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// UserIDExtractor extracts the user ID from an Echo context
// Return empty string if user is not authenticated
type UserIDExtractor func(c goecho.Context) string

// FromHeader returns a UserIDExtractor that reads the user ID from a header.
func FromHeader(headerName string) UserIDExtractor {
	return func(c goecho.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// Config holds route configuration
type Config struct {
	// Manager routes the messages (required)
	Manager *chatgate.Manager

	// GetUserID extracts user ID from context
	// Default: FromHeader("X-User-ID")
	GetUserID UserIDExtractor

	// MaxImageBytes caps decoded image payloads
	// Default: 8 MiB
	MaxImageBytes int
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

// Register mounts the chat endpoints on the given Echo instance or group.
func Register(e *goecho.Echo, cfg Config) {
	if cfg.Manager == nil {
		panic("chatgate/echo: Config.Manager is required")
	}
	if cfg.GetUserID == nil {
		cfg.GetUserID = FromHeader("X-User-ID")
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 8 << 20
	}

	authed := func(handler func(c goecho.Context, user chatgate.UserID) error) goecho.HandlerFunc {
		return func(c goecho.Context) error {
			user := chatgate.UserID(cfg.GetUserID(c))
			if user == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return handler(c, user)
		}
	}

	e.POST("/chat", authed(func(c goecho.Context, user chatgate.UserID) error {
		var req chatRequest
		if err := c.Bind(&req); err != nil || req.Text == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
		}
		res, err := cfg.Manager.HandleText(c.Request().Context(), user, req.Text)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return writeResult(c, res)
	}))

	e.POST("/image", authed(func(c goecho.Context, user chatgate.UserID) error {
		var req imageRequest
		if err := c.Bind(&req); err != nil || req.Image == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "image is required"})
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(image) == 0 || len(image) > cfg.MaxImageBytes {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid image payload"})
		}
		res, err := cfg.Manager.HandleImage(c.Request().Context(), user, image, req.Prompt)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return writeResult(c, res)
	}))

	e.POST("/select", authed(func(c goecho.Context, user chatgate.UserID) error {
		var req selectRequest
		if err := c.Bind(&req); err != nil || req.Provider == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "provider is required"})
		}
		res, err := cfg.Manager.HandleSelection(c.Request().Context(), user, chatgate.ProviderID(req.Provider))
		if err != nil {
			if errors.Is(err, chatgate.ErrUnknownProvider) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown provider"})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return writeResult(c, res)
	}))

	e.DELETE("/select", authed(func(c goecho.Context, user chatgate.UserID) error {
		cfg.Manager.ClearSelection(user)
		return c.NoContent(http.StatusNoContent)
	}))

	e.POST("/reset", authed(func(c goecho.Context, user chatgate.UserID) error {
		cfg.Manager.ResetSession(user)
		return c.NoContent(http.StatusNoContent)
	}))

	e.GET("/status", authed(func(c goecho.Context, user chatgate.UserID) error {
		return c.JSON(http.StatusOK, map[string]string{"status": cfg.Manager.Status(user)})
	}))

	e.GET("/providers", func(c goecho.Context) error {
		specs := cfg.Manager.Providers()
		out := make([]map[string]any, 0, len(specs))
		for _, spec := range specs {
			out = append(out, map[string]any{"id": spec.ID, "name": spec.Name, "vision": spec.Caps.Vision})
		}
		return c.JSON(http.StatusOK, out)
	})
}

func writeResult(c goecho.Context, res chatgate.Result) error {
	if res.Outcome == chatgate.OutcomeQuotaExceeded {
		c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
	}
	return c.JSON(statusFor(res.Outcome), resultResponse{
		Outcome:    res.Outcome,
		Text:       res.Text,
		RetryAfter: res.RetryAfter.Seconds(),
	})
}

func statusFor(outcome chatgate.Outcome) int {
	switch outcome {
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
