// Package gin registers chat routes on a Gin router.
package gin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// UserIDExtractor extracts the user ID from a Gin context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gongin.Context) string

// FromHeader returns a UserIDExtractor that reads the user ID from a header.
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
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
	Text string `json:"text" binding:"required"`
}

type imageRequest struct {
	Image  string `json:"image" binding:"required"`
	Prompt string `json:"prompt"`
}

type selectRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// Register mounts the chat endpoints on the given router group.
func Register(r gongin.IRoutes, cfg Config) {
	if cfg.Manager == nil {
		panic("chatgate/gin: Config.Manager is required")
	}
	if cfg.GetUserID == nil {
		cfg.GetUserID = FromHeader("X-User-ID")
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 8 << 20
	}

	authed := func(handler func(c *gongin.Context, user chatgate.UserID)) gongin.HandlerFunc {
		return func(c *gongin.Context) {
			user := chatgate.UserID(cfg.GetUserID(c))
			if user == "" {
				c.JSON(http.StatusUnauthorized, gongin.H{"error": "unauthorized"})
				return
			}
			handler(c, user)
		}
	}

	r.POST("/chat", authed(func(c *gongin.Context, user chatgate.UserID) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gongin.H{"error": "text is required"})
			return
		}
		res, err := cfg.Manager.HandleText(c.Request.Context(), user, req.Text)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gongin.H{"error": "internal error"})
			return
		}
		writeResult(c, res)
	}))

	r.POST("/image", authed(func(c *gongin.Context, user chatgate.UserID) {
		var req imageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gongin.H{"error": "image is required"})
			return
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(image) == 0 || len(image) > cfg.MaxImageBytes {
			c.JSON(http.StatusBadRequest, gongin.H{"error": "invalid image payload"})
			return
		}
		res, err := cfg.Manager.HandleImage(c.Request.Context(), user, image, req.Prompt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gongin.H{"error": "internal error"})
			return
		}
		writeResult(c, res)
	}))

	r.POST("/select", authed(func(c *gongin.Context, user chatgate.UserID) {
		var req selectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gongin.H{"error": "provider is required"})
			return
		}
		res, err := cfg.Manager.HandleSelection(c.Request.Context(), user, chatgate.ProviderID(req.Provider))
		if err != nil {
			if errors.Is(err, chatgate.ErrUnknownProvider) {
				c.JSON(http.StatusNotFound, gongin.H{"error": "unknown provider"})
				return
			}
			c.JSON(http.StatusInternalServerError, gongin.H{"error": "internal error"})
			return
		}
		writeResult(c, res)
	}))

	r.DELETE("/select", authed(func(c *gongin.Context, user chatgate.UserID) {
		cfg.Manager.ClearSelection(user)
		c.Status(http.StatusNoContent)
	}))

	r.POST("/reset", authed(func(c *gongin.Context, user chatgate.UserID) {
		cfg.Manager.ResetSession(user)
		c.Status(http.StatusNoContent)
	}))

	r.GET("/status", authed(func(c *gongin.Context, user chatgate.UserID) {
		c.JSON(http.StatusOK, gongin.H{"status": cfg.Manager.Status(user)})
	}))

	r.GET("/providers", func(c *gongin.Context) {
		specs := cfg.Manager.Providers()
		out := make([]gongin.H, 0, len(specs))
		for _, spec := range specs {
			out = append(out, gongin.H{"id": spec.ID, "name": spec.Name, "vision": spec.Caps.Vision})
		}
		c.JSON(http.StatusOK, out)
	})
}

func writeResult(c *gongin.Context, res chatgate.Result) {
	if res.Outcome == chatgate.OutcomeQuotaExceeded {
		c.Header("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
	}
	c.JSON(statusFor(res.Outcome), gongin.H{
		"outcome":             res.Outcome,
		"text":                res.Text,
		"retry_after_seconds": res.RetryAfter.Seconds(),
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
