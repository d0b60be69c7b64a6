// Package fiber registers chat routes on a Fiber app.
package fiber

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	gofiber "github.com/gofiber/fiber/v2"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// UserIDExtractor extracts the user ID from a Fiber context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gofiber.Ctx) string

// FromHeader returns a UserIDExtractor that reads the user ID from a header.
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gofiber.Ctx) string {
		return c.Get(headerName)
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

// Register mounts the chat endpoints on the given Fiber router.
func Register(app gofiber.Router, cfg Config) {
	if cfg.Manager == nil {
		panic("chatgate/fiber: Config.Manager is required")
	}
	if cfg.GetUserID == nil {
		cfg.GetUserID = FromHeader("X-User-ID")
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 8 << 20
	}

	authed := func(handler func(c *gofiber.Ctx, user chatgate.UserID) error) gofiber.Handler {
		return func(c *gofiber.Ctx) error {
			user := chatgate.UserID(cfg.GetUserID(c))
			if user == "" {
				return c.Status(http.StatusUnauthorized).JSON(gofiber.Map{"error": "unauthorized"})
			}
			return handler(c, user)
		}
	}

	app.Post("/chat", authed(func(c *gofiber.Ctx, user chatgate.UserID) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil || req.Text == "" {
			return c.Status(http.StatusBadRequest).JSON(gofiber.Map{"error": "text is required"})
		}
		res, err := cfg.Manager.HandleText(c.UserContext(), user, req.Text)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(gofiber.Map{"error": "internal error"})
		}
		return writeResult(c, res)
	}))

	app.Post("/image", authed(func(c *gofiber.Ctx, user chatgate.UserID) error {
		var req imageRequest
		if err := c.BodyParser(&req); err != nil || req.Image == "" {
			return c.Status(http.StatusBadRequest).JSON(gofiber.Map{"error": "image is required"})
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(image) == 0 || len(image) > cfg.MaxImageBytes {
			return c.Status(http.StatusBadRequest).JSON(gofiber.Map{"error": "invalid image payload"})
		}
		res, err := cfg.Manager.HandleImage(c.UserContext(), user, image, req.Prompt)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(gofiber.Map{"error": "internal error"})
		}
		return writeResult(c, res)
	}))

	app.Post("/select", authed(func(c *gofiber.Ctx, user chatgate.UserID) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil || req.Provider == "" {
			return c.Status(http.StatusBadRequest).JSON(gofiber.Map{"error": "provider is required"})
		}
		res, err := cfg.Manager.HandleSelection(c.UserContext(), user, chatgate.ProviderID(req.Provider))
		if err != nil {
			if errors.Is(err, chatgate.ErrUnknownProvider) {
				return c.Status(http.StatusNotFound).JSON(gofiber.Map{"error": "unknown provider"})
			}
			return c.Status(http.StatusInternalServerError).JSON(gofiber.Map{"error": "internal error"})
		}
		return writeResult(c, res)
	}))

	app.Delete("/select", authed(func(c *gofiber.Ctx, user chatgate.UserID) error {
		cfg.Manager.ClearSelection(user)
		return c.SendStatus(http.StatusNoContent)
	}))

	app.Post("/reset", authed(func(c *gofiber.Ctx, user chatgate.UserID) error {
		cfg.Manager.ResetSession(user)
		return c.SendStatus(http.StatusNoContent)
	}))

	app.Get("/status", authed(func(c *gofiber.Ctx, user chatgate.UserID) error {
		return c.JSON(gofiber.Map{"status": cfg.Manager.Status(user)})
	}))

	app.Get("/providers", func(c *gofiber.Ctx) error {
		specs := cfg.Manager.Providers()
		out := make([]gofiber.Map, 0, len(specs))
		for _, spec := range specs {
			out = append(out, gofiber.Map{"id": spec.ID, "name": spec.Name, "vision": spec.Caps.Vision})
		}
		return c.JSON(out)
	})
}

func writeResult(c *gofiber.Ctx, res chatgate.Result) error {
	if res.Outcome == chatgate.OutcomeQuotaExceeded {
		c.Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
	}
	return c.Status(statusFor(res.Outcome)).JSON(gofiber.Map{
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
