package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// GetUserID returns the session owner set by the auth middleware, or "".
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

// ErrorHandler is the app-wide fiber error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(transfer.ErrorResponse{Error: fiberErr.Message})
	}

	switch service.KindOf(err) {
	case service.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(transfer.ErrorResponse{Error: err.Error()})
	case service.KindAuth:
		return c.Status(fiber.StatusUnauthorized).JSON(transfer.ErrorResponse{Error: err.Error(), NeedsReauth: service.NeedsReauth(err)})
	}

	slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(transfer.ErrorResponse{Error: "internal server error"})
}

// platformStatus maps an adapter failure to the status used by the
// per-platform helper routes.
func platformStatus(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return fiber.StatusBadRequest
	case service.KindAuth:
		return fiber.StatusUnauthorized
	case service.KindRateLimit:
		return fiber.StatusTooManyRequests
	case service.KindTimeout:
		return fiber.StatusGatewayTimeout
	case service.KindPlatform:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
