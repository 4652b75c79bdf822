package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	pc service.PublishCoordinator
	ms service.MetricsSyncer
}

func NewPostHandler(pc service.PublishCoordinator, ms service.MetricsSyncer) *PostHandler {
	return &PostHandler{pc: pc, ms: ms}
}

func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return &service.AuthError{Message: "session not found"}
	}

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.pc.Publish(c.UserContext(), userID, &req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PostHandler) SyncMetrics(c *fiber.Ctx) error {
	var req transfer.SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}
	if req.UserID != GetUserID(c) {
		return fiber.NewError(fiber.StatusForbidden, "cannot sync metrics for another user")
	}

	result, err := h.ms.Sync(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(transfer.SyncResponse{
		Success:       true,
		Updated:       result.Updated,
		RateLimitHits: result.RateLimited,
	})
}
