package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type CronHandler struct {
	st service.ScheduleTrigger
}

func NewCronHandler(st service.ScheduleTrigger) *CronHandler {
	return &CronHandler{st: st}
}

func (h *CronHandler) PublishScheduledPosts(c *fiber.Ctx) error {
	result, err := h.st.Sweep(c.UserContext())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(transfer.SweepResponse{
		Success:   true,
		Processed: result.Processed,
	})
}
