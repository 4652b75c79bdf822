package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// PlatformHandler exposes each adapter on its own route. Nothing is written
// to the post store.
type PlatformHandler struct {
	pc service.PublishCoordinator
}

func NewPlatformHandler(pc service.PublishCoordinator) *PlatformHandler {
	return &PlatformHandler{pc: pc}
}

func (h *PlatformHandler) TwitterPost(c *fiber.Ctx) error {
	item, err := h.publish(c, models.PlatformTwitter)
	if err != nil {
		return platformFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "tweetId": item.RemoteID})
}

func (h *PlatformHandler) YoutubeUpload(c *fiber.Ctx) error {
	item, err := h.publish(c, models.PlatformYoutube)
	if err != nil {
		return platformFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "videoId": item.RemoteID, "url": item.URL})
}

func (h *PlatformHandler) InstagramPublish(c *fiber.Ctx) error {
	item, err := h.publish(c, models.PlatformInstagram)
	if err != nil {
		return platformFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "instagramPostId": item.RemoteID})
}

func (h *PlatformHandler) LinkedInPost(c *fiber.Ctx) error {
	item, err := h.publish(c, models.PlatformLinkedIn)
	if err != nil {
		return platformFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "linkedinPostId": item.RemoteID})
}

func (h *PlatformHandler) publish(c *fiber.Ctx, platform models.Platform) (*service.PublishedItem, error) {
	userID := GetUserID(c)
	if userID == "" {
		return nil, &service.AuthError{Platform: platform, Message: "session not found"}
	}

	var req transfer.PlatformPublishRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, &service.ValidationError{Message: "invalid request body"}
	}
	if req.UserID != "" && req.UserID != userID {
		return nil, &service.AuthError{Platform: platform, Message: "userId does not match the session"}
	}
	if strings.TrimSpace(req.Caption) == "" && strings.TrimSpace(req.Title) == "" {
		return nil, &service.ValidationError{Field: "caption", Message: "is required"}
	}

	return h.pc.PublishDirect(c.UserContext(), userID, platform, service.Content{
		Caption:     req.Caption,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		Visibility:  req.Visibility,
	})
}

func platformFailure(c *fiber.Ctx, err error) error {
	resp := transfer.ErrorResponse{
		Error:       string(service.KindOf(err)),
		Details:     err.Error(),
		NeedsReauth: service.NeedsReauth(err),
	}
	return c.Status(platformStatus(err)).JSON(resp)
}
