package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
)

// HandleChatWebhook receives inbound BSP callbacks. Non-message callbacks
// (delivery receipts, read events) are acknowledged and dropped; user
// messages run through the conversation machine synchronously so the BSP's
// retry policy covers our failures.
func HandleChatWebhook(c *fiber.Ctx) error {
	msg, err := chat.ParseInbound(c.Body())
	if err != nil {
		if errors.Is(err, chat.ErrNotAMessage) {
			return c.SendStatus(fiber.StatusOK)
		}
		log.Errorf("[ChatWebhook] Rejecting payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unparseable callback payload"})
	}

	if err := machine.HandleInbound(c.Context(), msg); err != nil {
		log.Errorf("[ChatWebhook] Failed to process message %s: %v", msg.MessageID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process message"})
	}

	return c.SendStatus(fiber.StatusOK)
}
