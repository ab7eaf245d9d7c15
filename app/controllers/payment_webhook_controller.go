package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/payments"
)

// HandlePaymentWebhook receives provider payment events. A bad signature is
// rejected loudly (401, never retried away); malformed bodies get a 400 so
// the provider's dead-letter surface catches them; duplicates and orphans
// are acknowledged with 200 so the provider stops redelivering.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	result, err := paymentsSvc.HandleWebhook(
		c.Body(),
		c.Get("X-Razorpay-Signature"),
		c.Get("X-Razorpay-Event-Id"),
	)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrSignatureInvalid):
			log.Errorf("[PaymentWebhook] Signature verification failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "signature_invalid", "message": "Webhook signature mismatch"})
		case errors.Is(err, payments.ErrMalformedPayload):
			log.Errorf("[PaymentWebhook] Malformed payload: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed_payload", "message": err.Error()})
		default:
			log.Errorf("[PaymentWebhook] Processing failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
		}
	}

	return c.JSON(fiber.Map{
		"status":       "ok",
		"event_type":   result.EventType,
		"sankalp_uuid": result.SankalpUUID,
		"duplicate":    result.Duplicate,
		"orphan":       result.Orphan,
	})
}
