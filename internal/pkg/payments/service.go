package payments

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/ledger"
	"gorm.io/gorm"
)

// Enqueuer hands post-settlement side effects to the background queue.
// Receipt delivery and expiry notices retry independently of the financial
// commit; a send failure never rolls money back.
type Enqueuer interface {
	EnqueueReceipt(sankalpID uint) error
	EnqueueExpiryNotice(userID uint, sankalpUUID string) error
}

// Service is the payment reconciliation engine: it consumes provider
// webhooks and applies at-most-once settlement to sankalp records.
type Service struct {
	repo          Repository
	webhookSecret string
	enqueuer      Enqueuer
}

// Result summarizes what a webhook delivery did.
type Result struct {
	EventType   string
	SankalpUUID string
	Duplicate   bool
	Orphan      bool
	Settled     bool
	Expired     bool
}

func NewService(repo Repository, webhookSecret string, enqueuer Enqueuer) *Service {
	return &Service{repo: repo, webhookSecret: webhookSecret, enqueuer: enqueuer}
}

// NewServiceFromEnv builds a GORM-backed service with the webhook secret
// from RAZORPAY_WEBHOOK_SECRET.
func NewServiceFromEnv(db *gorm.DB, enqueuer Enqueuer) *Service {
	return NewService(NewRepository(db), env.GetEnv("RAZORPAY_WEBHOOK_SECRET", ""), enqueuer)
}

// HandleWebhook verifies, deduplicates, and settles one provider webhook
// delivery. All financial mutations for an event commit atomically; replays
// of the same event identifier are absorbed as success.
func (s *Service) HandleWebhook(rawBody []byte, signatureHeader, eventIDHeader string) (*Result, error) {
	if !VerifyWebhookSignature(rawBody, signatureHeader, s.webhookSecret) {
		return nil, ErrSignatureInvalid
	}

	event, err := ParseWebhookEvent(rawBody, eventIDHeader)
	if err != nil {
		return nil, err
	}
	if event.EventID == "" {
		sum := sha256.Sum256(rawBody)
		event.EventID = "hash:" + hex.EncodeToString(sum[:])
	}

	result := &Result{EventType: event.EventType}

	if event.IsPaidEvent() {
		exists, err := s.repo.PaymentExistsForEvent(event.EventID)
		if err != nil {
			return nil, err
		}
		if exists {
			log.Infof("[Payments] Duplicate event %s absorbed", event.EventID)
			result.Duplicate = true
			return result, nil
		}
		return s.settlePaidEvent(event, result)
	}

	return s.handleExpiredEvent(event, result)
}

func (s *Service) settlePaidEvent(event *WebhookEvent, result *Result) (*Result, error) {
	var settledSankalp *models.Sankalp

	err := s.repo.Atomically(func(tx Repository) error {
		sankalp, err := tx.FindSankalpForEvent(event)
		if err == ErrOrphanPayment {
			log.Errorf("[Payments] Orphan payment event %s (link %s): no matching sankalp", event.EventID, event.PaymentLinkID)
			result.Orphan = true
			return nil
		}
		if err != nil {
			return err
		}
		result.SankalpUUID = sankalp.UUID

		// payment_link.paid and payment.captured may both arrive for the
		// same settlement; the first one wins.
		if sankalp.IsPaid() {
			result.Duplicate = true
			return nil
		}

		created, err := tx.CreatePaymentIfNotExists(&models.Payment{
			SankalpID:         sankalp.ID,
			ProviderPaymentID: event.PaymentID,
			ProviderEventID:   event.EventID,
			SignatureVerified: true,
			AmountCents:       event.AmountCents,
			Currency:          sankalp.Currency,
		})
		if err != nil {
			return err
		}
		if !created {
			result.Duplicate = true
			return nil
		}

		if err := tx.CreateLedgerEntry(ledger.EntryFor(sankalp)); err != nil {
			return err
		}

		sankalp.Status = models.SankalpPaid
		if err := tx.SaveSankalp(sankalp); err != nil {
			return err
		}
		if err := tx.MarkUserPaymentConfirmed(sankalp.UserID, time.Now()); err != nil {
			return err
		}

		settledSankalp = sankalp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle event %s: %w", event.EventID, err)
	}

	if settledSankalp != nil {
		result.Settled = true
		log.Infof("[Payments] Sankalp %s settled by event %s (%d cents)", settledSankalp.UUID, event.EventID, event.AmountCents)
		if err := s.enqueuer.EnqueueReceipt(settledSankalp.ID); err != nil {
			// Money is committed; the receipt retries from the queue side.
			log.Errorf("[Payments] Failed to enqueue receipt for sankalp %s: %v", settledSankalp.UUID, err)
		}
	}
	return result, nil
}

func (s *Service) handleExpiredEvent(event *WebhookEvent, result *Result) (*Result, error) {
	var expiredUserID uint

	err := s.repo.Atomically(func(tx Repository) error {
		sankalp, err := tx.FindSankalpForEvent(event)
		if err == ErrOrphanPayment {
			log.Errorf("[Payments] Expiry event %s references no known sankalp", event.EventID)
			result.Orphan = true
			return nil
		}
		if err != nil {
			return err
		}
		result.SankalpUUID = sankalp.UUID

		// The payment may have landed concurrently; expiry never overrides
		// a settled sankalp.
		if sankalp.Status != models.SankalpPaymentPending {
			result.Duplicate = true
			return nil
		}

		sankalp.Status = models.SankalpExpired
		if err := tx.SaveSankalp(sankalp); err != nil {
			return err
		}
		if err := tx.ResetUserAfterExpiry(sankalp.UserID); err != nil {
			return err
		}

		expiredUserID = sankalp.UserID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expire event %s: %w", event.EventID, err)
	}

	if expiredUserID != 0 {
		result.Expired = true
		log.Infof("[Payments] Sankalp %s expired unpaid", result.SankalpUUID)
		if err := s.enqueuer.EnqueueExpiryNotice(expiredUserID, result.SankalpUUID); err != nil {
			log.Errorf("[Payments] Failed to enqueue expiry notice: %v", err)
		}
	}
	return result, nil
}
