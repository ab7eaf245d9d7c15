package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/app/repository"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/receipt"
)

// Dependencies are the collaborators job processors need. Archive is nil
// when the receipt archive is disabled; receipts are then sent without a
// stored copy.
type Dependencies struct {
	Repos   *repository.Repositories
	Sender  chat.Sender
	Archive *receipt.Client
}

// processReceiptDeliveryJob renders and sends the receipt for a settled
// sankalp, archives a copy, and completes the post-payment transition. The
// job is idempotent: a sankalp already in RECEIPT_SENT or later is a no-op,
// so a retry after a partial failure never double-sends.
func (q *Queue) processReceiptDeliveryJob(ctx context.Context, job *Job) error {
	payload, err := ReceiptDeliveryJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid receipt payload: %w", err)
	}

	db := q.deps.Repos
	sankalp, err := db.Sankalp.GetByID(payload.SankalpID)
	if err != nil {
		return fmt.Errorf("load sankalp %d: %w", payload.SankalpID, err)
	}

	if sankalp.Status != models.SankalpPaid {
		log.Infof("[JobQueue] Receipt for sankalp %s already handled (status %s)", sankalp.UUID, sankalp.Status)
		return nil
	}

	user, err := db.User.GetByID(sankalp.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", sankalp.UserID, err)
	}

	body := receipt.Render(user, sankalp)

	if q.deps.Archive != nil {
		key := q.deps.Archive.ObjectKey(sankalp.UUID, time.Now())
		url, err := q.deps.Archive.Archive(ctx, key, body)
		if err != nil {
			return fmt.Errorf("archive receipt for sankalp %s: %w", sankalp.UUID, err)
		}
		sankalp.ReceiptURL = url
	}

	msgID, err := q.deps.Sender.SendText(ctx, user.Phone, body)
	if err != nil {
		return fmt.Errorf("send receipt for sankalp %s: %w", sankalp.UUID, err)
	}
	if err := db.MessageLog.Create(&models.MessageLog{
		UserID:    user.ID,
		Direction: models.MessageOutbound,
		MessageID: msgID,
		Body:      body,
	}); err != nil {
		log.Errorf("[JobQueue] Failed to log receipt message: %v", err)
	}

	// Receipt delivered: close out the post-payment transition into the
	// cooldown window.
	sankalp.Status = models.SankalpReceiptSent
	if err := db.Sankalp.Update(sankalp); err != nil {
		return fmt.Errorf("mark sankalp %s receipt-sent: %w", sankalp.UUID, err)
	}

	// Only the state column moves here; a full Save could clobber profile
	// fields written by a concurrent inbound handler.
	if err := db.User.UpdateState(user.ID, models.StateCooldown); err != nil {
		return fmt.Errorf("move user %d to cooldown: %w", user.ID, err)
	}
	conv, err := db.Conversation.GetOrCreate(user.ID)
	if err != nil {
		return err
	}
	conv.State = models.StateCooldown
	if err := db.Conversation.Save(conv); err != nil {
		return err
	}

	log.Infof("[JobQueue] Receipt delivered for sankalp %s", sankalp.UUID)
	return nil
}

// processExpiryNoticeJob tells a user their payment link lapsed.
func (q *Queue) processExpiryNoticeJob(ctx context.Context, job *Job) error {
	payload, err := ExpiryNoticeJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid expiry payload: %w", err)
	}

	user, err := q.deps.Repos.User.GetByID(payload.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", payload.UserID, err)
	}

	text := "Your payment link has expired \U0001F64F No payment was taken. Reply SANKALP whenever you would like to try again."
	msgID, err := q.deps.Sender.SendText(ctx, user.Phone, text)
	if err != nil {
		return fmt.Errorf("send expiry notice to user %d: %w", user.ID, err)
	}
	if err := q.deps.Repos.MessageLog.Create(&models.MessageLog{
		UserID:    user.ID,
		Direction: models.MessageOutbound,
		MessageID: msgID,
		Body:      text,
	}); err != nil {
		log.Errorf("[JobQueue] Failed to log expiry notice: %v", err)
	}
	return nil
}
