package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/app/repository"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/cache"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/eligibility"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/payments"
)

// ErrInvalidTransition marks an input the current state cannot accept. The
// machine recovers locally by re-sending the state's prompt; the sentinel
// exists for logging and tests.
var ErrInvalidTransition = errors.New("fsm: invalid transition")

// saveAttempts bounds the optimistic-lock retry loop for one inbound event.
const saveAttempts = 3

// LinkCreator issues payment links. Satisfied by payments.RazorpayClient.
type LinkCreator interface {
	CreatePaymentLink(ctx context.Context, amountCents int64, currency, description, customerPhone, sankalpUUID string) (*payments.PaymentLink, error)
}

// Machine drives the per-user conversation: it maps (state, inbound message)
// to the next state plus outbound side effects, and persists both under the
// conversation's optimistic lock so concurrent events for one user
// serialize.
type Machine struct {
	users    repository.UserRepository
	convs    repository.ConversationRepository
	sankalps repository.SankalpRepository
	messages repository.MessageLogRepository
	sender   chat.Sender
	links    LinkCreator
	locks    sync.Map // phone -> *sync.Mutex

	// dedup reports whether a message id is seen for the first time;
	// undedup releases a claim whose processing failed, so the BSP's
	// redelivery is not dropped.
	dedup   func(messageID string, userID uint) (bool, error)
	undedup func(messageID string)
}

func NewMachine(repos *repository.Repositories, sender chat.Sender, links LinkCreator) *Machine {
	return &Machine{
		users:    repos.User,
		convs:    repos.Conversation,
		sankalps: repos.Sankalp,
		messages: repos.MessageLog,
		sender:   sender,
		links:    links,
		dedup: func(messageID string, userID uint) (bool, error) {
			return cache.SetNX("inbound_msg:"+messageID, userID, 24*time.Hour)
		},
		undedup: func(messageID string) {
			if err := cache.Delete("inbound_msg:" + messageID); err != nil {
				log.Errorf("[FSM] Failed to release dedup claim for %s: %v", messageID, err)
			}
		},
	}
}

// lockPhone serializes in-process handling per phone number. The optimistic
// lock on the conversation row still covers races across instances.
func (m *Machine) lockPhone(phone string) func() {
	mu, _ := m.locks.LoadOrStore(phone, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// HandleInbound processes one user message end to end: dedup, transition,
// persist, reply. Redelivered messages (same BSP message id) are dropped.
func (m *Machine) HandleInbound(ctx context.Context, msg *chat.InboundMessage) error {
	defer m.lockPhone(msg.Phone)()

	user, _, err := m.users.GetOrCreateByPhone(msg.Phone, msg.Name)
	if err != nil {
		return fmt.Errorf("fsm: resolve user %s: %w", msg.Phone, err)
	}

	// First-line dedup in Redis; the conversation column below still
	// catches redeliveries when the cache is cold or unavailable.
	var claimed bool
	if msg.MessageID != "" {
		fresh, derr := m.dedup(msg.MessageID, user.ID)
		if derr == nil && !fresh {
			log.Infof("[FSM] Dropping redelivered message %s for user %d", msg.MessageID, user.ID)
			return nil
		}
		claimed = derr == nil && fresh
	}

	// On failure the claim is released so the message can be redelivered;
	// a claim held across a transient error would lose the input forever.
	processed := false
	if claimed {
		defer func() {
			if !processed {
				m.undedup(msg.MessageID)
			}
		}()
	}

	seen, err := m.convs.SeenInboundMessage(user.ID, msg.MessageID)
	if err != nil {
		return err
	}
	if seen {
		log.Infof("[FSM] Dropping redelivered message %s for user %d", msg.MessageID, user.ID)
		return nil
	}

	if err := m.messages.Create(&models.MessageLog{
		UserID:    user.ID,
		Direction: models.MessageInbound,
		MessageID: msg.MessageID,
		Body:      msg.RawText(),
	}); err != nil {
		log.Errorf("[FSM] Failed to log inbound message: %v", err)
	}

	var (
		replies []reply
		link    *linkOutcome
		saved   bool
	)
	for attempt := 0; attempt < saveAttempts; attempt++ {
		conv, err := m.convs.GetOrCreate(user.ID)
		if err != nil {
			return err
		}

		res := step(user, conv, msg, time.Now())
		if res.err != nil {
			log.Debugf("[FSM] %v: user %d in %s sent %q", res.err, user.ID, conv.State, msg.RawText())
		}
		replies = res.replies

		if res.requestLink {
			// Creating the sankalp and payment link is a money-creating
			// side effect; it runs once and the outcome is reused when a
			// stale save forces another iteration.
			if link == nil {
				link = m.createSankalpAndLink(ctx, user, conv)
			}
			res.next = link.next
			replies = link.replies
			if link.pendingUUID != "" {
				conv.Context.PendingSankalpID = link.pendingUUID
			}
		}
		if res.wantHistory {
			replies = append(replies, m.historyReply(user))
		}

		conv.State = res.next
		conv.LastInboundMsgID = msg.MessageID
		user.State = res.next

		err = m.convs.Save(conv)
		if errors.Is(err, repository.ErrStaleConversation) {
			// Another handler for this user won the race; re-run the
			// transition against the fresh row.
			fresh, ferr := m.users.GetByID(user.ID)
			if ferr != nil {
				return ferr
			}
			user = fresh
			continue
		}
		if err != nil {
			return err
		}
		if err := m.users.Update(user); err != nil {
			return err
		}
		saved = true
		break
	}
	if !saved {
		// Nothing was persisted, so no reply may go out; the released
		// dedup claim lets the BSP redeliver the message.
		return fmt.Errorf("fsm: conversation for user %d stayed contended after %d attempts", user.ID, saveAttempts)
	}
	processed = true

	m.deliver(ctx, user, replies)
	return nil
}

// linkOutcome carries the result of one sankalp-and-link creation so the
// optimistic-lock retry loop can re-apply it without repeating the side
// effect.
type linkOutcome struct {
	next        string
	replies     []reply
	pendingUUID string
}

// createSankalpAndLink creates the donation record for the selections in the
// conversation context and requests the payment link. On link failure the
// sankalp stays INITIATED and the state does not advance, so re-sending the
// tier is a safe retry.
func (m *Machine) createSankalpAndLink(ctx context.Context, user *models.User, conv *models.Conversation) *linkOutcome {
	// At most one non-expired sankalp may be awaiting payment per user.
	// An open link survives crashes and released dedup claims; point the
	// user back at it instead of minting a second one.
	if open, err := m.sankalps.GetPendingForUser(user.ID); err == nil && open != nil {
		log.Infof("[FSM] User %d already has open sankalp %s, re-sending payment notice", user.ID, open.UUID)
		return &linkOutcome{
			next:        models.StatePaymentLinkSent,
			replies:     []reply{paymentPendingReply()},
			pendingUUID: open.UUID,
		}
	}

	tier := conv.Context.SelectedTier
	sankalp := &models.Sankalp{
		UUID:          uuid.NewString(),
		UserID:        user.ID,
		Category:      conv.Context.SelectedCategory,
		Deity:         user.PreferredDeity,
		AuspiciousDay: user.AuspiciousDay,
		Tier:          tier,
		AmountCents:   models.TierAmountCents[tier],
		Currency:      "USD",
		Status:        models.SankalpInitiated,
	}
	if err := m.sankalps.Create(sankalp); err != nil {
		log.Errorf("[FSM] Failed to create sankalp for user %d: %v", user.ID, err)
		return &linkOutcome{next: models.StateWaitingForTier, replies: []reply{linkFailedReply()}}
	}

	desc := fmt.Sprintf("Sankalp Seva (%s)", title(sankalp.Category))
	link, err := m.links.CreatePaymentLink(ctx, sankalp.AmountCents, sankalp.Currency, desc, user.Phone, sankalp.UUID)
	if err != nil {
		log.Errorf("[FSM] Payment link creation failed for sankalp %s: %v", sankalp.UUID, err)
		return &linkOutcome{next: models.StateWaitingForTier, replies: []reply{linkFailedReply()}}
	}

	sankalp.PaymentLinkID = link.ID
	sankalp.Status = models.SankalpPaymentPending
	if err := m.sankalps.Update(sankalp); err != nil {
		log.Errorf("[FSM] Failed to persist payment link for sankalp %s: %v", sankalp.UUID, err)
		return &linkOutcome{next: models.StateWaitingForTier, replies: []reply{linkFailedReply()}}
	}

	return &linkOutcome{
		next:        models.StatePaymentLinkSent,
		replies:     []reply{paymentLinkReply(link.ShortURL)},
		pendingUUID: sankalp.UUID,
	}
}

func (m *Machine) historyReply(user *models.User) reply {
	sevas, err := m.sankalps.ListPaidForUser(user.ID, 5)
	if err != nil {
		log.Errorf("[FSM] Failed to load seva history for user %d: %v", user.ID, err)
		return textReply("We could not load your seva history right now. Please try again later.")
	}
	if len(sevas) == 0 {
		return textReply("You have no completed sevas yet. Reply SANKALP to take your first one \U0001F64F")
	}

	text := "Your recent sevas:\n"
	for _, s := range sevas {
		text += fmt.Sprintf("• %s: %s for %s ($%.2f)\n",
			s.CreatedAt.Format("Jan 2 2006"), title(s.Category), title(s.Deity), float64(s.AmountCents)/100)
	}
	return textReply(text)
}

// SendDailyBlessing delivers the daily devotional message and advances the
// eligibility counter. The caller has already checked DailyPromptDue.
func (m *Machine) SendDailyBlessing(ctx context.Context, user *models.User) error {
	text := fmt.Sprintf("\U0001F549️ Good morning! May %s bless you and your family today.", title(user.PreferredDeity))
	m.deliver(ctx, user, []reply{textReply(text)})

	user.DailyPromptsSent = eligibility.AdvanceDailyCounter(user.DailyPromptsSent)
	if user.State == models.StateOnboarded {
		user.State = models.StateDailyPassive
	}
	return m.users.Update(user)
}

// SendWeeklyPrompt moves an eligible user into WEEKLY_PROMPT_SENT and
// delivers the sankalp invitation. The caller has already checked
// WeeklyPromptDue.
func (m *Machine) SendWeeklyPrompt(ctx context.Context, user *models.User) error {
	conv, err := m.convs.GetOrCreate(user.ID)
	if err != nil {
		return err
	}
	conv.State = models.StateWeeklyPromptSent
	user.State = models.StateWeeklyPromptSent
	if err := m.convs.Save(conv); err != nil {
		return err
	}
	if err := m.users.Update(user); err != nil {
		return err
	}

	m.deliver(ctx, user, []reply{weeklyPrompt(user)})
	return nil
}

// ReleaseCooldown returns a user from COOLDOWN to the passive daily cycle,
// closes out the completed sankalp, and restarts the daily counter.
func (m *Machine) ReleaseCooldown(ctx context.Context, user *models.User) error {
	conv, err := m.convs.GetOrCreate(user.ID)
	if err != nil {
		return err
	}
	if conv.Context.PendingSankalpID != "" {
		if s, err := m.sankalps.GetByUUID(conv.Context.PendingSankalpID); err == nil && s.Status == models.SankalpReceiptSent {
			s.Status = models.SankalpClosed
			if err := m.sankalps.Update(s); err != nil {
				return err
			}
		}
	}
	conv.State = models.StateDailyPassive
	conv.ClearContext()
	user.State = models.StateDailyPassive
	user.DailyPromptsSent = 0
	if err := m.convs.Save(conv); err != nil {
		return err
	}
	return m.users.Update(user)
}

// deliver sends each reply, logging failures; outbound send is retried by
// the caller's queue where delivery matters (receipts), never here.
func (m *Machine) deliver(ctx context.Context, user *models.User, replies []reply) {
	for _, r := range replies {
		var (
			msgID string
			err   error
		)
		switch {
		case len(r.listOptions) > 0:
			msgID, err = m.sender.SendList(ctx, user.Phone, r.text, r.listButton, r.listOptions)
		case len(r.buttons) > 0:
			msgID, err = m.sender.SendButtons(ctx, user.Phone, r.text, r.buttons)
		default:
			msgID, err = m.sender.SendText(ctx, user.Phone, r.text)
		}
		if err != nil {
			log.Errorf("[FSM] Failed to send message to user %d: %v", user.ID, err)
			continue
		}
		if err := m.messages.Create(&models.MessageLog{
			UserID:    user.ID,
			Direction: models.MessageOutbound,
			MessageID: msgID,
			Body:      r.text,
		}); err != nil {
			log.Errorf("[FSM] Failed to log outbound message: %v", err)
		}
	}
}
