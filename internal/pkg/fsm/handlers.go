package fsm

import (
	"regexp"
	"time"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
)

// Button tokens owned by the flow itself (categories and tiers live in models).
const (
	tokenStartSankalp = "START_SANKALP"
	tokenLater        = "LATER"
)

// Global text commands recognized in any passive state.
const (
	commandSankalp = "SANKALP"
	commandDonate  = "DONATE"
	commandHistory = "HISTORY"
	commandSeva    = "SEVA"
)

var birthTimeRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// stepResult is one transition outcome: the next state, the outbound
// replies, and whether the machine must now create a payment link for the
// selections held in the conversation context.
type stepResult struct {
	next        string
	replies     []reply
	requestLink bool
	wantHistory bool

	// err is ErrInvalidTransition when the state rejected the input and
	// self-looped; the machine logs it, the user just gets the re-prompt.
	err error
}

// step computes a single transition. It mutates the user's profile fields
// and the conversation context in place; persistence and side effects are
// the machine's job. Unrecognized input in a collecting state self-loops
// with a re-prompt rather than erroring.
func step(u *models.User, conv *models.Conversation, msg *chat.InboundMessage, now time.Time) stepResult {
	token := msg.Token()

	switch conv.State {
	case models.StateNew:
		return stepResult{next: models.StateWaitingForRashi, replies: []reply{rashiPrompt()}}

	case models.StateWaitingForRashi:
		if !models.IsValidRashi(token) {
			return selfLoop(conv, rashiPrompt())
		}
		u.Rashi = token
		return stepResult{next: models.StateWaitingForNakshatra, replies: []reply{nakshatraPrompt()}}

	case models.StateWaitingForNakshatra:
		if !isSkipToken(token) {
			u.Nakshatra = msg.RawText()
		}
		return stepResult{next: models.StateWaitingForBirthTime, replies: []reply{birthTimePrompt()}}

	case models.StateWaitingForBirthTime:
		if isSkipToken(token) {
			return stepResult{next: models.StateWaitingForDeity, replies: []reply{deityPrompt()}}
		}
		if !birthTimeRe.MatchString(msg.RawText()) {
			return selfLoop(conv, birthTimePrompt())
		}
		u.BirthTime = msg.RawText()
		return stepResult{next: models.StateWaitingForDeity, replies: []reply{deityPrompt()}}

	case models.StateWaitingForDeity:
		if !models.IsValidDeity(token) {
			return selfLoop(conv, deityPrompt())
		}
		u.PreferredDeity = token
		return stepResult{next: models.StateWaitingForAuspiciousDay, replies: []reply{auspiciousDayPrompt()}}

	case models.StateWaitingForAuspiciousDay:
		if !models.IsValidDay(token) {
			return selfLoop(conv, auspiciousDayPrompt())
		}
		u.AuspiciousDay = token
		u.OnboardedAt = &now
		return stepResult{next: models.StateDailyPassive, replies: []reply{onboardingComplete(u)}}

	case models.StateOnboarded, models.StateDailyPassive:
		switch token {
		case commandSankalp, commandDonate, tokenStartSankalp:
			return stepResult{next: models.StateWaitingForCategory, replies: []reply{categoryPrompt()}}
		case commandHistory, commandSeva:
			return stepResult{next: conv.State, wantHistory: true}
		default:
			return selfLoop(conv, passiveAck())
		}

	case models.StateWeeklyPromptSent:
		switch token {
		case tokenStartSankalp, commandSankalp, commandDonate, "YES":
			return stepResult{next: models.StateWaitingForCategory, replies: []reply{categoryPrompt()}}
		case tokenLater, "NO":
			return stepResult{next: models.StateDailyPassive, replies: []reply{passiveAck()}}
		case commandHistory, commandSeva:
			return stepResult{next: conv.State, wantHistory: true}
		default:
			return selfLoop(conv, weeklyPrompt(u))
		}

	case models.StateWaitingForCategory:
		if !models.IsValidCategory(token) {
			return selfLoop(conv, categoryPrompt())
		}
		conv.Context.SelectedCategory = token
		return stepResult{next: models.StateWaitingForTier, replies: []reply{tierPrompt()}}

	case models.StateWaitingForTier:
		if !models.IsValidTier(token) {
			return selfLoop(conv, tierPrompt())
		}
		conv.Context.SelectedTier = token
		// The machine now creates the sankalp and the payment link; the
		// state only advances if link creation succeeds.
		return stepResult{next: conv.State, requestLink: true}

	case models.StatePaymentLinkSent:
		// Locked until the reconciliation engine moves the state. The user
		// cannot restart the flow while a payment is outstanding.
		return selfLoop(conv, paymentPendingReply())

	case models.StatePaymentConfirmed, models.StateReceiptSent:
		return selfLoop(conv, textReply("Your sankalp is confirmed \U0001F64F Your receipt is on its way."))

	case models.StateCooldown:
		if token == commandHistory || token == commandSeva {
			return stepResult{next: conv.State, wantHistory: true}
		}
		return selfLoop(conv, cooldownReply())

	default:
		// Unknown persisted state: recover by re-entering the passive loop.
		return stepResult{next: models.StateDailyPassive, replies: []reply{passiveAck()}}
	}
}

func selfLoop(conv *models.Conversation, r reply) stepResult {
	return stepResult{next: conv.State, replies: []reply{r}, err: ErrInvalidTransition}
}
