package fsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/app/repository"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/payments"
)

// In-memory fakes standing in for the GORM repositories.

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) Create(u *models.User) error { f.user = u; return nil }
func (f *fakeUsers) GetByID(id uint) (*models.User, error) { return f.user, nil }
func (f *fakeUsers) GetByPhone(p string) (*models.User, error) { return f.user, nil }
func (f *fakeUsers) Update(u *models.User) error { f.user = u; return nil }
func (f *fakeUsers) UpdateState(id uint, state string) error { f.user.State = state; return nil }
func (f *fakeUsers) Count() (int64, error) { return 1, nil }
func (f *fakeUsers) GetOrCreateByPhone(phone, name string) (*models.User, bool, error) {
	if f.user == nil {
		f.user = &models.User{ID: 1, Phone: phone, Name: name, State: models.StateNew, Timezone: "UTC"}
		return f.user, true, nil
	}
	return f.user, false, nil
}
func (f *fakeUsers) ListInState(state string, afterID uint, limit int) ([]models.User, error) {
	return nil, nil
}

type fakeConvs struct {
	conv         *models.Conversation
	staleOnce    bool
	staleAlways  bool
	failSaveOnce bool
	seenIDs      map[string]bool
	saveCalled   int
}

func (f *fakeConvs) GetByUserID(id uint) (*models.Conversation, error) { return f.conv, nil }
func (f *fakeConvs) GetOrCreate(id uint) (*models.Conversation, error) {
	if f.conv == nil {
		f.conv = &models.Conversation{ID: 1, UserID: id, State: models.StateNew}
	}
	cp := *f.conv
	return &cp, nil
}
func (f *fakeConvs) Save(c *models.Conversation) error {
	f.saveCalled++
	if f.staleAlways {
		return repository.ErrStaleConversation
	}
	if f.staleOnce {
		f.staleOnce = false
		return repository.ErrStaleConversation
	}
	if f.failSaveOnce {
		f.failSaveOnce = false
		return errors.New("driver: bad connection")
	}
	f.conv = c
	return nil
}
func (f *fakeConvs) SeenInboundMessage(id uint, messageID string) (bool, error) {
	if f.seenIDs == nil {
		return false, nil
	}
	return f.seenIDs[messageID], nil
}

type fakeSankalps struct {
	created []*models.Sankalp
	pending *models.Sankalp
	paid    []models.Sankalp
}

func (f *fakeSankalps) Create(s *models.Sankalp) error {
	s.ID = uint(len(f.created) + 1)
	f.created = append(f.created, s)
	return nil
}
func (f *fakeSankalps) GetByID(id uint) (*models.Sankalp, error) { return nil, errors.New("not found") }
func (f *fakeSankalps) GetByUUID(u string) (*models.Sankalp, error) {
	return nil, errors.New("not found")
}
func (f *fakeSankalps) GetByPaymentLinkID(l string) (*models.Sankalp, error) {
	return nil, errors.New("not found")
}
func (f *fakeSankalps) GetPendingForUser(id uint) (*models.Sankalp, error) {
	if f.pending != nil {
		return f.pending, nil
	}
	return nil, errors.New("not found")
}
func (f *fakeSankalps) Update(s *models.Sankalp) error { return nil }
func (f *fakeSankalps) ListPaidForUser(id uint, limit int) ([]models.Sankalp, error) {
	return f.paid, nil
}

type fakeMessages struct {
	logged []models.MessageLog
}

func (f *fakeMessages) Create(m *models.MessageLog) error { f.logged = append(f.logged, *m); return nil }
func (f *fakeMessages) ListForUser(id uint, limit int) ([]models.MessageLog, error) {
	return f.logged, nil
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendText(ctx context.Context, phone, text string) (string, error) {
	f.sent = append(f.sent, text)
	return "out-1", nil
}
func (f *fakeSender) SendButtons(ctx context.Context, phone, body string, buttons []chat.Button) (string, error) {
	f.sent = append(f.sent, body)
	return "out-2", nil
}
func (f *fakeSender) SendList(ctx context.Context, phone, body, buttonTitle string, options []chat.Button) (string, error) {
	f.sent = append(f.sent, body)
	return "out-3", nil
}

type fakeLinks struct {
	fail  bool
	calls int
}

func (f *fakeLinks) CreatePaymentLink(ctx context.Context, amountCents int64, currency, description, customerPhone, sankalpUUID string) (*payments.PaymentLink, error) {
	f.calls++
	if f.fail {
		return nil, payments.ErrLinkCreationFailed
	}
	return &payments.PaymentLink{ID: "plink_1", ShortURL: "https://rzp.io/l/test", Status: "created"}, nil
}

type harness struct {
	machine  *Machine
	users    *fakeUsers
	convs    *fakeConvs
	sankalps *fakeSankalps
	sender   *fakeSender
	links    *fakeLinks
}

func newHarness(state string) *harness {
	h := &harness{
		users:    &fakeUsers{},
		convs:    &fakeConvs{},
		sankalps: &fakeSankalps{},
		sender:   &fakeSender{},
		links:    &fakeLinks{},
	}
	h.users.user = &models.User{
		ID: 1, Phone: "15551234567", State: state, Timezone: "UTC",
		PreferredDeity: models.DeityShiva, AuspiciousDay: models.DayMonday,
	}
	h.convs.conv = &models.Conversation{ID: 1, UserID: 1, State: state}
	h.machine = NewMachine(&repository.Repositories{
		User:         h.users,
		Conversation: h.convs,
		Sankalp:      h.sankalps,
		MessageLog:   &fakeMessages{},
	}, h.sender, h.links)
	h.machine.dedup = func(messageID string, userID uint) (bool, error) {
		return true, nil
	}
	h.machine.undedup = func(messageID string) {}
	return h
}

func inbound(id, text string) *chat.InboundMessage {
	return &chat.InboundMessage{MessageID: id, Phone: "15551234567", Kind: chat.KindText, Text: text}
}

func button(id, token string) *chat.InboundMessage {
	return &chat.InboundMessage{MessageID: id, Phone: "15551234567", Kind: chat.KindButton, ButtonID: token}
}

func TestOnboardingAdvancesOnlyOnRecognizedTokens(t *testing.T) {
	h := newHarness(models.StateWaitingForRashi)

	// Unrecognized input self-loops and re-prompts.
	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "xyz")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForRashi {
		t.Fatalf("state = %s, want self-loop", h.convs.conv.State)
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected one re-prompt, got %d sends", len(h.sender.sent))
	}

	// A recognized rashi advances.
	if err := h.machine.HandleInbound(context.Background(), inbound("m2", "mesha")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForNakshatra {
		t.Fatalf("state = %s, want WAITING_FOR_NAKSHATRA", h.convs.conv.State)
	}
	if h.users.user.Rashi != models.RashiMesha {
		t.Fatalf("rashi = %q", h.users.user.Rashi)
	}
}

func TestOnboardingSkipTokens(t *testing.T) {
	h := newHarness(models.StateWaitingForNakshatra)

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "skip")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForBirthTime {
		t.Fatalf("state = %s", h.convs.conv.State)
	}
	if h.users.user.Nakshatra != "" {
		t.Fatalf("nakshatra should stay empty on skip, got %q", h.users.user.Nakshatra)
	}

	if err := h.machine.HandleInbound(context.Background(), inbound("m2", "vaddu")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForDeity {
		t.Fatalf("state = %s", h.convs.conv.State)
	}
}

func TestBirthTimeValidation(t *testing.T) {
	h := newHarness(models.StateWaitingForBirthTime)

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "25:99")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForBirthTime {
		t.Fatalf("invalid time must self-loop, state = %s", h.convs.conv.State)
	}

	if err := h.machine.HandleInbound(context.Background(), inbound("m2", "06:30")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.users.user.BirthTime != "06:30" {
		t.Fatalf("birth time = %q", h.users.user.BirthTime)
	}
	if h.convs.conv.State != models.StateWaitingForDeity {
		t.Fatalf("state = %s", h.convs.conv.State)
	}
}

func TestOnboardingCompletion(t *testing.T) {
	h := newHarness(models.StateWaitingForAuspiciousDay)

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "monday")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateDailyPassive {
		t.Fatalf("state = %s, want DAILY_PASSIVE", h.convs.conv.State)
	}
	if h.users.user.OnboardedAt == nil {
		t.Fatal("OnboardedAt not set")
	}
}

func TestDonationFlowCreatesSankalpAndLink(t *testing.T) {
	h := newHarness(models.StateWaitingForCategory)

	if err := h.machine.HandleInbound(context.Background(), button("m1", models.CategoryHealth)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForTier {
		t.Fatalf("state = %s", h.convs.conv.State)
	}
	if h.convs.conv.Context.SelectedCategory != models.CategoryHealth {
		t.Fatalf("context category = %q", h.convs.conv.Context.SelectedCategory)
	}

	if err := h.machine.HandleInbound(context.Background(), button("m2", models.TierS30)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StatePaymentLinkSent {
		t.Fatalf("state = %s, want PAYMENT_LINK_SENT", h.convs.conv.State)
	}
	if len(h.sankalps.created) != 1 {
		t.Fatalf("created %d sankalps", len(h.sankalps.created))
	}
	s := h.sankalps.created[0]
	if s.AmountCents != 3000 || s.Category != models.CategoryHealth || s.Tier != models.TierS30 {
		t.Fatalf("unexpected sankalp: %+v", s)
	}
	if s.PaymentLinkID != "plink_1" || s.Status != models.SankalpPaymentPending {
		t.Fatalf("sankalp not pending with link: %+v", s)
	}
	if h.convs.conv.Context.PendingSankalpID != s.UUID {
		t.Fatalf("context pending id = %q", h.convs.conv.Context.PendingSankalpID)
	}
}

func TestLinkCreationFailureKeepsTierState(t *testing.T) {
	h := newHarness(models.StateWaitingForTier)
	h.convs.conv.Context.SelectedCategory = models.CategoryPeace
	h.links.fail = true

	if err := h.machine.HandleInbound(context.Background(), button("m1", models.TierS15)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForTier {
		t.Fatalf("state = %s, want WAITING_FOR_TIER for safe retry", h.convs.conv.State)
	}
	if len(h.sankalps.created) != 1 || h.sankalps.created[0].Status != models.SankalpInitiated {
		t.Fatal("sankalp must stay INITIATED after link failure")
	}
}

func TestPaymentLinkSentIsLocked(t *testing.T) {
	h := newHarness(models.StatePaymentLinkSent)

	for i, text := range []string{"hello", "SANKALP", "cancel"} {
		if err := h.machine.HandleInbound(context.Background(), inbound(string(rune('a'+i)), text)); err != nil {
			t.Fatalf("HandleInbound: %v", err)
		}
		if h.convs.conv.State != models.StatePaymentLinkSent {
			t.Fatalf("input %q moved state to %s", text, h.convs.conv.State)
		}
	}
	if h.links.calls != 0 || len(h.sankalps.created) != 0 {
		t.Fatal("locked state must not restart the donation flow")
	}
}

func TestRedeliveredMessageIsDropped(t *testing.T) {
	h := newHarness(models.StateWaitingForRashi)
	h.convs.seenIDs = map[string]bool{"dup-1": true}

	if err := h.machine.HandleInbound(context.Background(), inbound("dup-1", "mesha")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForRashi {
		t.Fatal("redelivered message must not transition state")
	}
	if len(h.sender.sent) != 0 {
		t.Fatal("redelivered message must not produce sends")
	}
}

func TestStaleRetryCreatesOneSankalpAndLink(t *testing.T) {
	h := newHarness(models.StateWaitingForTier)
	h.convs.conv.Context.SelectedCategory = models.CategoryHealth
	h.convs.staleOnce = true

	if err := h.machine.HandleInbound(context.Background(), button("m1", models.TierS15)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.saveCalled != 2 {
		t.Fatalf("saves = %d, want a retry after the stale save", h.convs.saveCalled)
	}
	if len(h.sankalps.created) != 1 {
		t.Fatalf("created %d sankalps, want 1", len(h.sankalps.created))
	}
	if h.links.calls != 1 {
		t.Fatalf("payment link requested %d times, want 1", h.links.calls)
	}
	if h.convs.conv.State != models.StatePaymentLinkSent {
		t.Fatalf("state = %s, want PAYMENT_LINK_SENT", h.convs.conv.State)
	}
	if h.convs.conv.Context.PendingSankalpID != h.sankalps.created[0].UUID {
		t.Fatalf("pending id = %q after retry", h.convs.conv.Context.PendingSankalpID)
	}
}

func TestExhaustedRetriesSurfaceAnError(t *testing.T) {
	h := newHarness(models.StateWaitingForRashi)
	h.convs.staleAlways = true
	released := false
	h.machine.undedup = func(messageID string) { released = true }

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "mesha")); err == nil {
		t.Fatal("expected an error once every save attempt is stale")
	}
	if h.convs.saveCalled != saveAttempts {
		t.Fatalf("saves = %d, want %d", h.convs.saveCalled, saveAttempts)
	}
	if len(h.sender.sent) != 0 {
		t.Fatal("no reply may go out for an unpersisted transition")
	}
	if !released {
		t.Fatal("dedup claim must be released so the message can be redelivered")
	}
}

func TestFailedSaveAllowsRedelivery(t *testing.T) {
	h := newHarness(models.StateWaitingForRashi)
	claims := map[string]bool{}
	h.machine.dedup = func(messageID string, userID uint) (bool, error) {
		if claims[messageID] {
			return false, nil
		}
		claims[messageID] = true
		return true, nil
	}
	h.machine.undedup = func(messageID string) { delete(claims, messageID) }
	h.convs.failSaveOnce = true

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "mesha")); err == nil {
		t.Fatal("expected the save failure to surface")
	}
	if h.convs.conv.State != models.StateWaitingForRashi {
		t.Fatalf("failed save advanced state to %s", h.convs.conv.State)
	}

	// The BSP redelivers the same message id; it must still be processed.
	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "mesha")); err != nil {
		t.Fatalf("redelivery after failure: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForNakshatra {
		t.Fatalf("state = %s after redelivery, want WAITING_FOR_NAKSHATRA", h.convs.conv.State)
	}

	// A third copy after success is a plain duplicate and is dropped.
	sends := len(h.sender.sent)
	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "mesha")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(h.sender.sent) != sends {
		t.Fatal("duplicate after success must not produce sends")
	}
}

func TestOpenPaymentLinkBlocksSecondSankalp(t *testing.T) {
	h := newHarness(models.StateWaitingForTier)
	h.convs.conv.Context.SelectedCategory = models.CategoryPeace
	h.sankalps.pending = &models.Sankalp{ID: 7, UUID: "seva-open", UserID: 1, Status: models.SankalpPaymentPending}

	if err := h.machine.HandleInbound(context.Background(), button("m1", models.TierS15)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(h.sankalps.created) != 0 || h.links.calls != 0 {
		t.Fatal("an open payment link must not spawn a second sankalp")
	}
	if h.convs.conv.State != models.StatePaymentLinkSent {
		t.Fatalf("state = %s, want PAYMENT_LINK_SENT", h.convs.conv.State)
	}
	if h.convs.conv.Context.PendingSankalpID != "seva-open" {
		t.Fatalf("pending id = %q, want the open sankalp", h.convs.conv.Context.PendingSankalpID)
	}
}

func TestRejectedInputCarriesInvalidTransition(t *testing.T) {
	u := &models.User{ID: 1}
	conv := &models.Conversation{ID: 1, UserID: 1, State: models.StateWaitingForRashi}

	res := step(u, conv, inbound("m1", "xyz"), time.Now())
	if !errors.Is(res.err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", res.err)
	}
	if res.next != models.StateWaitingForRashi {
		t.Fatalf("rejected input must self-loop, next = %s", res.next)
	}

	res = step(u, conv, inbound("m2", "mesha"), time.Now())
	if res.err != nil {
		t.Fatalf("accepted input must not carry an error, got %v", res.err)
	}
}

func TestStaleConversationRetries(t *testing.T) {
	h := newHarness(models.StateWaitingForRashi)
	h.convs.staleOnce = true

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "mesha")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.saveCalled != 2 {
		t.Fatalf("expected retry after stale save, saves = %d", h.convs.saveCalled)
	}
	if h.convs.conv.State != models.StateWaitingForNakshatra {
		t.Fatalf("state = %s after retry", h.convs.conv.State)
	}
}

func TestWeeklyPromptResponses(t *testing.T) {
	h := newHarness(models.StateWeeklyPromptSent)

	if err := h.machine.HandleInbound(context.Background(), button("m1", tokenLater)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateDailyPassive {
		t.Fatalf("state = %s, want DAILY_PASSIVE after decline", h.convs.conv.State)
	}

	h = newHarness(models.StateWeeklyPromptSent)
	if err := h.machine.HandleInbound(context.Background(), button("m1", tokenStartSankalp)); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForCategory {
		t.Fatalf("state = %s, want WAITING_FOR_CATEGORY after accept", h.convs.conv.State)
	}
}

func TestUserInitiatedSankalpFromPassive(t *testing.T) {
	h := newHarness(models.StateDailyPassive)

	if err := h.machine.HandleInbound(context.Background(), inbound("m1", "sankalp")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if h.convs.conv.State != models.StateWaitingForCategory {
		t.Fatalf("state = %s", h.convs.conv.State)
	}
}

func TestSendWeeklyPrompt(t *testing.T) {
	h := newHarness(models.StateDailyPassive)

	if err := h.machine.SendWeeklyPrompt(context.Background(), h.users.user); err != nil {
		t.Fatalf("SendWeeklyPrompt: %v", err)
	}
	if h.convs.conv.State != models.StateWeeklyPromptSent || h.users.user.State != models.StateWeeklyPromptSent {
		t.Fatal("weekly prompt must move user into WEEKLY_PROMPT_SENT")
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("sends = %d", len(h.sender.sent))
	}
}

func TestReleaseCooldown(t *testing.T) {
	h := newHarness(models.StateCooldown)
	h.users.user.DailyPromptsSent = models.DailyPromptCeiling
	h.convs.conv.Context.PendingSankalpID = "stale"

	if err := h.machine.ReleaseCooldown(context.Background(), h.users.user); err != nil {
		t.Fatalf("ReleaseCooldown: %v", err)
	}
	if h.convs.conv.State != models.StateDailyPassive {
		t.Fatalf("state = %s", h.convs.conv.State)
	}
	if h.users.user.DailyPromptsSent != 0 {
		t.Fatal("daily counter must reset on release")
	}
	if !h.convs.conv.Context.IsZero() {
		t.Fatal("context must clear on release")
	}
}
