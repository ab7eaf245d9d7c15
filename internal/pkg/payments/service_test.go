package payments

import (
	"fmt"
	"testing"
	"time"

	"github.com/subhamasthu/sankalp-bot/app/models"
)

const testWebhookSecret = "whsec_test"

// fakeReconRepo is an in-memory Repository; Atomically is a plain call since
// the assertions only care about what was written, not rollback.

type fakeReconRepo struct {
	sankalps  map[string]*models.Sankalp // keyed by uuid
	payments  map[string]*models.Payment // keyed by provider event id
	entries   []*models.SevaLedger
	confirmed []uint
	reset     []uint
}

func newFakeReconRepo() *fakeReconRepo {
	return &fakeReconRepo{
		sankalps: map[string]*models.Sankalp{},
		payments: map[string]*models.Payment{},
	}
}

func (f *fakeReconRepo) Atomically(fn func(tx Repository) error) error { return fn(f) }

func (f *fakeReconRepo) FindSankalpForEvent(event *WebhookEvent) (*models.Sankalp, error) {
	for _, s := range f.sankalps {
		if event.PaymentLinkID != "" && s.PaymentLinkID == event.PaymentLinkID {
			return s, nil
		}
	}
	if s, ok := f.sankalps[event.SankalpUUID]; ok {
		return s, nil
	}
	return nil, ErrOrphanPayment
}

func (f *fakeReconRepo) PaymentExistsForEvent(providerEventID string) (bool, error) {
	_, ok := f.payments[providerEventID]
	return ok, nil
}

func (f *fakeReconRepo) CreatePaymentIfNotExists(p *models.Payment) (bool, error) {
	if _, ok := f.payments[p.ProviderEventID]; ok {
		return false, nil
	}
	p.ID = uint(len(f.payments) + 1)
	f.payments[p.ProviderEventID] = p
	return true, nil
}

func (f *fakeReconRepo) CreateLedgerEntry(e *models.SevaLedger) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeReconRepo) SaveSankalp(s *models.Sankalp) error {
	f.sankalps[s.UUID] = s
	return nil
}

func (f *fakeReconRepo) MarkUserPaymentConfirmed(userID uint, paidAt time.Time) error {
	f.confirmed = append(f.confirmed, userID)
	return nil
}

func (f *fakeReconRepo) ResetUserAfterExpiry(userID uint) error {
	f.reset = append(f.reset, userID)
	return nil
}

type fakeQueue struct {
	receipts []uint
	expiries []string
}

func (f *fakeQueue) EnqueueReceipt(sankalpID uint) error { f.receipts = append(f.receipts, sankalpID); return nil }
func (f *fakeQueue) EnqueueExpiryNotice(userID uint, sankalpUUID string) error {
	f.expiries = append(f.expiries, sankalpUUID)
	return nil
}

func paidBody(linkID, paymentID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment_link.paid",
		"payload": {
			"payment_link": {"entity": {"id": %q, "amount": %d, "currency": "USD"}},
			"payment": {"entity": {"id": %q, "amount": %d, "currency": "USD"}}
		}
	}`, linkID, amount, paymentID, amount))
}

func expiredBody(linkID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment_link.expired",
		"payload": {
			"payment_link": {"entity": {"id": %q}}
		}
	}`, linkID))
}

func pendingSankalp() *models.Sankalp {
	return &models.Sankalp{
		ID:            9,
		UUID:          "11111111-2222-3333-4444-555555555555",
		UserID:        3,
		AmountCents:   5100,
		Currency:      "USD",
		Status:        models.SankalpPaymentPending,
		PaymentLinkID: "plink_42",
	}
}

func TestPaidEventSettlesOnce(t *testing.T) {
	repo := newFakeReconRepo()
	queue := &fakeQueue{}
	s := pendingSankalp()
	repo.sankalps[s.UUID] = s
	svc := NewService(repo, testWebhookSecret, queue)

	body := paidBody("plink_42", "pay_1", 5100)
	res, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), "evt_1")
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if !res.Settled || res.Duplicate {
		t.Fatalf("result = %+v, want settled", res)
	}
	if s.Status != models.SankalpPaid {
		t.Fatalf("status = %s, want PAID", s.Status)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("payment rows = %d, want 1", len(repo.payments))
	}
	p := repo.payments["evt_1"]
	if p == nil || p.SankalpID != s.ID || p.AmountCents != 5100 || !p.SignatureVerified {
		t.Fatalf("unexpected payment row: %+v", p)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.PlatformFeeCents != 1020 || e.SevaAmountCents != 4080 {
		t.Fatalf("ledger split = %d/%d, want 1020/4080", e.PlatformFeeCents, e.SevaAmountCents)
	}
	if len(repo.confirmed) != 1 || repo.confirmed[0] != s.UserID {
		t.Fatalf("confirmed users = %v", repo.confirmed)
	}
	if len(queue.receipts) != 1 || queue.receipts[0] != s.ID {
		t.Fatalf("receipts enqueued = %v", queue.receipts)
	}

	// Redelivery of the same event id is absorbed without new writes.
	res, err = svc.HandleWebhook(body, signBody(body, testWebhookSecret), "evt_1")
	if err != nil {
		t.Fatalf("redelivered HandleWebhook: %v", err)
	}
	if !res.Duplicate || res.Settled {
		t.Fatalf("redelivery result = %+v, want duplicate", res)
	}
	if len(repo.payments) != 1 || len(repo.entries) != 1 || len(queue.receipts) != 1 {
		t.Fatal("redelivery must not produce new writes")
	}
}

func TestSecondPaidEventForSameSankalpIsDuplicate(t *testing.T) {
	repo := newFakeReconRepo()
	queue := &fakeQueue{}
	s := pendingSankalp()
	repo.sankalps[s.UUID] = s
	svc := NewService(repo, testWebhookSecret, queue)

	body := paidBody("plink_42", "pay_1", 5100)
	if _, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), "evt_1"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	// payment.captured lands after payment_link.paid with its own event id.
	captured := []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {
			"payment": {"entity": {"id": "pay_1", "amount": 5100, "currency": "USD", "notes": {"sankalp_uuid": %q}}}
		}
	}`, s.UUID))
	res, err := svc.HandleWebhook(captured, signBody(captured, testWebhookSecret), "evt_2")
	if err != nil {
		t.Fatalf("captured HandleWebhook: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("result = %+v, want duplicate for already-paid sankalp", res)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("payment rows = %d, want exactly one per sankalp settlement", len(repo.payments))
	}
	if len(queue.receipts) != 1 {
		t.Fatalf("receipts enqueued = %v, want one", queue.receipts)
	}
}

func TestExpiryAfterSettlementIsNoOp(t *testing.T) {
	repo := newFakeReconRepo()
	queue := &fakeQueue{}
	s := pendingSankalp()
	s.Status = models.SankalpPaid
	repo.sankalps[s.UUID] = s
	svc := NewService(repo, testWebhookSecret, queue)

	body := expiredBody("plink_42")
	res, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), "evt_9")
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if !res.Duplicate || res.Expired {
		t.Fatalf("result = %+v, want no-op duplicate", res)
	}
	if s.Status != models.SankalpPaid {
		t.Fatalf("status = %s, expiry must never override a settled sankalp", s.Status)
	}
	if len(repo.reset) != 0 || len(queue.expiries) != 0 {
		t.Fatal("late expiry must not reset the user or enqueue a notice")
	}
}

func TestExpiryOfPendingSankalp(t *testing.T) {
	repo := newFakeReconRepo()
	queue := &fakeQueue{}
	s := pendingSankalp()
	repo.sankalps[s.UUID] = s
	svc := NewService(repo, testWebhookSecret, queue)

	body := expiredBody("plink_42")
	res, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), "evt_9")
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if !res.Expired {
		t.Fatalf("result = %+v, want expired", res)
	}
	if s.Status != models.SankalpExpired {
		t.Fatalf("status = %s, want EXPIRED", s.Status)
	}
	if len(repo.reset) != 1 || repo.reset[0] != s.UserID {
		t.Fatalf("reset users = %v", repo.reset)
	}
	if len(queue.expiries) != 1 || queue.expiries[0] != s.UUID {
		t.Fatalf("expiry notices = %v", queue.expiries)
	}
}

func TestOrphanPaidEventIsAbsorbed(t *testing.T) {
	repo := newFakeReconRepo()
	queue := &fakeQueue{}
	svc := NewService(repo, testWebhookSecret, queue)

	body := paidBody("plink_unknown", "pay_1", 1500)
	res, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), "evt_1")
	if err != nil {
		t.Fatalf("orphan events must not error: %v", err)
	}
	if !res.Orphan || res.Settled {
		t.Fatalf("result = %+v, want orphan", res)
	}
	if len(repo.payments) != 0 || len(queue.receipts) != 0 {
		t.Fatal("orphan events must not write or enqueue")
	}
}

func TestBadSignatureRejectedBeforeParsing(t *testing.T) {
	repo := newFakeReconRepo()
	svc := NewService(repo, testWebhookSecret, &fakeQueue{})

	body := paidBody("plink_42", "pay_1", 5100)
	if _, err := svc.HandleWebhook(body, "deadbeef", "evt_1"); err != ErrSignatureInvalid {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
	if len(repo.payments) != 0 {
		t.Fatal("unverified delivery must not write")
	}
}

func TestMissingEventIDFallsBackToBodyHash(t *testing.T) {
	repo := newFakeReconRepo()
	queue := &fakeQueue{}
	s := pendingSankalp()
	repo.sankalps[s.UUID] = s
	svc := NewService(repo, testWebhookSecret, queue)

	body := paidBody("plink_42", "pay_1", 5100)
	if _, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), ""); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("payment rows = %d", len(repo.payments))
	}
	for eventID := range repo.payments {
		if len(eventID) != len("hash:")+64 || eventID[:5] != "hash:" {
			t.Fatalf("derived event id = %q, want hash-prefixed", eventID)
		}
	}

	// The same body without a header dedupes against the derived id.
	res, err := svc.HandleWebhook(body, signBody(body, testWebhookSecret), "")
	if err != nil {
		t.Fatalf("redelivered HandleWebhook: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("result = %+v, want duplicate", res)
	}
	if len(repo.payments) != 1 {
		t.Fatal("redelivery without header must not insert a second row")
	}
}
