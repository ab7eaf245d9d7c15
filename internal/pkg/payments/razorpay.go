package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
)

const defaultRazorpayAPIBaseURL = "https://api.razorpay.com/v1"

// Webhook event types the reconciliation engine consumes.
const (
	EventPaymentLinkPaid    = "payment_link.paid"
	EventPaymentCaptured    = "payment.captured"
	EventPaymentLinkExpired = "payment_link.expired"
)

// RazorpayClient issues payment links. Webhook verification lives in
// signature.go; this client only covers the outbound API surface.
type RazorpayClient struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

// PaymentLink is the subset of the provider's payment-link entity the core
// keeps: the identifier for webhook correlation and the URL for the user.
type PaymentLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

// WebhookEvent is the normalized shape of an inbound payment webhook.
type WebhookEvent struct {
	EventID       string
	EventType     string
	PaymentID     string
	PaymentLinkID string
	SankalpUUID   string
	AmountCents   int64
	Currency      string
}

func NewRazorpayClientFromEnv() *RazorpayClient {
	return &RazorpayClient{
		KeyID:      strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("RAZORPAY_API_BASE_URL", defaultRazorpayAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePaymentLink asks the provider for a one-off payment link. The
// sankalp UUID travels in the link notes so the webhook can be correlated
// back even when the link identifier is missing from an event variant.
func (c *RazorpayClient) CreatePaymentLink(ctx context.Context, amountCents int64, currency, description, customerPhone, sankalpUUID string) (*PaymentLink, error) {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return nil, fmt.Errorf("%w: RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET are not configured", ErrLinkCreationFailed)
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrLinkCreationFailed)
	}

	reqBody := map[string]interface{}{
		"amount":      amountCents,
		"currency":    currency,
		"description": description,
		"customer": map[string]string{
			"contact": customerPhone,
		},
		"notes": map[string]string{
			"sankalp_uuid": sankalpUUID,
		},
		"notify": map[string]bool{
			"sms": false, "email": false,
		},
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkCreationFailed, err)
	}

	u := strings.TrimRight(c.APIBaseURL, "/") + "/payment_links"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkCreationFailed, err)
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkCreationFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrLinkCreationFailed, resp.StatusCode, string(body))
	}

	var link PaymentLink
	if err := json.Unmarshal(body, &link); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkCreationFailed, err)
	}
	if strings.TrimSpace(link.ID) == "" {
		return nil, fmt.Errorf("%w: response missing link id", ErrLinkCreationFailed)
	}
	return &link, nil
}

// ParseWebhookEvent normalizes a raw provider webhook body. eventIDHeader is
// the provider's delivery identifier header; when absent the caller derives
// one from the payload hash before persistence.
func ParseWebhookEvent(payload []byte, eventIDHeader string) (*WebhookEvent, error) {
	type entityWrapper struct {
		Entity struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Notes    map[string]string `json:"notes"`
		} `json:"entity"`
	}
	type rawPayload struct {
		Event   string `json:"event"`
		Payload struct {
			PaymentLink entityWrapper `json:"payment_link"`
			Payment     entityWrapper `json:"payment"`
		} `json:"payload"`
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	eventType := strings.TrimSpace(raw.Event)
	switch eventType {
	case EventPaymentLinkPaid, EventPaymentCaptured, EventPaymentLinkExpired:
	case "":
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: unsupported event type %s", ErrMalformedPayload, eventType)
	}

	out := &WebhookEvent{
		EventID:       strings.TrimSpace(eventIDHeader),
		EventType:     eventType,
		PaymentID:     strings.TrimSpace(raw.Payload.Payment.Entity.ID),
		PaymentLinkID: strings.TrimSpace(raw.Payload.PaymentLink.Entity.ID),
		AmountCents:   raw.Payload.Payment.Entity.Amount,
		Currency:      strings.TrimSpace(raw.Payload.Payment.Entity.Currency),
	}
	if out.AmountCents == 0 {
		out.AmountCents = raw.Payload.PaymentLink.Entity.Amount
	}
	if out.Currency == "" {
		out.Currency = strings.TrimSpace(raw.Payload.PaymentLink.Entity.Currency)
	}
	if uuid, ok := raw.Payload.PaymentLink.Entity.Notes["sankalp_uuid"]; ok {
		out.SankalpUUID = strings.TrimSpace(uuid)
	}
	if out.SankalpUUID == "" {
		if uuid, ok := raw.Payload.Payment.Entity.Notes["sankalp_uuid"]; ok {
			out.SankalpUUID = strings.TrimSpace(uuid)
		}
	}

	if out.PaymentLinkID == "" && out.SankalpUUID == "" {
		return nil, fmt.Errorf("%w: event carries neither payment link id nor sankalp reference", ErrMalformedPayload)
	}
	if out.EventType != EventPaymentLinkExpired && out.PaymentID == "" {
		return nil, fmt.Errorf("%w: paid event missing payment id", ErrMalformedPayload)
	}
	return out, nil
}

// IsPaidEvent reports whether the event type settles money.
func (e *WebhookEvent) IsPaidEvent() bool {
	return e.EventType == EventPaymentLinkPaid || e.EventType == EventPaymentCaptured
}
