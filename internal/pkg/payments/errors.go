package payments

import "errors"

var (
	// ErrSignatureInvalid means the webhook signature did not match the
	// shared secret. Never treated as transient.
	ErrSignatureInvalid = errors.New("payments: webhook signature invalid")

	// ErrMalformedPayload means the webhook body could not be parsed into a
	// known event shape. Rejected without mutation.
	ErrMalformedPayload = errors.New("payments: malformed webhook payload")

	// ErrOrphanPayment means a verified payment event referenced no known
	// sankalp. Logged and held for manual reconciliation.
	ErrOrphanPayment = errors.New("payments: no sankalp for payment event")

	// ErrDuplicateEvent means the event identifier was already recorded.
	// Absorbed as idempotent success at the boundary.
	ErrDuplicateEvent = errors.New("payments: duplicate webhook event")

	// ErrLinkCreationFailed means the provider rejected or failed the
	// payment-link request. The owning sankalp stays INITIATED so the user
	// can retry.
	ErrLinkCreationFailed = errors.New("payments: payment link creation failed")
)
