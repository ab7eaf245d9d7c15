package ledger

// PlatformFeePercent is the platform's share of every donation. The
// remaining share is the seva amount forwarded to the temple partner.
const PlatformFeePercent = 20

// Split divides a donation amount (minor currency units) into the platform
// fee and the seva amount. The fee is rounded half-up at the cent so the
// two parts always sum exactly to the input: 5100 -> (1020, 4080).
func Split(amountCents int64) (platformFeeCents, sevaAmountCents int64) {
	platformFeeCents = (amountCents*PlatformFeePercent + 50) / 100
	sevaAmountCents = amountCents - platformFeeCents
	return platformFeeCents, sevaAmountCents
}
