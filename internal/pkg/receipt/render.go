package receipt

import (
	"fmt"
	"strings"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/ledger"
)

// Render produces the receipt text sent to the user and archived. The fee
// split shown always re-derives from the sankalp amount, so the receipt and
// the ledger can never disagree.
func Render(u *models.User, s *models.Sankalp) string {
	fee, seva := ledger.Split(s.AmountCents)

	var b strings.Builder
	b.WriteString("\U0001F9FE Sankalp Seva Receipt\n\n")
	fmt.Fprintf(&b, "Receipt ID: %s\n", s.UUID)
	fmt.Fprintf(&b, "Devotee: %s\n", displayName(u))
	fmt.Fprintf(&b, "Sankalp: %s for %s\n", categoryLabel(s.Category), titleCase(s.Deity))
	fmt.Fprintf(&b, "Date: %s\n\n", s.UpdatedAt.Format("January 2, 2006"))
	fmt.Fprintf(&b, "Offering: $%.2f %s\n", float64(s.AmountCents)/100, s.Currency)
	fmt.Fprintf(&b, "Seva allocation: $%.2f\n", float64(seva)/100)
	fmt.Fprintf(&b, "Platform support: $%.2f\n\n", float64(fee)/100)
	b.WriteString("Your seva will be performed at the temple and the offering forwarded in the next settlement batch. \U0001F64F")
	return b.String()
}

func displayName(u *models.User) string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Phone
}

func categoryLabel(category string) string {
	switch category {
	case models.CategoryFamily:
		return "Family Wellbeing"
	case models.CategoryHealth:
		return "Health"
	case models.CategoryCareer:
		return "Career & Studies"
	case models.CategoryPeace:
		return "Peace of Mind"
	default:
		return titleCase(category)
	}
}

func titleCase(token string) string {
	if token == "" {
		return ""
	}
	lower := strings.ToLower(token)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
