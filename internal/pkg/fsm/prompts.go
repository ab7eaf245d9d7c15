package fsm

import (
	"fmt"
	"strings"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/chat"
)

// Skip tokens accepted for the optional onboarding fields.
var skipTokens = map[string]bool{
	"SKIP":  true,
	"NEXT":  true,
	"VADDU": true,
}

func isSkipToken(token string) bool {
	return skipTokens[token]
}

// reply is one outbound message produced by a transition. At most one of
// buttons/listOptions is set; listOptions sends an interactive list for
// prompts with more choices than WhatsApp's three-button cap.
type reply struct {
	text        string
	buttons     []chat.Button
	listButton  string
	listOptions []chat.Button
}

func textReply(text string) reply {
	return reply{text: text}
}

func rashiPrompt() reply {
	return textReply("Welcome to Subhamasthu Sankalp Seva \U0001F64F\n\nTo personalize your daily blessings, please share your rashi (moon sign). Reply with one of:\n" + strings.Join(models.AllRashis, ", "))
}

func nakshatraPrompt() reply {
	return textReply("Thank you. If you know your nakshatra (birth star), please type it now. Or reply SKIP to continue.")
}

func birthTimePrompt() reply {
	return textReply("If you know your birth time, share it as HH:MM (24-hour). Or reply SKIP to continue.")
}

func deityPrompt() reply {
	options := make([]chat.Button, 0, len(models.AllDeities))
	for _, d := range models.AllDeities {
		options = append(options, chat.Button{ID: d, Title: title(d)})
	}
	return reply{
		text:        "Which deity would you like your sankalpas dedicated to?",
		listButton:  "Choose deity",
		listOptions: options,
	}
}

func auspiciousDayPrompt() reply {
	options := make([]chat.Button, 0, len(models.AllDays))
	for _, d := range models.AllDays {
		options = append(options, chat.Button{ID: d, Title: title(d)})
	}
	return reply{
		text:        "Which day of the week is most auspicious for you?",
		listButton:  "Choose day",
		listOptions: options,
	}
}

func onboardingComplete(u *models.User) reply {
	return textReply(fmt.Sprintf("Your profile is complete \U0001F549️ You will receive a daily blessing, and every %s we will invite you to take a sankalp for %s.", title(u.AuspiciousDay), title(u.PreferredDeity)))
}

func weeklyPrompt(u *models.User) reply {
	return reply{
		text: fmt.Sprintf("Today is your auspicious %s \U0001F338 Would you like to take a sankalp and sponsor a seva in the name of %s?", title(u.AuspiciousDay), title(u.PreferredDeity)),
		buttons: []chat.Button{
			{ID: tokenStartSankalp, Title: "Take Sankalp"},
			{ID: tokenLater, Title: "Not today"},
		},
	}
}

func categoryPrompt() reply {
	return reply{
		text: "What is this sankalp for?",
		buttons: []chat.Button{
			{ID: models.CategoryFamily, Title: "Family Wellbeing"},
			{ID: models.CategoryHealth, Title: "Health"},
			{ID: models.CategoryCareer, Title: "Career & Studies"},
			{ID: models.CategoryPeace, Title: "Peace of Mind"},
		},
	}
}

func tierPrompt() reply {
	return reply{
		text: "Choose your seva offering:",
		buttons: []chat.Button{
			{ID: models.TierS15, Title: "$15 • Anna Seva"},
			{ID: models.TierS30, Title: "$30 • Archana Seva"},
			{ID: models.TierS50, Title: "$50 • Abhisheka Seva"},
		},
	}
}

func paymentLinkReply(url string) reply {
	return textReply("Please complete your sankalp offering using this secure link:\n" + url + "\n\nWe will confirm here as soon as it is received.")
}

func paymentPendingReply() reply {
	return textReply("Your payment link is still open. Please complete it, or wait for it to expire before starting a new sankalp.")
}

func linkFailedReply() reply {
	return textReply("We could not create your payment link right now. Please try again in a moment by re-sending your seva choice.")
}

func cooldownReply() reply {
	return textReply("Your sankalp is being performed \U0001F64F We will resume your daily blessings shortly.")
}

func passiveAck() reply {
	return textReply("\U0001F64F To take a new sankalp, reply SANKALP. To see your past sevas, reply HISTORY.")
}

func title(token string) string {
	if token == "" {
		return ""
	}
	lower := strings.ToLower(token)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
