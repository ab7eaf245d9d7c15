package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Rashi (zodiac sign) tokens recognized during onboarding.
const (
	RashiMesha      = "MESHA"
	RashiVrishabha  = "VRISHABHA"
	RashiMithuna    = "MITHUNA"
	RashiKarkataka  = "KARKATAKA"
	RashiSimha      = "SIMHA"
	RashiKanya      = "KANYA"
	RashiTula       = "TULA"
	RashiVrishchika = "VRISHCHIKA"
	RashiDhanu      = "DHANU"
	RashiMakara     = "MAKARA"
	RashiKumbha     = "KUMBHA"
	RashiMeena      = "MEENA"
)

// AllRashis lists every recognized rashi token in zodiac order.
var AllRashis = []string{
	RashiMesha, RashiVrishabha, RashiMithuna, RashiKarkataka,
	RashiSimha, RashiKanya, RashiTula, RashiVrishchika,
	RashiDhanu, RashiMakara, RashiKumbha, RashiMeena,
}

// Preferred deity tokens.
const (
	DeityShiva         = "SHIVA"
	DeityVishnu        = "VISHNU"
	DeityHanuman       = "HANUMAN"
	DeityLakshmi       = "LAKSHMI"
	DeityDurga         = "DURGA"
	DeityGanesha       = "GANESHA"
	DeityVenkateshwara = "VENKATESHWARA"
	DeitySaibaba       = "SAIBABA"
)

var AllDeities = []string{
	DeityShiva, DeityVishnu, DeityHanuman, DeityLakshmi,
	DeityDurga, DeityGanesha, DeityVenkateshwara, DeitySaibaba,
}

// Auspicious day tokens (weekday preference for the weekly prompt).
const (
	DaySunday    = "SUNDAY"
	DayMonday    = "MONDAY"
	DayTuesday   = "TUESDAY"
	DayWednesday = "WEDNESDAY"
	DayThursday  = "THURSDAY"
	DayFriday    = "FRIDAY"
	DaySaturday  = "SATURDAY"
)

var AllDays = []string{
	DaySunday, DayMonday, DayTuesday, DayWednesday,
	DayThursday, DayFriday, DaySaturday,
}

// DailyPromptCeiling is how many daily messages a user must have received
// before they become eligible for the weekly sankalp prompt. The daily
// counter pauses at this ceiling.
const DailyPromptCeiling = 6

// CooldownDays is the silence window after a completed sankalp.
const CooldownDays = 7

// User stores the phone identity, devotional preferences, and the current
// conversation state. One user per phone number; rows are soft-deleted only.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Phone            string         `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone" validate:"required,min=8,max=20"`
	Name             string         `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Rashi            string         `gorm:"type:varchar(20)" json:"rashi"`
	Nakshatra        string         `gorm:"type:varchar(30)" json:"nakshatra"`
	BirthTime        string         `gorm:"type:varchar(10)" json:"birth_time"` // HH:MM, 24h
	PreferredDeity   string         `gorm:"type:varchar(30)" json:"preferred_deity"`
	AuspiciousDay    string         `gorm:"type:varchar(10);index" json:"auspicious_day"`
	Timezone         string         `gorm:"type:varchar(50);not null;default:'America/Chicago'" json:"timezone"`
	State            string         `gorm:"type:varchar(40);not null;default:'NEW';index" json:"state"`
	DailyPromptsSent int            `gorm:"not null;default:0" json:"daily_prompts_sent"`
	LastSankalpAt    *time.Time     `gorm:"type:timestamp;default:null" json:"last_sankalp_at,omitempty"`
	OnboardedAt      *time.Time     `gorm:"type:timestamp;default:null" json:"onboarded_at,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsOnboarded reports whether the user has left the onboarding sequence.
func (u *User) IsOnboarded() bool {
	switch u.State {
	case StateNew, StateWaitingForRashi, StateWaitingForNakshatra,
		StateWaitingForBirthTime, StateWaitingForDeity, StateWaitingForAuspiciousDay:
		return false
	default:
		return true
	}
}

// IsInCooldown reports whether the post-sankalp silence window is still open
// at the given instant.
func (u *User) IsInCooldown(now time.Time) bool {
	if u.LastSankalpAt == nil {
		return false
	}
	return now.Before(u.LastSankalpAt.Add(CooldownDays * 24 * time.Hour))
}

// IsValidRashi reports whether token is a recognized rashi.
func IsValidRashi(token string) bool {
	for _, r := range AllRashis {
		if r == token {
			return true
		}
	}
	return false
}

// IsValidDeity reports whether token is a recognized deity.
func IsValidDeity(token string) bool {
	for _, d := range AllDeities {
		if d == token {
			return true
		}
	}
	return false
}

// IsValidDay reports whether token is a recognized weekday.
func IsValidDay(token string) bool {
	for _, d := range AllDays {
		if d == token {
			return true
		}
	}
	return false
}
