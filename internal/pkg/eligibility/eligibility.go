// Package eligibility decides when a user is due an outbound prompt. All
// functions are pure: the caller supplies the clock and dispatches messages.
package eligibility

import (
	"time"

	"github.com/subhamasthu/sankalp-bot/app/models"
)

// DailyPromptDue reports whether the user should receive today's daily
// devotional message. The daily counter pauses at its ceiling; it resumes
// after the weekly cycle resets it.
func DailyPromptDue(u *models.User, now time.Time) bool {
	if !u.IsOnboarded() {
		return false
	}
	switch u.State {
	case models.StateDailyPassive, models.StateOnboarded:
	default:
		return false
	}
	if u.DailyPromptsSent >= models.DailyPromptCeiling {
		return false
	}
	return true
}

// WeeklyPromptDue reports whether the weekly sankalp invitation is due.
// Requirements, in order: the user sits in the passive state, the daily
// cycle has completed its full run, today matches their auspicious day in
// their own timezone, and the post-sankalp cooldown has elapsed.
func WeeklyPromptDue(u *models.User, now time.Time) bool {
	if u.State != models.StateDailyPassive && u.State != models.StateOnboarded {
		return false
	}
	if u.DailyPromptsSent < models.DailyPromptCeiling {
		return false
	}
	if !isAuspiciousToday(u, now) {
		return false
	}
	if u.IsInCooldown(now) {
		return false
	}
	return true
}

// CooldownReleased reports whether a user parked in COOLDOWN may return to
// the passive daily cycle.
func CooldownReleased(u *models.User, now time.Time) bool {
	return u.State == models.StateCooldown && !u.IsInCooldown(now)
}

// AdvanceDailyCounter returns the counter value after a daily send. It never
// moves past the ceiling.
func AdvanceDailyCounter(sent int) int {
	if sent >= models.DailyPromptCeiling {
		return sent
	}
	return sent + 1
}

func isAuspiciousToday(u *models.User, now time.Time) bool {
	if u.AuspiciousDay == "" {
		return false
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return weekdayToken(now.In(loc).Weekday()) == u.AuspiciousDay
}

func weekdayToken(d time.Weekday) string {
	switch d {
	case time.Sunday:
		return models.DaySunday
	case time.Monday:
		return models.DayMonday
	case time.Tuesday:
		return models.DayTuesday
	case time.Wednesday:
		return models.DayWednesday
	case time.Thursday:
		return models.DayThursday
	case time.Friday:
		return models.DayFriday
	default:
		return models.DaySaturday
	}
}
