package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// MINUTE ARITHMETIC - Pure functions, no side effects
// =============================================================================

// MinutesBetween returns the whole minutes elapsed from `from` to `to`,
// flooring partial minutes. Negative when to precedes from.
func MinutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

// FormatMinutes renders a minute count as zero-padded "HH:MM". The hour
// field is not wrapped at 24 (1500 minutes renders as "25:00"). Negative
// counts render as "00:00".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatMinutesPtr is FormatMinutes for optional counts; nil renders as
// "00:00".
func FormatMinutesPtr(minutes *int) string {
	if minutes == nil {
		return "00:00"
	}
	return FormatMinutes(*minutes)
}
