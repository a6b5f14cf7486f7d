// Package period contains the pure date arithmetic behind service-period
// extensions and renewal urgency classification. No I/O, no clock of its own;
// callers pass "now" explicitly.
package period

import "time"

// Urgency classifies how close a client is to service expiry.
type Urgency string

const (
	UrgencyExpired Urgency = "expired"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyWarning Urgency = "warning"
	UrgencyNormal  Urgency = "normal"
)

// ExtensionBaseline picks the date an extension counts from. A nil or
// already-past period end means the extension starts at now, so a lapsed
// client is never under-credited; a still-active period extends from its true
// end, never granting extra time.
func ExtensionBaseline(currentEnd *time.Time, now time.Time) time.Time {
	if currentEnd == nil || currentEnd.Before(now) {
		return now
	}
	return *currentEnd
}

// AddMonths adds n calendar months using the standard library month-add rule
// (Jan 31 + 1 month normalizes forward), not fixed 30-day increments.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// DaysLeft returns the number of whole days remaining until end, rounding any
// partial day up. An end earlier than now yields a negative count.
func DaysLeft(end, now time.Time) int {
	diff := end.Sub(now)
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}

// Classify buckets a days-remaining count.
func Classify(daysLeft int) Urgency {
	switch {
	case daysLeft < 0:
		return UrgencyExpired
	case daysLeft <= 3:
		return UrgencyUrgent
	case daysLeft <= 7:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}
