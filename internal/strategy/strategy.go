// Package strategy selects the content-generation variant for a run from
// calendar context. Everything here is deterministic and side-effect free so
// jobs can be tested with a fixed date.
package strategy

import "time"

// Variant names a content-generation behaviour understood by the content
// service.
type Variant string

const (
	// VariantDaily is the generic day-to-day summary.
	VariantDaily Variant = "daily"
	// VariantSpecial is the weekly special issue (e.g. the week-in-review).
	VariantSpecial Variant = "special"
)

// ForDay returns VariantSpecial when now falls on the designated weekday and
// VariantDaily otherwise. now is interpreted as-is; callers are expected to
// have shifted it into the reference time zone already.
func ForDay(now time.Time, specialWeekday time.Weekday) Variant {
	if now.Weekday() == specialWeekday {
		return VariantSpecial
	}
	return VariantDaily
}

// TopicIndex rotates through topicCount topics by day of month. Returns 0
// when topicCount is not positive.
func TopicIndex(now time.Time, topicCount int) int {
	if topicCount <= 0 {
		return 0
	}
	return now.Day() % topicCount
}

// ParseWeekday maps a weekday name ("Sunday".."Saturday", case sensitive as
// produced by time.Weekday.String) to its time.Weekday value. The boolean is
// false for unknown names.
func ParseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return d, true
		}
	}
	return time.Sunday, false
}
