package domain

import (
	"fmt"
	"time"
)

// Feb29FallbackDay is the day a Feb 29 birthday lands on in non-leap
// years. The occurrence is never skipped, it is celebrated on Feb 28.
const Feb29FallbackDay = 28

// Birthday is a recurring calendar date. Year is optional: 0 means the
// birth year is unknown and age cannot be computed.
type Birthday struct {
	Day   int
	Month int
	Year  int
}

// Known reports whether both day and month are set.
func (b Birthday) Known() bool {
	return b.Day > 0 && b.Month > 0
}

// Validate checks that day/month form a real calendar day. Feb 29 is
// accepted as a valid stored birthdate; recurrence resolves it.
func (b Birthday) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return fmt.Errorf("invalid month %d", b.Month)
	}
	if b.Day < 1 || b.Day > daysInMonth(b.Month) {
		return fmt.Errorf("invalid day %d for month %d", b.Day, b.Month)
	}
	return nil
}

// daysInMonth is the maximum valid day for a month, leap-permissive
// for February so Feb 29 birthdates can be stored.
func daysInMonth(month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		return 29
	default:
		return 0
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// occurrenceIn places the birthday in the given year, applying the
// Feb 29 fallback when the year is not a leap year.
func (b Birthday) occurrenceIn(year int, loc *time.Location) time.Time {
	day := b.Day
	if b.Month == 2 && b.Day == 29 && !isLeapYear(year) {
		day = Feb29FallbackDay
	}
	return time.Date(year, time.Month(b.Month), day, 0, 0, 0, 0, loc)
}

// NextOccurrence returns the next calendar date on which this birthday
// falls, relative to today (only today's year/month/day and location
// are consulted), together with the whole-day distance to it.
// daysUntil is always >= 0; 0 means the birthday is today.
func (b Birthday) NextOccurrence(today time.Time) (time.Time, int) {
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	occ := b.occurrenceIn(midnight.Year(), midnight.Location())
	if occ.Before(midnight) {
		occ = b.occurrenceIn(midnight.Year()+1, midnight.Location())
	}
	return occ, daysBetween(midnight, occ)
}

// TurnsOn returns the age the person turns on the given occurrence
// date. ok is false when the birth year is unknown.
func (b Birthday) TurnsOn(occurrence time.Time) (int, bool) {
	if b.Year == 0 {
		return 0, false
	}
	return occurrence.Year() - b.Year, true
}

// daysBetween counts calendar days from a to b. Both are expected to be
// midnights in the same fixed-offset location, so the division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
