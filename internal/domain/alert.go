package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a delivery time-of-day in the observer's local zone.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime parses "HH:MM" (also accepts "H:MM").
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// AlertPrefs is the canonical per-observer alert configuration: how many
// days before an occurrence to notify, at what local time, in which
// fixed-offset timezone. Legacy hour-based settings are converted to
// this form at the storage boundary; nothing downstream branches on
// schema version.
type AlertPrefs struct {
	LeadDays int
	At       ClockTime
	TZOffset int // whole hours relative to UTC
}

// Location returns the observer's fixed-offset location.
func (p AlertPrefs) Location() *time.Location {
	if p.TZOffset == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", p.TZOffset), p.TZOffset*3600)
}

// PrefsFromLegacyHours converts the old "N hours before local midnight"
// alert model into canonical prefs. The resulting trigger instant is
// exactly occurrence midnight minus hours.
func PrefsFromLegacyHours(hours, tzOffset int) AlertPrefs {
	if hours <= 0 {
		return AlertPrefs{LeadDays: 0, At: ClockTime{}, TZOffset: tzOffset}
	}
	days := (hours + 23) / 24
	return AlertPrefs{
		LeadDays: days,
		At:       ClockTime{Hour: days*24 - hours},
		TZOffset: tzOffset,
	}
}

// TriggerTime computes the absolute UTC instant at which the observer
// wants to be notified about the given occurrence date: the configured
// time of day, LeadDays before the occurrence, in the observer's zone.
// time.Date normalizes out-of-range days, so leads crossing a month or
// year boundary resolve by absolute day arithmetic.
func (p AlertPrefs) TriggerTime(occurrence time.Time) time.Time {
	loc := p.Location()
	t := time.Date(
		occurrence.Year(), occurrence.Month(), occurrence.Day()-p.LeadDays,
		p.At.Hour, p.At.Minute, 0, 0, loc,
	)
	return t.UTC()
}

// ShouldFire reports whether the observer's trigger instant for the
// occurrence falls inside the half-open tick window (prevTick, nowTick].
// The half-open interval guarantees exactly one tick claims the trigger
// even when the cadence does not align to the minute. This check is
// advisory: the dedup ledger remains the authoritative at-most-once
// guard (e.g. against clocks moving backward between ticks).
func (p AlertPrefs) ShouldFire(occurrence, prevTick, nowTick time.Time) bool {
	trigger := p.TriggerTime(occurrence)
	return trigger.After(prevTick) && !trigger.After(nowTick)
}
