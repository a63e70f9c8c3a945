package domain

import "strings"

// MaintenanceMode is the operational gate consumed by the engine. It is
// written by external admin tooling; the engine only reads it, once per
// tick.
type MaintenanceMode int

const (
	// MaintenanceOff: normal operation.
	MaintenanceOff MaintenanceMode = iota
	// MaintenanceSoft: evaluation runs but delivery is suppressed, and
	// no reservations are taken so the reminders fire for real once the
	// mode lifts.
	MaintenanceSoft
	// MaintenanceHard: the tick is skipped entirely.
	MaintenanceHard
)

func (m MaintenanceMode) String() string {
	switch m {
	case MaintenanceSoft:
		return "soft"
	case MaintenanceHard:
		return "hard"
	default:
		return "off"
	}
}

// ParseMaintenanceMode decodes the stored flag value, formatted as
// "on:soft", "on:hard" or anything starting with "off". Unknown values
// fail open.
func ParseMaintenanceMode(value string) MaintenanceMode {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) == 0 || parts[0] != "on" {
		return MaintenanceOff
	}
	if len(parts) == 2 && parts[1] == "hard" {
		return MaintenanceHard
	}
	return MaintenanceSoft
}
