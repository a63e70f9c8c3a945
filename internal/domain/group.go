package domain

import "time"

// Group is a shared circle of people watching each other's birthdays.
// Members join by code.
type Group struct {
	ID        string // uuid
	Name      string
	Code      string // unique join code
	OwnerID   int64
	CreatedAt time.Time
}

// GroupMember is one entry of a group's member list: either a
// registered user (UserID != 0) or a placeholder with its own
// birthdate. A registered member may still carry a group-scoped
// birthdate; it overrides the personal one for notifications derived
// from this membership.
type GroupMember struct {
	ID       int64
	GroupID  string
	UserID   int64
	Name     string
	Birthday Birthday
}

// Registered reports whether the member is a real account.
func (m *GroupMember) Registered() bool {
	return m.UserID != 0
}
