package domain

import (
	"fmt"
	"strings"
	"time"
)

// SubjectKey is the stable identity of a birthday subject inside the
// dedup ledger. Registered users, owner-scoped contacts and group
// placeholder members live in disjoint key spaces so a contact row can
// never collide with a real account.
type SubjectKey string

// UserKey identifies a registered user as a subject.
func UserKey(userID int64) SubjectKey {
	return SubjectKey(fmt.Sprintf("user:%d", userID))
}

// ContactKey identifies an unregistered contact tracked by one owner.
// Scoped by the owner id: two owners tracking the same name are two
// distinct subjects.
func ContactKey(ownerID int64, name string) SubjectKey {
	return SubjectKey(fmt.Sprintf("contact:%d:%s", ownerID, strings.ToLower(name)))
}

// MemberKey identifies a placeholder member inside one group.
func MemberKey(groupID string, memberID int64) SubjectKey {
	return SubjectKey(fmt.Sprintf("member:%s:%d", groupID, memberID))
}

// Subject is one person whose birthday the engine evaluates on a tick.
// For unregistered subjects the birthdate comes from the owning edge
// (friends row or group membership), not from a user profile.
type Subject struct {
	Key      SubjectKey
	Name     string
	Birthday Birthday

	// RegisteredID is the user id when the subject is a registered
	// account, 0 otherwise. Used to exclude self-notification.
	RegisteredID int64
}

// EdgeKind tags how an observer is related to a subject.
type EdgeKind int

const (
	EdgeMutualFollow EdgeKind = iota
	EdgeContactTrack
	EdgeGroupCoMember
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeMutualFollow:
		return "mutual_follow"
	case EdgeContactTrack:
		return "contact_track"
	case EdgeGroupCoMember:
		return "group_co_member"
	default:
		return "unknown"
	}
}

// Observer is a recipient entitled to a reminder about a subject.
// Delivery is keyed by the observer's own preferences, never the
// subject's.
type Observer struct {
	UserID int64
	ChatID int64
	Prefs  AlertPrefs
	Kind   EdgeKind
}

// Notification carries the structured facts handed to the delivery
// collaborator. The engine does not format messages.
type Notification struct {
	Recipient  Observer
	Subject    Subject
	Occurrence time.Time
	DaysUntil  int
	TurnsAge   int
	HasAge     bool
}

// NotificationRecord is one row of the dedup ledger: proof that the
// (recipient, subject, year) reminder was committed for sending.
type NotificationRecord struct {
	RecipientID int64
	SubjectKey  SubjectKey
	Year        int
	SentAt      time.Time
}
