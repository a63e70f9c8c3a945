package domain

import "time"

// User is a registered account. ID is the Telegram user id; ChatID is
// the private chat used for delivery (0 until the user opened one).
type User struct {
	ID        int64
	Username  string
	ChatID    int64
	Birthday  Birthday
	Prefs     AlertPrefs
	CreatedAt time.Time
}

// Reachable reports whether reminders can be delivered to this user.
func (u *User) Reachable() bool {
	return u.ChatID != 0
}
