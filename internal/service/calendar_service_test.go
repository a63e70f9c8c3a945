package service

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportICS(t *testing.T) {
	store := newTestStorage(t)
	users := NewUserService(store)
	friends := NewFriendService(store)
	svc := NewCalendarService(store, nil, zerolog.Nop())

	alice, err := users.Register(1, "alice", 100)
	require.NoError(t, err)
	_, err = friends.Add(1, "Grandma 02.07.1950")
	require.NoError(t, err)

	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	data, err := svc.ExportICS(alice, now)
	require.NoError(t, err)

	ics := string(data)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "BEGIN:VEVENT")
	assert.Contains(t, ics, "SUMMARY:🎂 grandma")
	assert.Contains(t, ics, "RRULE:FREQ=YEARLY")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20250702")
}

func TestUpcomingDigest(t *testing.T) {
	store := newTestStorage(t)
	users := NewUserService(store)
	friends := NewFriendService(store)
	groups := NewGroupService(store)
	svc := NewCalendarService(store, nil, zerolog.Nop())

	alice, err := users.Register(1, "alice", 100)
	require.NoError(t, err)
	_, err = users.Register(2, "bob", 200)
	require.NoError(t, err)
	_, err = users.SetBirthday(2, "05.03.1990")
	require.NoError(t, err)

	// One friend edge to a registered user, one private contact, one
	// group placeholder. The registered friend appears with the profile
	// date even though the edge itself has none.
	_, err = friends.Add(1, "@bob")
	require.NoError(t, err)
	_, err = friends.Add(1, "Grandma 10.03.1950")
	require.NoError(t, err)
	g, err := groups.Create(alice, "family")
	require.NoError(t, err)
	_, err = groups.AddPlaceholder(alice.ID, g.Code, "Aunt May", "20.03")
	require.NoError(t, err)

	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	list, err := svc.Upcoming(alice, now, 30)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Soonest first.
	assert.Equal(t, []int{4, 9, 19}, []int{list[0].DaysUntil, list[1].DaysUntil, list[2].DaysUntil})
	assert.Equal(t, 35, list[0].Age)
	assert.False(t, list[2].HasAge)

	text := svc.FormatUpcoming(list)
	require.Equal(t, 3, strings.Count(text, "🎂"))
	assert.Contains(t, text, "in 4 days")

	// Horizon filters out the far ones.
	list, err = svc.Upcoming(alice, now, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].Name)
}
