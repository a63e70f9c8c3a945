package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/birthdaybot/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), domain.AlertPrefs{
		LeadDays: 0,
		At:       domain.ClockTime{Hour: 9},
		TZOffset: 0,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertUserRefreshesContact(t *testing.T) {
	s := newTestStorage(t)

	u, err := s.UpsertUser(1, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(100), u.ChatID)

	require.NoError(t, s.UpdateBirthday(1, domain.Birthday{Day: 10, Month: 3, Year: 1990}))

	// Username change and a new chat must not wipe the birthdate.
	u, err = s.UpsertUser(1, "alice_new", 200)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", u.Username)
	assert.Equal(t, int64(200), u.ChatID)
	assert.Equal(t, domain.Birthday{Day: 10, Month: 3, Year: 1990}, u.Birthday)
}

func TestCanonicalPrefs(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UpsertUser(1, "alice", 100)
	require.NoError(t, err)

	// Untouched account gets the configured defaults.
	u, err := s.GetUser(1)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPrefs{At: domain.ClockTime{Hour: 9}}, u.Prefs)

	// Legacy hour-based row converts exactly.
	_, err = s.db.Exec(`UPDATE users SET alert_hours = 48, tz = 3 WHERE id = 1`)
	require.NoError(t, err)
	u, err = s.GetUser(1)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPrefs{LeadDays: 2, TZOffset: 3}, u.Prefs)

	// Canonical settings win and clear the legacy value.
	require.NoError(t, s.UpdateAlert(1, 5, domain.ClockTime{Hour: 8, Minute: 30}))
	u, err = s.GetUser(1)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPrefs{LeadDays: 5, At: domain.ClockTime{Hour: 8, Minute: 30}, TZOffset: 3}, u.Prefs)
}

func TestReserveIsAtMostOnce(t *testing.T) {
	s := newTestStorage(t)

	key := domain.UserKey(7)
	ok, err := s.Reserve(1, key, 2025)
	require.NoError(t, err)
	assert.True(t, ok, "first claim wins")

	ok, err = s.Reserve(1, key, 2025)
	require.NoError(t, err)
	assert.False(t, ok, "repeat claim is a no-op")

	// Different recipient, year or subject are independent claims.
	for _, c := range []struct {
		recipient int64
		key       domain.SubjectKey
		year      int
	}{
		{2, key, 2025},
		{1, key, 2026},
		{1, domain.UserKey(8), 2025},
	} {
		ok, err := s.Reserve(c.recipient, c.key, c.year)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMaintenanceFlag(t *testing.T) {
	s := newTestStorage(t)

	mode, err := s.MaintenanceMode()
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceOff, mode, "missing row means normal operation")

	require.NoError(t, s.SetMaintenance("on:soft"))
	mode, err = s.MaintenanceMode()
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceSoft, mode)

	require.NoError(t, s.SetMaintenance("on:hard"))
	mode, err = s.MaintenanceMode()
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceHard, mode)

	require.NoError(t, s.SetMaintenance("off:done"))
	mode, err = s.MaintenanceMode()
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceOff, mode)
}

func TestListOwnersTracking(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UpsertUser(1, "alice", 100)
	require.NoError(t, err)
	_, err = s.UpsertUser(2, "bob", 200)
	require.NoError(t, err)
	_, err = s.UpsertUser(3, "carol", 300)
	require.NoError(t, err)

	// Bob follows alice by id; carol added "Alice" before she registered.
	require.NoError(t, s.AddFriend(&domain.Friend{OwnerID: 2, FriendUserID: 1, FriendName: "alice"}))
	require.NoError(t, s.AddFriend(&domain.Friend{
		OwnerID: 3, FriendName: "Alice",
		Birthday: domain.Birthday{Day: 10, Month: 3},
	}))

	owners, err := s.ListOwnersTracking(1, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3}, owners)

	// Without a username only the id edge matches.
	owners, err = s.ListOwnersTracking(1, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, owners)
}

func TestListFriendsPrefersProfileData(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UpsertUser(1, "owner", 100)
	require.NoError(t, err)
	_, err = s.UpsertUser(2, "friend", 200)
	require.NoError(t, err)
	require.NoError(t, s.UpdateBirthday(2, domain.Birthday{Day: 1, Month: 6, Year: 1995}))

	require.NoError(t, s.AddFriend(&domain.Friend{OwnerID: 1, FriendUserID: 2, FriendName: "stale name"}))
	require.NoError(t, s.AddFriend(&domain.Friend{
		OwnerID: 1, FriendName: "Grandma",
		Birthday: domain.Birthday{Day: 2, Month: 7},
	}))

	friends, err := s.ListFriends(1)
	require.NoError(t, err)
	require.Len(t, friends, 2)

	assert.Equal(t, "friend", friends[0].FriendName, "registered entry shows the live username")
	assert.Equal(t, domain.Birthday{Day: 1, Month: 6, Year: 1995}, friends[0].Birthday)

	assert.True(t, friends[1].Unregistered())
	assert.Equal(t, "grandma", friends[1].FriendName)
	assert.Equal(t, domain.Birthday{Day: 2, Month: 7}, friends[1].Birthday)
}

func TestGroupMembership(t *testing.T) {
	s := newTestStorage(t)

	g := &domain.Group{ID: "uuid-1", Name: "family", Code: "ABCD1234", OwnerID: 1}
	require.NoError(t, s.CreateGroup(g))

	got, err := s.GetGroupByCode("ABCD1234")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "family", got.Name)

	missing, err := s.GetGroupByCode("NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.AddMember(&domain.GroupMember{GroupID: g.ID, UserID: 1, Name: "owner"}))
	placeholder := &domain.GroupMember{
		GroupID: g.ID, Name: "Aunt May",
		Birthday: domain.Birthday{Day: 10, Month: 3},
	}
	require.NoError(t, s.AddMember(placeholder))
	assert.NotZero(t, placeholder.ID)

	members, err := s.ListMembers(g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// Only rows carrying their own birthdate are subject entries.
	entries, err := s.ListMemberEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Aunt May", entries[0].Name)
	assert.False(t, entries[0].Registered())

	groups, err := s.ListGroupsContaining(1)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	removed, err := s.RemoveMember(g.ID, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	groups, err = s.ListGroupsContaining(1)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestWishlist(t *testing.T) {
	s := newTestStorage(t)

	item := &domain.WishlistItem{UserID: 1, Title: "fountain pen", URL: "https://example.org", Price: "40€"}
	require.NoError(t, s.AddWishlistItem(item))
	require.NotZero(t, item.ID)

	items, err := s.ListWishlist(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fountain pen", items[0].Title)

	// Deleting someone else's item must not succeed.
	removed, err := s.DeleteWishlistItem(2, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.DeleteWishlistItem(1, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}
