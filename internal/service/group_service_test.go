package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/birthdaybot/internal/domain"
)

func TestGroupLifecycle(t *testing.T) {
	store := newTestStorage(t)
	users := NewUserService(store)
	svc := NewGroupService(store)

	alice, err := users.Register(1, "alice", 100)
	require.NoError(t, err)
	bob, err := users.Register(2, "bob", 200)
	require.NoError(t, err)

	g, err := svc.Create(alice, "Family")
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Len(t, g.Code, 8)

	// The owner is a member from the start.
	members, err := svc.Members(g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, alice.ID, members[0].UserID)

	joined, err := svc.Join(g.Code, bob)
	require.NoError(t, err)
	assert.Equal(t, g.ID, joined.ID)

	_, err = svc.Join(g.Code, bob)
	require.Error(t, err, "double join rejected")

	_, err = svc.Join("NOPE1234", bob)
	require.Error(t, err, "unknown code rejected")

	m, err := svc.AddPlaceholder(bob.ID, g.Code, "Aunt May", "14.03")
	require.NoError(t, err)
	assert.False(t, m.Registered())
	assert.Equal(t, domain.Birthday{Day: 14, Month: 3}, m.Birthday)

	// Only members may add placeholders.
	carol, err := users.Register(3, "carol", 300)
	require.NoError(t, err)
	_, err = svc.AddPlaceholder(carol.ID, g.Code, "Nobody", "01.01")
	require.Error(t, err)

	left, err := svc.Leave(g.Code, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, left.ID)

	_, err = svc.Leave(g.Code, bob.ID)
	require.Error(t, err, "leaving twice rejected")

	groups, err := svc.ListForUser(alice.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Family", groups[0].Name)
}

func TestGroupCreateValidation(t *testing.T) {
	store := newTestStorage(t)
	users := NewUserService(store)
	svc := NewGroupService(store)

	alice, err := users.Register(1, "alice", 100)
	require.NoError(t, err)

	_, err = svc.Create(alice, "   ")
	require.Error(t, err)
}
