package service

import (
	"fmt"
	"strings"

	"github.com/tazhate/birthdaybot/internal/domain"
)

// Directory is the read-only persistence surface the subscriber graph
// and the notification engine consume. Implemented by storage.Storage.
type Directory interface {
	GetUser(id int64) (*domain.User, error)
	ListUsersWithBirthday() ([]*domain.User, error)
	ListOwnersTracking(subjectID int64, usernameLower string) ([]int64, error)
	ListRegisteredFriendIDs(ownerID int64) ([]int64, error)
	ListTrackedContacts() ([]*domain.Friend, error)
	ListGroupsContaining(userID int64) ([]*domain.Group, error)
	ListMembers(groupID string) ([]*domain.GroupMember, error)
	ListMemberEntries() ([]*domain.GroupMember, error)
}

// GraphService answers "who must be notified about this subject". The
// relation is derived at query time from the friends and group tables,
// never stored. Results are unique by observer id: an observer reached
// through several paths (friend and common group) appears once.
type GraphService struct {
	store Directory
}

func NewGraphService(store Directory) *GraphService {
	return &GraphService{store: store}
}

// observerSet accumulates edges deduplicated by observer identity.
// The first edge kind to reach an observer wins; kind is informational.
type observerSet struct {
	seen map[int64]bool
	out  []domain.Observer
}

func newObserverSet() *observerSet {
	return &observerSet{seen: map[int64]bool{}}
}

func (s *observerSet) add(u *domain.User, kind domain.EdgeKind) {
	if u == nil || !u.Reachable() || s.seen[u.ID] {
		return
	}
	s.seen[u.ID] = true
	s.out = append(s.out, domain.Observer{
		UserID: u.ID,
		ChatID: u.ChatID,
		Prefs:  u.Prefs,
		Kind:   kind,
	})
}

// ObserversOfUser expands the observers of a registered subject:
// mutual follows in both directions, plus co-members of every group the
// subject belongs to. Groups where the subject's membership carries an
// overriding group-scoped birthdate are skipped here; those
// notifications flow through the membership-context subject instead.
func (g *GraphService) ObserversOfUser(subject *domain.User) ([]domain.Observer, error) {
	set := newObserverSet()
	set.seen[subject.ID] = true // never notify the subject about themselves

	owners, err := g.store.ListOwnersTracking(subject.ID, lowerUsername(subject))
	if err != nil {
		return nil, fmt.Errorf("owners tracking %d: %w", subject.ID, err)
	}
	for _, id := range owners {
		u, err := g.store.GetUser(id)
		if err != nil {
			return nil, fmt.Errorf("load observer %d: %w", id, err)
		}
		set.add(u, domain.EdgeMutualFollow)
	}

	// Reverse direction of the mutual-follow relation: everyone the
	// subject added is aware of the subject too.
	friendIDs, err := g.store.ListRegisteredFriendIDs(subject.ID)
	if err != nil {
		return nil, fmt.Errorf("registered friends of %d: %w", subject.ID, err)
	}
	for _, id := range friendIDs {
		u, err := g.store.GetUser(id)
		if err != nil {
			return nil, fmt.Errorf("load observer %d: %w", id, err)
		}
		set.add(u, domain.EdgeMutualFollow)
	}

	groups, err := g.store.ListGroupsContaining(subject.ID)
	if err != nil {
		return nil, fmt.Errorf("groups containing %d: %w", subject.ID, err)
	}
	for _, grp := range groups {
		members, err := g.store.ListMembers(grp.ID)
		if err != nil {
			return nil, fmt.Errorf("members of %s: %w", grp.ID, err)
		}
		if membershipOverrides(subject, members) {
			continue
		}
		if err := g.addRegisteredMembers(set, members); err != nil {
			return nil, err
		}
	}

	return set.out, nil
}

// ObserversInGroup expands the registered co-members of one group,
// excluding the subject member itself.
func (g *GraphService) ObserversInGroup(groupID string, excludeMemberID int64, excludeUserID int64) ([]domain.Observer, error) {
	members, err := g.store.ListMembers(groupID)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", groupID, err)
	}

	set := newObserverSet()
	if excludeUserID != 0 {
		set.seen[excludeUserID] = true
	}
	for _, m := range members {
		if m.ID == excludeMemberID || !m.Registered() {
			continue
		}
		u, err := g.store.GetUser(m.UserID)
		if err != nil {
			return nil, fmt.Errorf("load observer %d: %w", m.UserID, err)
		}
		set.add(u, domain.EdgeGroupCoMember)
	}
	return set.out, nil
}

// ObserverForContact resolves the single observer of an unregistered
// contact entry: the owner who created it. No cross-owner visibility.
func (g *GraphService) ObserverForContact(ownerID int64) ([]domain.Observer, error) {
	u, err := g.store.GetUser(ownerID)
	if err != nil {
		return nil, fmt.Errorf("load owner %d: %w", ownerID, err)
	}
	set := newObserverSet()
	set.add(u, domain.EdgeContactTrack)
	return set.out, nil
}

func (g *GraphService) addRegisteredMembers(set *observerSet, members []*domain.GroupMember) error {
	for _, m := range members {
		if !m.Registered() {
			continue
		}
		u, err := g.store.GetUser(m.UserID)
		if err != nil {
			return fmt.Errorf("load observer %d: %w", m.UserID, err)
		}
		set.add(u, domain.EdgeGroupCoMember)
	}
	return nil
}

// membershipOverrides reports whether the subject's row in the group
// carries a group-scoped birthdate different from the profile one. Such
// memberships notify through their own subject context so the two dates
// are never merged silently.
func membershipOverrides(subject *domain.User, members []*domain.GroupMember) bool {
	for _, m := range members {
		if m.UserID == subject.ID {
			return m.Birthday.Known() && m.Birthday != subject.Birthday
		}
	}
	return false
}

func lowerUsername(u *domain.User) string {
	if u.Username == "" {
		return ""
	}
	return strings.ToLower(u.Username)
}
