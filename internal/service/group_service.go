package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/storage"
)

type GroupService struct {
	storage *storage.Storage
}

func NewGroupService(s *storage.Storage) *GroupService {
	return &GroupService{storage: s}
}

// Create makes a new group owned by the user, with a short unique join
// code, and adds the owner as the first member.
func (s *GroupService) Create(owner *domain.User, name string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("group name cannot be empty")
	}

	g := &domain.Group{
		ID:      uuid.NewString(),
		Name:    name,
		Code:    joinCode(),
		OwnerID: owner.ID,
	}
	if err := s.storage.CreateGroup(g); err != nil {
		return nil, err
	}

	member := &domain.GroupMember{GroupID: g.ID, UserID: owner.ID, Name: displayName(owner)}
	if err := s.storage.AddMember(member); err != nil {
		return nil, err
	}
	return g, nil
}

// Join adds a registered user to the group behind a join code.
func (s *GroupService) Join(code string, user *domain.User) (*domain.Group, error) {
	g, err := s.storage.GetGroupByCode(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.New("no group with that code")
	}

	members, err := s.storage.ListMembers(g.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.UserID == user.ID {
			return nil, errors.New("you are already in this group")
		}
	}

	member := &domain.GroupMember{GroupID: g.ID, UserID: user.ID, Name: displayName(user)}
	if err := s.storage.AddMember(member); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GroupService) Leave(code string, userID int64) (*domain.Group, error) {
	g, err := s.storage.GetGroupByCode(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.New("no group with that code")
	}
	removed, err := s.storage.RemoveMember(g.ID, userID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, errors.New("you are not in this group")
	}
	return g, nil
}

// AddPlaceholder adds an unregistered person (with their birthdate) to
// a group the caller belongs to.
func (s *GroupService) AddPlaceholder(callerID int64, code, name, date string) (*domain.GroupMember, error) {
	g, err := s.storage.GetGroupByCode(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.New("no group with that code")
	}

	members, err := s.storage.ListMembers(g.ID)
	if err != nil {
		return nil, err
	}
	isMember := false
	for _, m := range members {
		if m.UserID == callerID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, errors.New("only group members can add people")
	}

	b, err := ParseBirthday(date)
	if err != nil {
		return nil, err
	}

	member := &domain.GroupMember{GroupID: g.ID, Name: strings.TrimSpace(name), Birthday: b}
	if member.Name == "" {
		return nil, errors.New("member name cannot be empty")
	}
	if err := s.storage.AddMember(member); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *GroupService) ListForUser(userID int64) ([]*domain.Group, error) {
	return s.storage.ListGroupsContaining(userID)
}

func (s *GroupService) Members(groupID string) ([]*domain.GroupMember, error) {
	return s.storage.ListMembers(groupID)
}

// FormatGroupList renders groups with their join codes.
func (s *GroupService) FormatGroupList(groups []*domain.Group) string {
	if len(groups) == 0 {
		return "You are not in any group. /newgroup Name or /joingroup CODE"
	}
	var sb strings.Builder
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("👥 <b>%s</b> — code <code>%s</code>\n", g.Name, g.Code))
	}
	return sb.String()
}

// joinCode derives a short shareable code. Uniqueness is enforced by
// the storage constraint; collisions on 8 hex chars are not a practical
// concern at this scale.
func joinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func displayName(u *domain.User) string {
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("id:%d", u.ID)
}
