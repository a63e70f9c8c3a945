package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/storage"
)

type FriendService struct {
	storage *storage.Storage
}

func NewFriendService(s *storage.Storage) *FriendService {
	return &FriendService{storage: s}
}

// Add parses "/addfriend @user" or "/addfriend Name DD.MM[.YYYY]" and
// creates the tracking edge. A registered @user brings their own
// profile birthdate; an unregistered contact needs one from the owner.
func (s *FriendService) Add(ownerID int64, args string) (*domain.Friend, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return nil, errors.New("specify @username or a name with a date")
	}

	// A trailing DD.MM[.YYYY] token is the contact's birthdate; the rest
	// of the line is the name.
	var bday domain.Birthday
	if len(parts) >= 2 {
		if b, err := ParseBirthday(parts[len(parts)-1]); err == nil {
			bday = b
			parts = parts[:len(parts)-1]
		}
	}

	name := strings.TrimPrefix(strings.Join(parts, " "), "@")
	if name == "" {
		return nil, errors.New("specify @username or a name with a date")
	}

	f := &domain.Friend{OwnerID: ownerID, FriendName: name, Birthday: bday}

	if u, err := s.storage.GetUserByUsername(name); err != nil {
		return nil, err
	} else if u != nil {
		if u.ID == ownerID {
			return nil, errors.New("you cannot add yourself")
		}
		f.FriendUserID = u.ID
	}

	if f.Unregistered() && !f.Birthday.Known() {
		return nil, errors.New("add a birthdate for contacts who are not on the bot yet, e.g. /addfriend Anna 14.03")
	}

	if err := s.storage.AddFriend(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FriendService) Delete(ownerID int64, name string) (bool, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" {
		return false, errors.New("specify the friend's name")
	}
	return s.storage.DeleteFriend(ownerID, name)
}

func (s *FriendService) List(ownerID int64) ([]*domain.Friend, error) {
	return s.storage.ListFriends(ownerID)
}

// FormatFriendList renders the owner's friends with upcoming birthdays.
func (s *FriendService) FormatFriendList(friends []*domain.Friend, now time.Time) string {
	if len(friends) == 0 {
		return "No friends yet. /addfriend @user or /addfriend Name DD.MM"
	}

	var sb strings.Builder
	for _, f := range friends {
		mark := "👤"
		if f.Unregistered() {
			mark = "📇"
		}
		sb.WriteString(fmt.Sprintf("%s <b>%s</b>", mark, f.FriendName))
		if f.Birthday.Known() {
			occ, days := f.Birthday.NextOccurrence(now)
			sb.WriteString(fmt.Sprintf(" 🎂 %02d.%02d", f.Birthday.Day, f.Birthday.Month))
			switch days {
			case 0:
				sb.WriteString(" — <b>today!</b>")
			case 1:
				sb.WriteString(" — tomorrow")
			default:
				sb.WriteString(fmt.Sprintf(" — in %d days", days))
			}
			if age, ok := f.Birthday.TurnsOn(occ); ok {
				sb.WriteString(fmt.Sprintf(" (turns %d)", age))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
