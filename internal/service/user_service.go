package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/storage"
)

type UserService struct {
	storage *storage.Storage
}

func NewUserService(s *storage.Storage) *UserService {
	return &UserService{storage: s}
}

// Register creates the account on /start and refreshes chat/username on
// every message so delivery always targets a live chat.
func (s *UserService) Register(id int64, username string, chatID int64) (*domain.User, error) {
	return s.storage.UpsertUser(id, username, chatID)
}

func (s *UserService) Get(id int64) (*domain.User, error) {
	return s.storage.GetUser(id)
}

func (s *UserService) GetByUsername(username string) (*domain.User, error) {
	return s.storage.GetUserByUsername(strings.TrimPrefix(username, "@"))
}

// SetBirthday parses and stores "DD.MM" or "DD.MM.YYYY".
func (s *UserService) SetBirthday(userID int64, text string) (domain.Birthday, error) {
	b, err := ParseBirthday(text)
	if err != nil {
		return domain.Birthday{}, err
	}
	if err := s.storage.UpdateBirthday(userID, b); err != nil {
		return domain.Birthday{}, err
	}
	return b, nil
}

// SetTimezone stores a fixed UTC hour offset, e.g. "3", "+2", "-11".
func (s *UserService) SetTimezone(userID int64, text string) (int, error) {
	offset, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(text), "+"))
	if err != nil || offset < -12 || offset > 14 {
		return 0, errors.New("timezone must be an hour offset between -12 and +14")
	}
	if err := s.storage.UpdateTZ(userID, offset); err != nil {
		return 0, err
	}
	return offset, nil
}

// SetAlert stores the lead days and optional delivery time ("HH:MM").
func (s *UserService) SetAlert(userID int64, daysText, timeText string) (domain.AlertPrefs, error) {
	days, err := strconv.Atoi(strings.TrimSpace(daysText))
	if err != nil || days < 0 || days > 365 {
		return domain.AlertPrefs{}, errors.New("lead days must be a number between 0 and 365")
	}

	at := domain.ClockTime{Hour: 9}
	if timeText != "" {
		at, err = domain.ParseClockTime(timeText)
		if err != nil {
			return domain.AlertPrefs{}, err
		}
	}

	if err := s.storage.UpdateAlert(userID, days, at); err != nil {
		return domain.AlertPrefs{}, err
	}

	u, err := s.storage.GetUser(userID)
	if err != nil {
		return domain.AlertPrefs{}, err
	}
	return u.Prefs, nil
}

var birthdayPattern = regexp.MustCompile(`^\d{1,2}[./]\d{1,2}([./]\d{4})?$`)

// ParseBirthday parses DD.MM, DD.MM.YYYY, DD/MM, DD/MM/YYYY.
func ParseBirthday(str string) (domain.Birthday, error) {
	str = strings.TrimSpace(str)
	if !birthdayPattern.MatchString(str) {
		return domain.Birthday{}, errors.New("date must look like DD.MM or DD.MM.YYYY")
	}

	parts := strings.FieldsFunc(str, func(r rune) bool { return r == '.' || r == '/' })
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year := 0
	if len(parts) == 3 {
		year, _ = strconv.Atoi(parts[2])
	}

	b := domain.Birthday{Day: day, Month: month, Year: year}
	if err := b.Validate(); err != nil {
		return domain.Birthday{}, err
	}
	return b, nil
}

// FormatProfile renders the user's own settings.
func (s *UserService) FormatProfile(u *domain.User) string {
	var sb strings.Builder
	sb.WriteString("<b>Your settings</b>\n\n")

	if u.Birthday.Known() {
		sb.WriteString(fmt.Sprintf("🎂 Birthday: %02d.%02d", u.Birthday.Day, u.Birthday.Month))
		if u.Birthday.Year != 0 {
			sb.WriteString(fmt.Sprintf(".%d", u.Birthday.Year))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("🎂 Birthday: not set (/setbirthday)\n")
	}

	sb.WriteString(fmt.Sprintf("🌍 Timezone: UTC%+d\n", u.Prefs.TZOffset))
	sb.WriteString(fmt.Sprintf("🔔 Alert: %d day(s) before, at %s\n", u.Prefs.LeadDays, u.Prefs.At))
	return sb.String()
}
