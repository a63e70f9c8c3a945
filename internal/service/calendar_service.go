package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/rs/zerolog"

	caldavclient "github.com/tazhate/birthdaybot/internal/clients/caldav"
	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/storage"
)

// CalendarService renders the birthdays a user watches as an iCalendar
// feed, and optionally pushes it to a CalDAV collection.
type CalendarService struct {
	storage   *storage.Storage
	publisher *caldavclient.Client
	log       zerolog.Logger
}

func NewCalendarService(s *storage.Storage, publisher *caldavclient.Client, log zerolog.Logger) *CalendarService {
	return &CalendarService{
		storage:   s,
		publisher: publisher,
		log:       log.With().Str("component", "calendar").Logger(),
	}
}

type calendarEntry struct {
	uid      string
	name     string
	birthday domain.Birthday
}

// BuildCalendar collects every birthday visible to the user (friends
// plus group co-members) into a VCALENDAR with yearly recurring events.
func (s *CalendarService) BuildCalendar(user *domain.User, now time.Time) (*ical.Calendar, error) {
	entries, err := s.collectEntries(user)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//birthdaybot//Birthdays//EN")

	for _, e := range entries {
		occ, _ := e.birthday.NextOccurrence(now)

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, e.uid)
		event.Props.SetText(ical.PropSummary, fmt.Sprintf("🎂 %s", e.name))
		event.Props.SetDate(ical.PropDateTimeStart, occ)
		event.Props.Set(&ical.Prop{Name: ical.PropRecurrenceRule, Value: "FREQ=YEARLY"})
		event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

		cal.Children = append(cal.Children, event.Component)
	}

	return cal, nil
}

// ExportICS serializes the calendar for sending as a document.
func (s *CalendarService) ExportICS(user *domain.User, now time.Time) ([]byte, error) {
	cal, err := s.BuildCalendar(user, now)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// Publish uploads the user's birthday calendar to the configured CalDAV
// collection. No-op error when publishing is not configured.
func (s *CalendarService) Publish(ctx context.Context, user *domain.User, now time.Time) error {
	if s.publisher == nil || !s.publisher.IsConfigured() {
		return fmt.Errorf("CalDAV publishing is not configured")
	}
	cal, err := s.BuildCalendar(user, now)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("birthdays-%d", user.ID)
	if err := s.publisher.PublishCalendar(ctx, name, cal); err != nil {
		return err
	}
	s.log.Info().Int64("user", user.ID).Msg("calendar published")
	return nil
}

func (s *CalendarService) collectEntries(user *domain.User) ([]calendarEntry, error) {
	var entries []calendarEntry
	seen := map[string]bool{}

	add := func(uid, name string, b domain.Birthday) {
		if !b.Known() || b.Validate() != nil || seen[uid] {
			return
		}
		seen[uid] = true
		entries = append(entries, calendarEntry{uid: uid, name: name, birthday: b})
	}

	friends, err := s.storage.ListFriends(user.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range friends {
		key := domain.ContactKey(user.ID, f.FriendName)
		if !f.Unregistered() {
			key = domain.UserKey(f.FriendUserID)
		}
		add(icalUID(key), f.FriendName, f.Birthday)
	}

	groups, err := s.storage.ListGroupsContaining(user.ID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		members, err := s.storage.ListMembers(g.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.UserID == user.ID {
				continue
			}
			b := m.Birthday
			key := domain.MemberKey(g.ID, m.ID)
			if m.Registered() {
				key = domain.UserKey(m.UserID)
				if !b.Known() {
					mu, err := s.storage.GetUser(m.UserID)
					if err != nil {
						return nil, err
					}
					if mu != nil {
						b = mu.Birthday
					}
				}
			}
			add(icalUID(key), m.Name, b)
		}
	}

	return entries, nil
}

func icalUID(key domain.SubjectKey) string {
	return strings.ReplaceAll(string(key), ":", "-") + "@birthdaybot"
}

// UpcomingBirthday is one row of the /birthdays digest.
type UpcomingBirthday struct {
	Name       string
	Birthday   domain.Birthday
	Occurrence time.Time
	DaysUntil  int
	Age        int
	HasAge     bool
}

// Upcoming returns the birthdays a user watches within the horizon,
// soonest first.
func (s *CalendarService) Upcoming(user *domain.User, now time.Time, horizonDays int) ([]UpcomingBirthday, error) {
	entries, err := s.collectEntries(user)
	if err != nil {
		return nil, err
	}

	var out []UpcomingBirthday
	for _, e := range entries {
		occ, days := e.birthday.NextOccurrence(now)
		if days > horizonDays {
			continue
		}
		age, hasAge := e.birthday.TurnsOn(occ)
		out = append(out, UpcomingBirthday{
			Name:       e.name,
			Birthday:   e.birthday,
			Occurrence: occ,
			DaysUntil:  days,
			Age:        age,
			HasAge:     hasAge,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DaysUntil < out[j].DaysUntil })
	return out, nil
}

// FormatUpcoming renders the digest.
func (s *CalendarService) FormatUpcoming(list []UpcomingBirthday) string {
	if len(list) == 0 {
		return "No upcoming birthdays."
	}
	var sb strings.Builder
	for _, b := range list {
		sb.WriteString(fmt.Sprintf("🎂 <b>%s</b> — %s", b.Name, b.Occurrence.Format("02.01")))
		switch b.DaysUntil {
		case 0:
			sb.WriteString(" — <b>today!</b>")
		case 1:
			sb.WriteString(" — tomorrow")
		default:
			sb.WriteString(fmt.Sprintf(" — in %d days", b.DaysUntil))
		}
		if b.HasAge {
			sb.WriteString(fmt.Sprintf(" (turns %d)", b.Age))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
