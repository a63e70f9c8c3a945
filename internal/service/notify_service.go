package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tazhate/birthdaybot/internal/domain"
)

// Ledger is the durable at-most-once guard. Reserve claims the
// (recipient, subject, year) notification atomically and returns true
// exactly once; the claim is never released.
type Ledger interface {
	Reserve(recipientID int64, subjectKey domain.SubjectKey, year int) (bool, error)
}

// MaintenanceGate is the external operational flag, polled once per tick.
type MaintenanceGate interface {
	MaintenanceMode() (domain.MaintenanceMode, error)
}

// Deliverer is the chat transport. The engine hands over structured
// facts; formatting belongs to the transport.
type Deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

// TickStats summarizes one engine pass, for logging and tests.
type TickStats struct {
	Mode        domain.MaintenanceMode
	Subjects    int // subjects that passed the horizon prefilter
	Fired       int // (subject, observer) pairs whose window matched
	Delivered   int
	AlreadySent int // ledger said the pair was handled (normal skip)
	Failures    int // delivery errors; reservations stand, no retry
	Skipped     int // subjects dropped for malformed birthdates
}

// NotifyService is the recurrence and dispatch engine. Each tick it
// enumerates every person with a known birthdate, resolves the next
// occurrence, expands observers through the subscriber graph, matches
// each observer's alert window against the tick interval and delivers
// behind the dedup ledger.
type NotifyService struct {
	store       Directory
	ledger      Ledger
	gate        MaintenanceGate
	graph       *GraphService
	deliverer   Deliverer
	maxLeadDays int
	log         zerolog.Logger
}

func NewNotifyService(
	store Directory,
	ledger Ledger,
	gate MaintenanceGate,
	graph *GraphService,
	deliverer Deliverer,
	maxLeadDays int,
	log zerolog.Logger,
) *NotifyService {
	return &NotifyService{
		store:       store,
		ledger:      ledger,
		gate:        gate,
		graph:       graph,
		deliverer:   deliverer,
		maxLeadDays: maxLeadDays,
		log:         log.With().Str("component", "notify").Logger(),
	}
}

// Tick runs one full pass over the half-open window (prevTick, nowTick].
// Pure date logic receives the tick timestamps explicitly; the engine
// never reads the process clock. A non-nil error means persistence was
// unavailable and nothing useful could run; per-recipient delivery
// failures are counted in stats instead.
func (s *NotifyService) Tick(ctx context.Context, prevTick, nowTick time.Time) (TickStats, error) {
	var stats TickStats

	mode, err := s.gate.MaintenanceMode()
	if err != nil {
		return stats, fmt.Errorf("maintenance gate: %w", err)
	}
	stats.Mode = mode
	if mode == domain.MaintenanceHard {
		s.log.Info().Msg("maintenance hard, tick skipped")
		return stats, nil
	}

	if err := s.tickUsers(ctx, prevTick, nowTick, mode, &stats); err != nil {
		return stats, err
	}
	if err := s.tickContacts(ctx, prevTick, nowTick, mode, &stats); err != nil {
		return stats, err
	}
	if err := s.tickGroupMembers(ctx, prevTick, nowTick, mode, &stats); err != nil {
		return stats, err
	}

	s.log.Info().
		Str("mode", mode.String()).
		Int("subjects", stats.Subjects).
		Int("fired", stats.Fired).
		Int("delivered", stats.Delivered).
		Int("already_sent", stats.AlreadySent).
		Int("failures", stats.Failures).
		Msg("tick done")
	return stats, nil
}

// tickUsers processes registered users as subjects.
func (s *NotifyService) tickUsers(ctx context.Context, prevTick, nowTick time.Time, mode domain.MaintenanceMode, stats *TickStats) error {
	users, err := s.store.ListUsersWithBirthday()
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		subject := domain.Subject{
			Key:          domain.UserKey(u.ID),
			Name:         u.Username,
			Birthday:     u.Birthday,
			RegisteredID: u.ID,
		}
		if !s.admit(subject, nowTick, stats) {
			continue
		}
		observers, err := s.graph.ObserversOfUser(u)
		if err != nil {
			return err
		}
		if err := s.process(ctx, subject, observers, prevTick, nowTick, mode, stats); err != nil {
			return err
		}
	}
	return nil
}

// tickContacts processes unregistered tracked contacts; each has exactly
// one potential observer, the owner of the entry.
func (s *NotifyService) tickContacts(ctx context.Context, prevTick, nowTick time.Time, mode domain.MaintenanceMode, stats *TickStats) error {
	contacts, err := s.store.ListTrackedContacts()
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	for _, c := range contacts {
		subject := domain.Subject{
			Key:      domain.ContactKey(c.OwnerID, c.FriendName),
			Name:     c.FriendName,
			Birthday: c.Birthday,
		}
		if !s.admit(subject, nowTick, stats) {
			continue
		}
		observers, err := s.graph.ObserverForContact(c.OwnerID)
		if err != nil {
			return err
		}
		if err := s.process(ctx, subject, observers, prevTick, nowTick, mode, stats); err != nil {
			return err
		}
	}
	return nil
}

// tickGroupMembers processes membership rows that carry their own
// birthdate: placeholders always, registered members only when the
// group-scoped date overrides their profile (the personal date already
// flows through tickUsers).
func (s *NotifyService) tickGroupMembers(ctx context.Context, prevTick, nowTick time.Time, mode domain.MaintenanceMode, stats *TickStats) error {
	entries, err := s.store.ListMemberEntries()
	if err != nil {
		return fmt.Errorf("list member entries: %w", err)
	}
	for _, m := range entries {
		if m.Registered() {
			u, err := s.store.GetUser(m.UserID)
			if err != nil {
				return fmt.Errorf("load member user %d: %w", m.UserID, err)
			}
			if u == nil || m.Birthday == u.Birthday {
				continue
			}
		}
		subject := domain.Subject{
			Key:          domain.MemberKey(m.GroupID, m.ID),
			Name:         m.Name,
			Birthday:     m.Birthday,
			RegisteredID: m.UserID,
		}
		if !s.admit(subject, nowTick, stats) {
			continue
		}
		observers, err := s.graph.ObserversInGroup(m.GroupID, m.ID, m.UserID)
		if err != nil {
			return err
		}
		if err := s.process(ctx, subject, observers, prevTick, nowTick, mode, stats); err != nil {
			return err
		}
	}
	return nil
}

// admit validates the subject's birthdate and applies the horizon
// prefilter so the graph is only expanded for occurrences at most
// maxLeadDays away (padded by a day for timezone skew).
func (s *NotifyService) admit(subject domain.Subject, nowTick time.Time, stats *TickStats) bool {
	if !subject.Birthday.Known() {
		return false
	}
	if err := subject.Birthday.Validate(); err != nil {
		stats.Skipped++
		s.log.Warn().Err(err).Str("subject", string(subject.Key)).Msg("malformed birthdate, skipping")
		return false
	}
	_, daysUntil := subject.Birthday.NextOccurrence(nowTick.UTC())
	if daysUntil > s.maxLeadDays+1 {
		return false
	}
	stats.Subjects++
	return true
}

// process evaluates one subject against its deduplicated observer set.
// Reservation and delivery are adjacent: the soft-maintenance gate sits
// before Reserve so suppressed reminders are not burned.
func (s *NotifyService) process(ctx context.Context, subject domain.Subject, observers []domain.Observer, prevTick, nowTick time.Time, mode domain.MaintenanceMode, stats *TickStats) error {
	for _, obs := range observers {
		localNow := nowTick.In(obs.Prefs.Location())
		occurrence, daysUntil := subject.Birthday.NextOccurrence(localNow)
		if !obs.Prefs.ShouldFire(occurrence, prevTick, nowTick) {
			continue
		}
		stats.Fired++

		if mode == domain.MaintenanceSoft {
			continue
		}

		reserved, err := s.ledger.Reserve(obs.UserID, subject.Key, occurrence.Year())
		if err != nil {
			return fmt.Errorf("reserve %s for %d: %w", subject.Key, obs.UserID, err)
		}
		if !reserved {
			stats.AlreadySent++
			continue
		}

		age, hasAge := subject.Birthday.TurnsOn(occurrence)
		n := &domain.Notification{
			Recipient:  obs,
			Subject:    subject,
			Occurrence: occurrence,
			DaysUntil:  daysUntil,
			TurnsAge:   age,
			HasAge:     hasAge,
		}
		// The reservation is the commit point. A failed send stays
		// reserved: a missed reminder beats duplicate spam.
		if err := s.deliverer.Deliver(ctx, n); err != nil {
			stats.Failures++
			s.log.Warn().Err(err).
				Int64("recipient", obs.UserID).
				Str("subject", string(subject.Key)).
				Msg("delivery failed")
			continue
		}
		stats.Delivered++
	}
	return nil
}
