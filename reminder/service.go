package reminder

import (
	"context"
	"fmt"
	"ticketing/entity"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
)

// DefaultLeadTime is how long before an event starts its default reminder fires.
const DefaultLeadTime = 24 * time.Hour

type Repository interface {
	Add(ctx context.Context, reminder entity.Reminder) (entity.Reminder, error)
	AddDefault(ctx context.Context, reminder entity.Reminder) (entity.Reminder, bool, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Reminder, error)
	MarkSent(ctx context.Context, id string) (bool, error)
}

type EventReader interface {
	Get(ctx context.Context, eventID string) (entity.Event, error)
}

type Scheduler interface {
	Schedule(ctx context.Context, reminderID string, fireAt time.Time) error
}

type Service struct {
	repo      Repository
	events    EventReader
	scheduler Scheduler
	now       func() time.Time
}

func NewService(repo Repository, events EventReader, scheduler Scheduler) *Service {
	return &Service{
		repo:      repo,
		events:    events,
		scheduler: scheduler,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stores a reminder and schedules its delivery. A scheduling failure
// leaves the reminder for the recovery sweep.
func (s *Service) Create(
	ctx context.Context,
	userID, eventID string,
	fireAt time.Time,
	reminderType entity.ReminderType,
) (entity.Reminder, error) {
	if reminderType == "" {
		reminderType = entity.ReminderTypeUserCustom
	}

	if _, err := s.events.Get(ctx, eventID); err != nil {
		return entity.Reminder{}, err
	}

	reminder, err := s.repo.Add(ctx, entity.Reminder{
		ID:      uuid.NewString(),
		UserID:  userID,
		EventID: eventID,
		FireAt:  fireAt.UTC(),
		Type:    reminderType,
	})
	if err != nil {
		return entity.Reminder{}, fmt.Errorf("adding reminder: %w", err)
	}

	s.schedule(ctx, reminder)

	return reminder, nil
}

// CreateDefault adds the creator default reminder for a ticket holder unless
// it would fire in the past or already exists.
func (s *Service) CreateDefault(ctx context.Context, userID, eventID string) error {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}

	fireAt := event.StartsAt.Add(-DefaultLeadTime)
	if !fireAt.After(s.now()) {
		return nil
	}

	reminder, added, err := s.repo.AddDefault(ctx, entity.Reminder{
		ID:      uuid.NewString(),
		UserID:  userID,
		EventID: eventID,
		FireAt:  fireAt.UTC(),
		Type:    entity.ReminderTypeCreatorDefault,
	})
	if err != nil {
		return fmt.Errorf("adding default reminder: %w", err)
	}
	if !added {
		return nil
	}

	s.schedule(ctx, reminder)

	return nil
}

func (s *Service) schedule(ctx context.Context, reminder entity.Reminder) {
	if err := s.scheduler.Schedule(ctx, reminder.ID, reminder.FireAt); err != nil {
		log.FromContext(ctx).WithError(err).WithField("reminder_id", reminder.ID).
			Warn("Scheduling reminder failed, leaving it to the sweep")
	}
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]entity.Reminder, error) {
	reminders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}

	return reminders, nil
}

// MarkSent reports whether this call moved the reminder to sent.
func (s *Service) MarkSent(ctx context.Context, reminderID string) (bool, error) {
	return s.repo.MarkSent(ctx, reminderID)
}
