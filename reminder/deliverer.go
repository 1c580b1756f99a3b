package reminder

import (
	"context"
	"fmt"
	"ticketing/clients"
	"ticketing/entity"
	"ticketing/monitoring"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

const (
	sourceJob   = "job"
	sourceSweep = "sweep"
)

type DeliveryRepository interface {
	Get(ctx context.Context, id string) (entity.Reminder, error)
	Claim(ctx context.Context, id string, lease time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string) (bool, error)
}

type UserReader interface {
	Get(ctx context.Context, userID string) (entity.User, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) (entity.DeliveryReceipt, error)
}

// Deliverer sends one reminder email. The job handler and the sweep both go
// through it, so a reminder is emailed by whoever holds its claim.
type Deliverer struct {
	repo   DeliveryRepository
	users  UserReader
	events EventReader
	mailer Mailer
	lease  time.Duration
}

func NewDeliverer(
	repo DeliveryRepository,
	users UserReader,
	events EventReader,
	mailer Mailer,
	lease time.Duration,
) *Deliverer {
	return &Deliverer{
		repo:   repo,
		users:  users,
		events: events,
		mailer: mailer,
		lease:  lease,
	}
}

func (d *Deliverer) Deliver(ctx context.Context, reminderID string) error {
	return d.deliver(ctx, reminderID, sourceJob)
}

func (d *Deliverer) deliver(ctx context.Context, reminderID, source string) error {
	logger := log.FromContext(ctx).WithField("reminder_id", reminderID)

	claimed, err := d.repo.Claim(ctx, reminderID, d.lease)
	if err != nil {
		return fmt.Errorf("claiming reminder: %w", err)
	}
	if !claimed {
		logger.Debug("Reminder already sent or claimed, skipping")
		monitoring.TrackReminderDelivery(source, "skipped")
		return nil
	}

	if err := d.send(ctx, reminderID); err != nil {
		if releaseErr := d.repo.Release(ctx, reminderID); releaseErr != nil {
			logger.WithError(releaseErr).Error("Releasing reminder claim failed")
		}
		monitoring.TrackReminderDelivery(source, "failed")
		return err
	}

	changed, err := d.repo.MarkSent(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("marking reminder sent: %w", err)
	}
	if !changed {
		logger.Warn("Reminder was already marked sent")
	}

	monitoring.TrackReminderDelivery(source, "sent")
	logger.WithField("source", source).Info("Reminder delivered")

	return nil
}

func (d *Deliverer) send(ctx context.Context, reminderID string) error {
	reminder, err := d.repo.Get(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("getting reminder: %w", err)
	}

	user, err := d.users.Get(ctx, reminder.UserID)
	if err != nil {
		return fmt.Errorf("getting user: %w", err)
	}

	event, err := d.events.Get(ctx, reminder.EventID)
	if err != nil {
		return fmt.Errorf("getting event: %w", err)
	}

	subject, body, err := clients.ReminderEmail(user, event)
	if err != nil {
		return fmt.Errorf("rendering reminder: %w", err)
	}

	if _, err := d.mailer.SendEmail(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("sending reminder email: %w", err)
	}

	return nil
}
