package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketing/entity"
	"time"

	"github.com/jmoiron/sqlx"
)

type ReminderRepo struct {
	db *sqlx.DB
}

func NewReminderRepo(db *sqlx.DB) ReminderRepo {
	return ReminderRepo{
		db: db,
	}
}

func (r ReminderRepo) Add(ctx context.Context, reminder entity.Reminder) (entity.Reminder, error) {
	var added entity.Reminder
	err := r.db.GetContext(ctx, &added, `INSERT INTO reminders
		(id, user_id, event_id, fire_at, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *;`,
		reminder.ID, reminder.UserID, reminder.EventID, reminder.FireAt, reminder.Type)
	if err != nil {
		return entity.Reminder{}, fmt.Errorf("inserting reminder: %w", err)
	}

	return added, nil
}

// AddDefault stores a CREATOR_DEFAULT reminder unless the user already has
// one for the event. The bool reports whether a row was inserted.
func (r ReminderRepo) AddDefault(ctx context.Context, reminder entity.Reminder) (entity.Reminder, bool, error) {
	var added entity.Reminder
	err := r.db.GetContext(ctx, &added, `INSERT INTO reminders
		(id, user_id, event_id, fire_at, type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, event_id) WHERE type = 'CREATOR_DEFAULT' DO NOTHING
		RETURNING *;`,
		reminder.ID, reminder.UserID, reminder.EventID, reminder.FireAt, entity.ReminderTypeCreatorDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Reminder{}, false, nil
	}
	if err != nil {
		return entity.Reminder{}, false, fmt.Errorf("inserting default reminder: %w", err)
	}

	return added, true, nil
}

func (r ReminderRepo) Get(ctx context.Context, id string) (entity.Reminder, error) {
	var reminder entity.Reminder
	err := r.db.GetContext(ctx, &reminder, `SELECT * FROM reminders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Reminder{}, entity.NotFound("reminder")
	}
	if err != nil {
		return entity.Reminder{}, fmt.Errorf("selecting reminder: %w", err)
	}

	return reminder, nil
}

func (r ReminderRepo) ListByUser(ctx context.Context, userID string) ([]entity.Reminder, error) {
	reminders := []entity.Reminder{}
	err := r.db.SelectContext(ctx, &reminders, `SELECT * FROM reminders
		WHERE user_id = $1
		ORDER BY fire_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("selecting user reminders: %w", err)
	}

	return reminders, nil
}

// Claim leases an unsent reminder for delivery. It returns false when the
// reminder is already sent or another worker holds an unexpired lease.
func (r ReminderRepo) Claim(ctx context.Context, id string, lease time.Duration) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders
		SET claimed_until = now() + make_interval(secs => $2), attempts = attempts + 1
		WHERE id = $1 AND NOT sent AND (claimed_until IS NULL OR claimed_until < now())`,
		id, lease.Seconds())
	if err != nil {
		return false, fmt.Errorf("claiming reminder: %w", err)
	}

	return rowChanged(res)
}

// Release drops a lease after a failed delivery so the next attempt does not
// wait for it to expire.
func (r ReminderRepo) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reminders
		SET claimed_until = NULL
		WHERE id = $1 AND NOT sent`, id)
	if err != nil {
		return fmt.Errorf("releasing reminder: %w", err)
	}

	return nil
}

// MarkSent flips sent from false to true. It reports whether this call made
// the change; an already-sent reminder is not an error.
func (r ReminderRepo) MarkSent(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders
		SET sent = true, sent_at = now(), claimed_until = NULL
		WHERE id = $1 AND NOT sent`, id)
	if err != nil {
		return false, fmt.Errorf("marking reminder sent: %w", err)
	}

	changed, err := rowChanged(res)
	if err != nil || changed {
		return changed, err
	}

	var exists bool
	err = r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reminders WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("checking reminder exists: %w", err)
	}
	if !exists {
		return false, entity.NotFound("reminder")
	}

	return false, nil
}

// Due lists unsent reminders whose fire time has passed and that nobody is
// currently delivering.
func (r ReminderRepo) Due(ctx context.Context, limit int) ([]entity.Reminder, error) {
	reminders := []entity.Reminder{}
	err := r.db.SelectContext(ctx, &reminders, `SELECT * FROM reminders
		WHERE NOT sent AND fire_at <= now()
			AND (claimed_until IS NULL OR claimed_until < now())
		ORDER BY fire_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting due reminders: %w", err)
	}

	return reminders, nil
}

func rowChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return n == 1, nil
}
