package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketing/entity"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const feedLimit = 100

type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) EventRepo {
	return EventRepo{
		db: db,
	}
}

// Add stores an event together with its ticket types. Remaining counts start
// at capacity.
func (r EventRepo) Add(ctx context.Context, event entity.Event) (entity.Event, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Event{}, fmt.Errorf("beginning transaction: %w", err)
	}

	added, err := addEvent(ctx, tx, event)
	if err != nil {
		return entity.Event{}, errors.Join(err, tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		return entity.Event{}, fmt.Errorf("committing transaction: %w", err)
	}

	return added, nil
}

func addEvent(ctx context.Context, tx *sqlx.Tx, event entity.Event) (entity.Event, error) {
	var added entity.Event
	err := tx.GetContext(ctx, &added, `INSERT INTO events
		(id, creator_id, title, description, location, starts_at, price, currency,
		 capacity, tickets_remaining, is_public, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11)
		RETURNING *;`,
		event.ID, event.CreatorID, event.Title, event.Description, event.Location, event.StartsAt,
		event.Price, event.Currency, event.Capacity, event.IsPublic, event.Status)
	if err != nil {
		return entity.Event{}, fmt.Errorf("inserting event: %w", err)
	}

	for _, tt := range event.TicketTypes {
		var addedType entity.TicketType
		err := tx.GetContext(ctx, &addedType, `INSERT INTO ticket_types
			(id, event_id, name, price, capacity, remaining)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING *;`,
			tt.ID, added.ID, tt.Name, tt.Price, tt.Capacity)
		if err != nil {
			return entity.Event{}, fmt.Errorf("inserting ticket type %q: %w", tt.Name, err)
		}
		added.TicketTypes = append(added.TicketTypes, addedType)
	}

	return added, nil
}

func (r EventRepo) Get(ctx context.Context, id string) (entity.Event, error) {
	var event entity.Event
	err := r.db.GetContext(ctx, &event, `SELECT * FROM events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, entity.NotFound("event")
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("selecting event: %w", err)
	}

	err = r.db.SelectContext(ctx, &event.TicketTypes, `SELECT * FROM ticket_types
		WHERE event_id = $1 ORDER BY price, name`, id)
	if err != nil {
		return entity.Event{}, fmt.Errorf("selecting ticket types: %w", err)
	}

	return event, nil
}

// ListPublished returns public published events, soonest first.
func (r EventRepo) ListPublished(ctx context.Context) ([]entity.Event, error) {
	events := []entity.Event{}
	err := r.db.SelectContext(ctx, &events, `SELECT * FROM events
		WHERE status = $1 AND is_public
		ORDER BY starts_at
		LIMIT $2`, entity.EventStatusPublished, feedLimit)
	if err != nil {
		return nil, fmt.Errorf("selecting published events: %w", err)
	}

	return events, r.attachTicketTypes(ctx, events)
}

func (r EventRepo) ListByCreator(ctx context.Context, creatorID string) ([]entity.Event, error) {
	events := []entity.Event{}
	err := r.db.SelectContext(ctx, &events, `SELECT * FROM events
		WHERE creator_id = $1
		ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("selecting creator events: %w", err)
	}

	return events, r.attachTicketTypes(ctx, events)
}

func (r EventRepo) attachTicketTypes(ctx context.Context, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, len(events))
	byID := make(map[string]*entity.Event, len(events))
	for i := range events {
		ids[i] = events[i].ID
		byID[events[i].ID] = &events[i]
	}

	var types []entity.TicketType
	err := r.db.SelectContext(ctx, &types, `SELECT * FROM ticket_types
		WHERE event_id = ANY($1::uuid[]) ORDER BY price, name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("selecting ticket types: %w", err)
	}

	for _, tt := range types {
		e := byID[tt.EventID]
		e.TicketTypes = append(e.TicketTypes, tt)
	}

	return nil
}

// UpdateStatus moves an event from one status to another. It fails with a
// conflict when the stored status is no longer from.
func (r EventRepo) UpdateStatus(ctx context.Context, id string, from, to entity.EventStatus) (entity.Event, error) {
	var event entity.Event
	err := r.db.GetContext(ctx, &event, `UPDATE events
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING *;`, id, from, to)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, entity.Conflict("status_changed", "event status changed concurrently")
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("updating event status: %w", err)
	}

	return event, nil
}
