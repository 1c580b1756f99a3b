package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"ticketing/entity"
	"ticketing/message"
	"ticketing/message/event"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

// RefundFunc returns money for a paid ticket to the payer. It runs inside the
// refund transaction; an error rolls the refund back.
type RefundFunc func(ctx context.Context, paymentReference string, amount decimal.Decimal) error

type TicketRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewTicketRepo(db *sqlx.DB, logger watermill.LoggerAdapter) TicketRepo {
	return TicketRepo{
		db:     db,
		logger: logger,
	}
}

// IssueFree reserves capacity and creates the tickets of a zero-priced
// purchase in one transaction.
func (r TicketRepo) IssueFree(ctx context.Context, issue entity.Issue) ([]entity.Ticket, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	tickets, err := r.issueFree(ctx, tx, issue)
	if err != nil {
		return nil, errors.Join(err, tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return tickets, nil
}

func (r TicketRepo) issueFree(ctx context.Context, tx *sqlx.Tx, issue entity.Issue) ([]entity.Ticket, error) {
	if err := reserve(ctx, tx, issue.EventID, issue.TicketTypeID, issue.Quantity); err != nil {
		return nil, err
	}

	tickets, err := issueTickets(ctx, tx, issue)
	if err != nil {
		return nil, err
	}

	e := event.NewTicketsIssued("", issue, tickets)
	if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
		return nil, fmt.Errorf("publishing tickets issued: %w", err)
	}

	return tickets, nil
}

// reserve takes n seats from the ticket type, if any, and from the event.
// Unlimited capacity is stored as NULL and is never exhausted.
func reserve(ctx context.Context, tx *sqlx.Tx, eventID string, ticketTypeID *string, n int) error {
	if ticketTypeID != nil {
		res, err := tx.ExecContext(ctx, `UPDATE ticket_types
			SET remaining = remaining - $2
			WHERE id = $1 AND (remaining IS NULL OR remaining >= $2)`, *ticketTypeID, n)
		if err := requireOneRow(res, err, entity.ErrSoldOut); err != nil {
			return fmt.Errorf("reserving ticket type: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE events
		SET tickets_remaining = tickets_remaining - $2, updated_at = now()
		WHERE id = $1 AND (tickets_remaining IS NULL OR tickets_remaining >= $2)`, eventID, n)
	if err := requireOneRow(res, err, entity.ErrSoldOut); err != nil {
		return fmt.Errorf("reserving event capacity: %w", err)
	}

	return nil
}

func release(ctx context.Context, tx *sqlx.Tx, eventID string, ticketTypeID *string, n int) error {
	if ticketTypeID != nil {
		_, err := tx.ExecContext(ctx, `UPDATE ticket_types
			SET remaining = LEAST(capacity, remaining + $2)
			WHERE id = $1`, *ticketTypeID, n)
		if err != nil {
			return fmt.Errorf("releasing ticket type: %w", err)
		}
	}

	_, err := tx.ExecContext(ctx, `UPDATE events
		SET tickets_remaining = LEAST(capacity, tickets_remaining + $2), updated_at = now()
		WHERE id = $1`, eventID, n)
	if err != nil {
		return fmt.Errorf("releasing event capacity: %w", err)
	}

	return nil
}

func issueTickets(ctx context.Context, tx *sqlx.Tx, issue entity.Issue) ([]entity.Ticket, error) {
	tickets := make([]entity.Ticket, 0, issue.Quantity)
	for range issue.Quantity {
		var t entity.Ticket
		err := tx.GetContext(ctx, &t, `INSERT INTO tickets
			(id, code, event_id, user_id, ticket_type_id, payment_id, price, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *;`,
			uuid.NewString(), ticketCode(issue.EventID, issue.UserID),
			issue.EventID, issue.UserID, issue.TicketTypeID, issue.PaymentID,
			issue.UnitPrice, issue.Currency)
		if err != nil {
			return nil, fmt.Errorf("inserting ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	return tickets, nil
}

func ticketCode(eventID, userID string) string {
	return strings.ToUpper("TKT-"+prefix(eventID)+"-"+prefix(userID)+"-") + shortuuid.New()
}

func prefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Validate marks a ticket used in a single statement, so two concurrent scans
// of the same code cannot both succeed. The scanner must have created the
// ticket's event.
func (r TicketRepo) Validate(ctx context.Context, code, eventID, scannerID string) (entity.Ticket, error) {
	var t entity.Ticket
	err := r.db.GetContext(ctx, &t, `UPDATE tickets t
		SET status = 'USED', scanned_at = now(), scanned_by = $3
		FROM events e
		WHERE t.code = $1 AND t.event_id = $2 AND t.status = 'VALID'
			AND e.id = t.event_id AND e.creator_id = $3
		RETURNING t.*;`, code, eventID, scannerID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, r.diagnoseValidation(ctx, code, eventID, scannerID)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("marking ticket used: %w", err)
	}

	return t, nil
}

func (r TicketRepo) diagnoseValidation(ctx context.Context, code, eventID, scannerID string) error {
	var row struct {
		EventID   string              `db:"event_id"`
		Status    entity.TicketStatus `db:"status"`
		CreatorID string              `db:"creator_id"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT t.event_id, t.status, e.creator_id
		FROM tickets t JOIN events e ON e.id = t.event_id
		WHERE t.code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrInvalidTicket
	}
	if err != nil {
		return fmt.Errorf("reading ticket for diagnosis: %w", err)
	}

	switch {
	case row.EventID != eventID:
		return entity.ErrMismatchedEvent
	case row.CreatorID != scannerID:
		return entity.Unauthorized("not_event_creator", "only the event creator can validate its tickets")
	case row.Status == entity.TicketStatusUsed:
		return entity.ErrAlreadyUsed
	case row.Status == entity.TicketStatusRefunded:
		return entity.ErrRefunded
	default:
		return entity.Conflict("ticket_changed", "ticket changed during validation")
	}
}

// Refund moves a valid ticket to REFUNDED, returns its seat to the pool and,
// for a paid ticket, calls refund before committing. Only the event creator
// or an admin may refund.
func (r TicketRepo) Refund(ctx context.Context, ticketID, requesterID string, admin bool, refund RefundFunc) (entity.Ticket, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("beginning transaction: %w", err)
	}

	t, refundedReference, err := r.refund(ctx, tx, ticketID, requesterID, admin, refund)
	if err != nil {
		return entity.Ticket{}, errors.Join(err, tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		if refundedReference == "" {
			return entity.Ticket{}, fmt.Errorf("committing transaction: %w", err)
		}

		// The payer has the money back but the ticket is still VALID.
		r.logger.Error("Gateway refund sent but ticket refund not committed, reconcile manually", err, watermill.LogFields{
			"ticket_id":         ticketID,
			"payment_reference": refundedReference,
			"amount":            t.Price.String(),
		})
		return entity.Ticket{}, fmt.Errorf("committing refund of ticket %s after gateway refund of %s: %w", ticketID, refundedReference, err)
	}

	return t, nil
}

func (r TicketRepo) refund(
	ctx context.Context,
	tx *sqlx.Tx,
	ticketID, requesterID string,
	admin bool,
	refund RefundFunc,
) (entity.Ticket, string, error) {
	var row struct {
		entity.Ticket
		CreatorID        string  `db:"creator_id"`
		PaymentReference *string `db:"payment_reference"`
	}
	err := tx.GetContext(ctx, &row, `SELECT t.*, e.creator_id, p.reference AS payment_reference
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		LEFT JOIN payments p ON p.id = t.payment_id
		WHERE t.id = $1
		FOR UPDATE OF t`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, "", entity.NotFound("ticket")
	}
	if err != nil {
		return entity.Ticket{}, "", fmt.Errorf("locking ticket: %w", err)
	}

	if !admin && row.CreatorID != requesterID {
		return entity.Ticket{}, "", entity.Forbidden("only the event creator can refund its tickets")
	}

	switch row.Status {
	case entity.TicketStatusUsed:
		return entity.Ticket{}, "", entity.ErrAlreadyUsed
	case entity.TicketStatusRefunded:
		return entity.Ticket{}, "", entity.ErrRefunded
	}

	var t entity.Ticket
	err = tx.GetContext(ctx, &t, `UPDATE tickets SET status = 'REFUNDED'
		WHERE id = $1 AND status = 'VALID'
		RETURNING *;`, ticketID)
	if err != nil {
		return entity.Ticket{}, "", fmt.Errorf("marking ticket refunded: %w", err)
	}

	if err := release(ctx, tx, t.EventID, t.TicketTypeID, 1); err != nil {
		return entity.Ticket{}, "", err
	}

	if row.PaymentReference == nil || !t.Price.IsPositive() {
		return t, "", nil
	}

	if err := refund(ctx, *row.PaymentReference, t.Price); err != nil {
		return entity.Ticket{}, "", fmt.Errorf("refunding payment %s: %w", *row.PaymentReference, err)
	}

	return t, *row.PaymentReference, nil
}

func (r TicketRepo) Get(ctx context.Context, id string) (entity.Ticket, error) {
	var t entity.Ticket
	err := r.db.GetContext(ctx, &t, `SELECT * FROM tickets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, entity.NotFound("ticket")
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("selecting ticket: %w", err)
	}

	return t, nil
}

func (r TicketRepo) ListByUser(ctx context.Context, userID string) ([]entity.Ticket, error) {
	tickets := []entity.Ticket{}
	err := r.db.SelectContext(ctx, &tickets, `SELECT * FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("selecting user tickets: %w", err)
	}

	return tickets, nil
}

func requireOneRow(res sql.Result, err error, zeroRows error) error {
	if err != nil {
		return fmt.Errorf("executing update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return zeroRows
	}

	return nil
}
