package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ticketing/entity"
	"ticketing/message"
	"ticketing/message/event"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
)

// PaymentOutcome is what the gateway reported for a pending payment.
type PaymentOutcome struct {
	Success       bool
	GatewayStatus string
}

type PaymentRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewPaymentRepo(db *sqlx.DB, logger watermill.LoggerAdapter) PaymentRepo {
	return PaymentRepo{
		db:     db,
		logger: logger,
	}
}

// AddPending reserves the payment's seats and stores it as PENDING. The seats
// stay held until the payment completes.
func (r PaymentRepo) AddPending(ctx context.Context, p entity.Payment) (entity.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Payment{}, fmt.Errorf("beginning transaction: %w", err)
	}

	added, err := addPending(ctx, tx, p)
	if err != nil {
		return entity.Payment{}, errors.Join(err, tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		return entity.Payment{}, fmt.Errorf("committing transaction: %w", err)
	}

	return added, nil
}

func addPending(ctx context.Context, tx *sqlx.Tx, p entity.Payment) (entity.Payment, error) {
	if err := reserve(ctx, tx, p.EventID, p.TicketTypeID, p.Quantity); err != nil {
		return entity.Payment{}, err
	}

	var added entity.Payment
	err := tx.GetContext(ctx, &added, `INSERT INTO payments
		(id, reference, user_id, event_id, ticket_type_id, quantity, unit_price, amount,
		 currency, email, status, authorization_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *;`,
		p.ID, p.Reference, p.UserID, p.EventID, p.TicketTypeID, p.Quantity, p.UnitPrice, p.Amount,
		p.Currency, p.Email, entity.PaymentStatusPending, p.AuthorizationURL)
	if err != nil {
		return entity.Payment{}, fmt.Errorf("inserting payment: %w", err)
	}

	return added, nil
}

func (r PaymentRepo) GetByReference(ctx context.Context, reference string) (entity.Payment, error) {
	var p entity.Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE reference = $1`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, entity.NotFound("payment")
	}
	if err != nil {
		return entity.Payment{}, fmt.Errorf("selecting payment: %w", err)
	}

	return p, nil
}

// Complete applies the gateway outcome to a pending payment. On success the
// reserved seats become tickets; on failure they are released. Either way an
// integration event is written to the outbox in the same transaction.
//
// A payment that is already terminal is returned as is with no tickets, so
// concurrent verifications of one reference issue tickets once.
func (r PaymentRepo) Complete(ctx context.Context, reference string, outcome PaymentOutcome) (entity.Payment, []entity.Ticket, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Payment{}, nil, fmt.Errorf("beginning transaction: %w", err)
	}

	p, tickets, err := r.complete(ctx, tx, reference, outcome)
	if err != nil {
		return entity.Payment{}, nil, errors.Join(err, tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		return entity.Payment{}, nil, fmt.Errorf("committing transaction: %w", err)
	}

	return p, tickets, nil
}

func (r PaymentRepo) complete(
	ctx context.Context,
	tx *sqlx.Tx,
	reference string,
	outcome PaymentOutcome,
) (entity.Payment, []entity.Ticket, error) {
	var p entity.Payment
	err := tx.GetContext(ctx, &p, `SELECT * FROM payments WHERE reference = $1 FOR UPDATE`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, nil, entity.NotFound("payment")
	}
	if err != nil {
		return entity.Payment{}, nil, fmt.Errorf("locking payment: %w", err)
	}

	if p.Status.Terminal() {
		return p, nil, nil
	}

	status := entity.PaymentStatusFailed
	if outcome.Success {
		status = entity.PaymentStatusSuccess
	}

	err = tx.GetContext(ctx, &p, `UPDATE payments
		SET status = $2, gateway_status = $3, verified_at = now()
		WHERE id = $1
		RETURNING *;`, p.ID, status, outcome.GatewayStatus)
	if err != nil {
		return entity.Payment{}, nil, fmt.Errorf("updating payment status: %w", err)
	}

	if !outcome.Success {
		if err := release(ctx, tx, p.EventID, p.TicketTypeID, p.Quantity); err != nil {
			return entity.Payment{}, nil, err
		}
		if err := message.PublishInTx(ctx, event.NewPaymentFailed(p), tx.Tx, r.logger); err != nil {
			return entity.Payment{}, nil, fmt.Errorf("publishing payment failed: %w", err)
		}
		return p, nil, nil
	}

	issue := p.Issue()
	tickets, err := issueTickets(ctx, tx, issue)
	if err != nil {
		return entity.Payment{}, nil, err
	}

	if err := message.PublishInTx(ctx, event.NewTicketsIssued(p.Reference, issue, tickets), tx.Tx, r.logger); err != nil {
		return entity.Payment{}, nil, fmt.Errorf("publishing tickets issued: %w", err)
	}

	return p, tickets, nil
}

// ListStalePending returns pending payments created before cutoff, oldest
// first.
func (r PaymentRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]entity.Payment, error) {
	payments := []entity.Payment{}
	err := r.db.SelectContext(ctx, &payments, `SELECT * FROM payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`, entity.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting stale payments: %w", err)
	}

	return payments, nil
}

// TicketsForPayment returns the tickets a payment issued.
func (r PaymentRepo) TicketsForPayment(ctx context.Context, paymentID string) ([]entity.Ticket, error) {
	tickets := []entity.Ticket{}
	err := r.db.SelectContext(ctx, &tickets, `SELECT * FROM tickets
		WHERE payment_id = $1
		ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("selecting payment tickets: %w", err)
	}

	return tickets, nil
}
