package event

import (
	"ticketing/entity"
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type TicketsIssued struct {
	Header           header   `json:"header"`
	PaymentReference string   `json:"payment_reference,omitempty"`
	EventID          string   `json:"event_id"`
	UserID           string   `json:"user_id"`
	Email            string   `json:"email"`
	TicketIDs        []string `json:"ticket_ids"`
	Codes            []string `json:"codes"`
}

// NewTicketsIssued keys the event on the payment reference when there is one,
// otherwise on the first ticket id.
func NewTicketsIssued(paymentReference string, issue entity.Issue, tickets []entity.Ticket) TicketsIssued {
	e := TicketsIssued{
		PaymentReference: paymentReference,
		EventID:          issue.EventID,
		UserID:           issue.UserID,
		Email:            issue.Email,
	}
	for _, t := range tickets {
		e.TicketIDs = append(e.TicketIDs, t.ID)
		e.Codes = append(e.Codes, t.Code)
	}

	key := paymentReference
	if key == "" && len(e.TicketIDs) > 0 {
		key = e.TicketIDs[0]
	}
	e.Header = newHeader(key)

	return e
}

type PaymentFailed struct {
	Header           header `json:"header"`
	PaymentReference string `json:"payment_reference"`
	EventID          string `json:"event_id"`
	UserID           string `json:"user_id"`
	GatewayStatus    string `json:"gateway_status"`
}

func NewPaymentFailed(payment entity.Payment) PaymentFailed {
	return PaymentFailed{
		Header:           newHeader(payment.Reference),
		PaymentReference: payment.Reference,
		EventID:          payment.EventID,
		UserID:           payment.UserID,
		GatewayStatus:    payment.GatewayStatus,
	}
}
