package ticket

import (
	"context"
	"errors"
	"fmt"
	"ticketing/entity"
	"ticketing/monitoring"
	"ticketing/payment"
	"ticketing/postgres"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const (
	MinQuantity = 1
	MaxQuantity = 10

	qrCodeSize = 256
)

type Repository interface {
	IssueFree(ctx context.Context, issue entity.Issue) ([]entity.Ticket, error)
	Validate(ctx context.Context, code, eventID, scannerID string) (entity.Ticket, error)
	Refund(ctx context.Context, ticketID, requesterID string, admin bool, refund postgres.RefundFunc) (entity.Ticket, error)
	Get(ctx context.Context, id string) (entity.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Ticket, error)
}

type EventReader interface {
	Get(ctx context.Context, eventID string) (entity.Event, error)
}

type PaymentInitializer interface {
	Initialize(ctx context.Context, req payment.InitializeRequest) (payment.InitializeResult, error)
}

type Refunder interface {
	Refund(ctx context.Context, reference string, amount decimal.Decimal) error
}

type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context, eventID, creatorID string) error
}

type Service struct {
	repo      Repository
	events    EventReader
	payments  PaymentInitializer
	refunder  Refunder
	analytics AnalyticsInvalidator
}

func NewService(
	repo Repository,
	events EventReader,
	payments PaymentInitializer,
	refunder Refunder,
	analytics AnalyticsInvalidator,
) Service {
	return Service{
		repo:      repo,
		events:    events,
		payments:  payments,
		refunder:  refunder,
		analytics: analytics,
	}
}

type PurchaseRequest struct {
	UserID       string
	Email        string
	EventID      string
	TicketTypeID *string
	Quantity     int
}

// PurchaseResult carries the issued tickets of a free purchase, or the
// pending payment of a paid one.
type PurchaseResult struct {
	Tickets          []entity.Ticket `json:"tickets,omitempty"`
	Payment          *entity.Payment `json:"payment,omitempty"`
	AuthorizationURL string          `json:"authorizationUrl,omitempty"`
}

func (s Service) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	if req.Quantity < MinQuantity || req.Quantity > MaxQuantity {
		return PurchaseResult{}, entity.Validation(
			"invalid_quantity",
			fmt.Sprintf("quantity must be between %d and %d", MinQuantity, MaxQuantity),
		)
	}

	event, err := s.events.Get(ctx, req.EventID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if event.Status != entity.EventStatusPublished {
		return PurchaseResult{}, entity.Validation("event_not_published", "tickets are only sold for published events")
	}

	unitPrice := event.Price
	if req.TicketTypeID != nil {
		tt, ok := event.TicketType(*req.TicketTypeID)
		if !ok {
			return PurchaseResult{}, entity.NotFound("ticket_type")
		}
		unitPrice = tt.Price
	}

	if unitPrice.IsZero() {
		tickets, err := s.repo.IssueFree(ctx, entity.Issue{
			EventID:      event.ID,
			UserID:       req.UserID,
			Email:        req.Email,
			TicketTypeID: req.TicketTypeID,
			Quantity:     req.Quantity,
			UnitPrice:    unitPrice,
			Currency:     event.Currency,
		})
		if err != nil {
			return PurchaseResult{}, err
		}

		monitoring.TrackTicketsIssued("free", len(tickets))
		s.invalidate(ctx, event.ID, event.CreatorID)

		return PurchaseResult{Tickets: tickets}, nil
	}

	res, err := s.payments.Initialize(ctx, payment.InitializeRequest{
		UserID:       req.UserID,
		Email:        req.Email,
		EventID:      event.ID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     req.Quantity,
		UnitPrice:    unitPrice,
		Currency:     event.Currency,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	return PurchaseResult{
		Payment:          &res.Payment,
		AuthorizationURL: res.AuthorizationURL,
	}, nil
}

// Validate checks a ticket in at the door. Only the event creator may scan,
// and each code is accepted once.
func (s Service) Validate(ctx context.Context, code, eventID, scannerID string) (entity.Ticket, error) {
	t, err := s.repo.Validate(ctx, code, eventID, scannerID)
	if err != nil {
		monitoring.TrackValidation(validationResult(err))
		log.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"event_id":   eventID,
			"scanner_id": scannerID,
		}).Info("Ticket validation rejected")
		return entity.Ticket{}, err
	}

	monitoring.TrackValidation("accepted")
	s.invalidate(ctx, eventID, scannerID)

	return t, nil
}

func validationResult(err error) string {
	var e *entity.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "error"
}

// Refund returns a valid ticket to the pool and the money to the payer.
func (s Service) Refund(ctx context.Context, ticketID, requesterID string, admin bool) (entity.Ticket, error) {
	t, err := s.repo.Refund(ctx, ticketID, requesterID, admin, s.refunder.Refund)
	if err != nil {
		return entity.Ticket{}, err
	}

	event, err := s.events.Get(ctx, t.EventID)
	if err != nil {
		log.FromContext(ctx).WithError(err).Warn("Loading event after refund failed")
		return t, nil
	}
	s.invalidate(ctx, event.ID, event.CreatorID)

	return t, nil
}

// Get returns a ticket to its holder.
func (s Service) Get(ctx context.Context, ticketID, userID string) (entity.Ticket, error) {
	t, err := s.repo.Get(ctx, ticketID)
	if err != nil {
		return entity.Ticket{}, err
	}
	if t.UserID != userID {
		return entity.Ticket{}, entity.NotFound("ticket")
	}

	return t, nil
}

func (s Service) ListByUser(ctx context.Context, userID string) ([]entity.Ticket, error) {
	return s.repo.ListByUser(ctx, userID)
}

// QRCode renders the holder's ticket code as a PNG.
func (s Service) QRCode(ctx context.Context, ticketID, userID string) ([]byte, error) {
	t, err := s.Get(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(t.Code, qrcode.Medium, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}

	return png, nil
}

func (s Service) invalidate(ctx context.Context, eventID, creatorID string) {
	if err := s.analytics.Invalidate(ctx, eventID, creatorID); err != nil {
		log.FromContext(ctx).WithError(err).WithField("event_id", eventID).Warn("Invalidating analytics failed")
	}
}
