package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"ticketing/clients"
	"ticketing/entity"
	"ticketing/monitoring"
	"ticketing/postgres"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	gatewayStatusSuccess = "success"
	chargeSuccessEvent   = "charge.success"
	staleBatchSize       = 100
)

// The gateway reports these while the payer's bank has not settled yet.
var inFlightStatuses = map[string]bool{
	"ongoing":    true,
	"pending":    true,
	"processing": true,
	"queued":     true,
}

type Gateway interface {
	Initialize(ctx context.Context, email, reference string, amount decimal.Decimal, currency string) (clients.Checkout, error)
	Verify(ctx context.Context, reference string) (clients.Transaction, error)
	VerifySignature(body []byte, signature string) error
}

type Repository interface {
	AddPending(ctx context.Context, p entity.Payment) (entity.Payment, error)
	GetByReference(ctx context.Context, reference string) (entity.Payment, error)
	Complete(ctx context.Context, reference string, outcome postgres.PaymentOutcome) (entity.Payment, []entity.Ticket, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]entity.Payment, error)
}

type EventReader interface {
	Get(ctx context.Context, eventID string) (entity.Event, error)
}

type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context, eventID, creatorID string) error
}

type Service struct {
	gateway   Gateway
	repo      Repository
	events    EventReader
	analytics AnalyticsInvalidator
	expiry    time.Duration
	now       func() time.Time
}

func NewService(
	gateway Gateway,
	repo Repository,
	events EventReader,
	analytics AnalyticsInvalidator,
	expiry time.Duration,
) *Service {
	return &Service{
		gateway:   gateway,
		repo:      repo,
		events:    events,
		analytics: analytics,
		expiry:    expiry,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// InitializeRequest is a paid purchase with its price already taken from the
// event or ticket type.
type InitializeRequest struct {
	UserID       string
	Email        string
	EventID      string
	TicketTypeID *string
	Quantity     int
	UnitPrice    decimal.Decimal
	Currency     string
}

type InitializeResult struct {
	Payment          entity.Payment `json:"payment"`
	AuthorizationURL string         `json:"authorizationUrl"`
}

// Initialize opens a checkout with the gateway and then holds the seats
// behind a PENDING payment. Sold out events are refused before the gateway
// is called; the reservation in AddPending still has the final say.
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if err := s.checkAvailable(ctx, req); err != nil {
		return InitializeResult{}, err
	}

	reference := "PAY-" + shortuuid.New()
	amount := req.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	checkout, err := s.gateway.Initialize(ctx, req.Email, reference, amount, req.Currency)
	if err != nil {
		return InitializeResult{}, err
	}

	p, err := s.repo.AddPending(ctx, entity.Payment{
		ID:               uuid.NewString(),
		Reference:        reference,
		UserID:           req.UserID,
		EventID:          req.EventID,
		TicketTypeID:     req.TicketTypeID,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		Amount:           amount,
		Currency:         req.Currency,
		Email:            req.Email,
		AuthorizationURL: checkout.AuthorizationURL,
	})
	if err != nil {
		return InitializeResult{}, fmt.Errorf("adding pending payment: %w", err)
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_reference": reference,
		"event_id":          req.EventID,
		"amount":            amount.String(),
	}).Info("Payment initialized")

	return InitializeResult{
		Payment:          p,
		AuthorizationURL: checkout.AuthorizationURL,
	}, nil
}

func (s *Service) checkAvailable(ctx context.Context, req InitializeRequest) error {
	ev, err := s.events.Get(ctx, req.EventID)
	if err != nil {
		return err
	}
	if ev.TicketsRemaining != nil && *ev.TicketsRemaining < req.Quantity {
		return entity.ErrSoldOut
	}
	if req.TicketTypeID != nil {
		tt, ok := ev.TicketType(*req.TicketTypeID)
		if ok && tt.Remaining != nil && *tt.Remaining < req.Quantity {
			return entity.ErrSoldOut
		}
	}

	return nil
}

// Verify settles a pending payment with the gateway's view of it. Terminal
// payments are returned without asking the gateway again.
func (s *Service) Verify(ctx context.Context, reference string) (entity.Payment, error) {
	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return entity.Payment{}, err
	}
	if p.Status.Terminal() {
		return p, nil
	}

	tx, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return entity.Payment{}, err
	}

	// An unsettled charge keeps its seats until the payment expires.
	if inFlightStatuses[tx.Status] && !s.expired(p) {
		log.FromContext(ctx).WithFields(logrus.Fields{
			"payment_reference": reference,
			"gateway_status":    tx.Status,
		}).Info("Payment still in flight, leaving it pending")
		return p, nil
	}

	outcome := postgres.PaymentOutcome{
		Success:       tx.Status == gatewayStatusSuccess,
		GatewayStatus: tx.Status,
	}
	if outcome.Success && !s.matches(p, tx) {
		log.FromContext(ctx).WithFields(logrus.Fields{
			"payment_reference": reference,
			"expected":          p.Amount.String() + " " + p.Currency,
			"received":          tx.Amount.String() + " " + tx.Currency,
		}).Warn("Gateway amount does not match payment, failing it")
		outcome = postgres.PaymentOutcome{Success: false, GatewayStatus: "amount_mismatch"}
	}

	completed, tickets, err := s.repo.Complete(ctx, reference, outcome)
	if err != nil {
		return entity.Payment{}, fmt.Errorf("completing payment: %w", err)
	}

	monitoring.TrackPaymentCompleted(string(completed.Status))
	if len(tickets) > 0 {
		monitoring.TrackTicketsIssued("paid", len(tickets))
		s.invalidate(ctx, completed.EventID)
	}

	return completed, nil
}

func (s *Service) expired(p entity.Payment) bool {
	return p.CreatedAt.Before(s.now().Add(-s.expiry))
}

func (s *Service) matches(p entity.Payment, tx clients.Transaction) bool {
	return tx.Amount.Equal(p.Amount) && strings.EqualFold(tx.Currency, p.Currency)
}

func (s *Service) invalidate(ctx context.Context, eventID string) {
	logger := log.FromContext(ctx).WithField("event_id", eventID)

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		logger.WithError(err).Warn("Loading event for analytics invalidation failed")
		return
	}
	if err := s.analytics.Invalidate(ctx, ev.ID, ev.CreatorID); err != nil {
		logger.WithError(err).Warn("Invalidating analytics failed")
	}
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook checks the signature before reading the body. Only
// charge.success triggers verification; other events are ignored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := s.gateway.VerifySignature(body, signature); err != nil {
		return err
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.Validation("invalid_payload", "webhook body is not valid JSON")
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"webhook_event":     payload.Event,
		"payment_reference": payload.Data.Reference,
	})

	if payload.Event != chargeSuccessEvent {
		logger.Info("Ignoring webhook event")
		return nil
	}

	if _, err := s.Verify(ctx, payload.Data.Reference); err != nil {
		return fmt.Errorf("verifying webhook payment: %w", err)
	}

	logger.Info("Webhook payment verified")

	return nil
}

// Get returns a payment to the user who made it.
func (s *Service) Get(ctx context.Context, reference, requesterID string) (entity.Payment, error) {
	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return entity.Payment{}, err
	}
	if p.UserID != requesterID {
		return entity.Payment{}, entity.NotFound("payment")
	}

	return p, nil
}

// ExpireStale verifies payments left pending past the expiry so their seats
// are released when the payer never finished. It returns how many settled.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, s.now().Add(-s.expiry), staleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale payments: %w", err)
	}

	settled := 0
	for _, p := range stale {
		if _, err := s.Verify(ctx, p.Reference); err != nil {
			log.FromContext(ctx).WithError(err).WithField("payment_reference", p.Reference).
				Warn("Verifying stale payment failed")
			continue
		}
		settled++
	}

	return settled, nil
}
