package event

import (
	"context"
	"fmt"
	"ticketing/clients"
	"ticketing/entity"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) (entity.DeliveryReceipt, error)
}

type EventReader interface {
	Get(ctx context.Context, eventID string) (entity.Event, error)
}

type DefaultReminderCreator interface {
	CreateDefault(ctx context.Context, userID, eventID string) error
}

type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context, eventID, creatorID string) error
}

func NewProcessorConfig(logger watermill.LoggerAdapter, redisClient *redis.Client) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: "svc-tickets." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	}
}

type Handler struct {
	mailer    Mailer
	events    EventReader
	reminders DefaultReminderCreator
	analytics AnalyticsInvalidator
}

func NewHandler(
	m Mailer,
	e EventReader,
	r DefaultReminderCreator,
	a AnalyticsInvalidator,
) Handler {
	return Handler{
		mailer:    m,
		events:    e,
		reminders: r,
		analytics: a,
	}
}

func (h Handler) SendTicketConfirmation(ctx context.Context, e *TicketsIssued) error {
	if e.Email == "" {
		log.FromContext(ctx).WithField("event_id", e.EventID).Info("No email for issued tickets, skipping confirmation")
		return nil
	}

	ev, err := h.events.Get(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("getting event: %w", err)
	}

	subject, body, err := clients.TicketConfirmationEmail(ev, e.Codes)
	if err != nil {
		return fmt.Errorf("rendering confirmation: %w", err)
	}

	if _, err := h.mailer.SendEmail(ctx, e.Email, subject, body); err != nil {
		return fmt.Errorf("sending confirmation: %w", err)
	}

	return nil
}

func (h Handler) ScheduleDefaultReminder(ctx context.Context, e *TicketsIssued) error {
	if err := h.reminders.CreateDefault(ctx, e.UserID, e.EventID); err != nil {
		return fmt.Errorf("creating default reminder: %w", err)
	}

	return nil
}

func (h Handler) InvalidateAnalytics(ctx context.Context, e *TicketsIssued) error {
	ev, err := h.events.Get(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("getting event: %w", err)
	}

	if err := h.analytics.Invalidate(ctx, ev.ID, ev.CreatorID); err != nil {
		return fmt.Errorf("invalidating analytics: %w", err)
	}

	return nil
}

func (h Handler) LogPaymentFailed(ctx context.Context, e *PaymentFailed) error {
	log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_reference": e.PaymentReference,
		"event_id":          e.EventID,
		"gateway_status":    e.GatewayStatus,
	}).Info("Payment failed, reservation released")

	return nil
}
