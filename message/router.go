package message

import (
	"fmt"
	"ticketing/message/command"
	"ticketing/message/event"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Logger          watermill.LoggerAdapter
	RedisClient     *redis.Client
	PoisonPublisher message.Publisher
	CommandHandler  command.Handler
	EventHandler    event.Handler
}

type Router struct {
	*message.Router
}

func NewRouter(deps RouterDeps) (*Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	if err := addMiddlewares(router, deps.PoisonPublisher, deps.Logger); err != nil {
		return nil, err
	}

	cp, err := cqrs.NewCommandProcessorWithConfig(router, command.NewProcessorConfig(deps.Logger, deps.RedisClient))
	if err != nil {
		return nil, fmt.Errorf("creating command processor: %w", err)
	}

	err = cp.AddHandlers(
		cqrs.NewCommandHandler("send-reminder", deps.CommandHandler.SendReminder),
	)
	if err != nil {
		return nil, fmt.Errorf("adding command handlers: %w", err)
	}

	ep, err := cqrs.NewEventProcessorWithConfig(router, event.NewProcessorConfig(deps.Logger, deps.RedisClient))
	if err != nil {
		return nil, fmt.Errorf("creating event processor: %w", err)
	}

	err = ep.AddHandlers(
		cqrs.NewEventHandler("send-ticket-confirmation", deps.EventHandler.SendTicketConfirmation),
		cqrs.NewEventHandler("schedule-default-reminder", deps.EventHandler.ScheduleDefaultReminder),
		cqrs.NewEventHandler("invalidate-analytics", deps.EventHandler.InvalidateAnalytics),
		cqrs.NewEventHandler("log-payment-failed", deps.EventHandler.LogPaymentFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("adding event handlers: %w", err)
	}

	return &Router{router}, nil
}
