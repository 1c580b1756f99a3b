package message

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Integration events are written to this Postgres topic in the same
// transaction as the state change and forwarded to Redis Streams.
const outboxTopic = "events_to_forward"

var eventMarshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

type Forwarder struct {
	*forwarder.Forwarder
}

func NewForwarder(
	db *sqlx.DB,
	rdb *redis.Client,
	logger watermill.LoggerAdapter,
) (*Forwarder, error) {
	subscriber, err := newOutboxSubscriber(db, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating redis publisher: %w", err)
	}

	f, err := forwarder.NewForwarder(subscriber, publisher, logger, forwarder.Config{
		ForwarderTopic: outboxTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	return &Forwarder{f}, nil
}

// InitialiseOutbox creates the outbox and offsets tables if missing.
func InitialiseOutbox(db *sqlx.DB, logger watermill.LoggerAdapter) error {
	subscriber, err := newOutboxSubscriber(db, logger)
	if err != nil {
		return err
	}

	return subscriber.Close()
}

func newOutboxSubscriber(db *sqlx.DB, logger watermill.LoggerAdapter) (*watermillSQL.Subscriber, error) {
	subscriber, err := watermillSQL.NewSubscriber(db, watermillSQL.SubscriberConfig{
		SchemaAdapter:  watermillSQL.DefaultPostgreSQLSchema{},
		OffsetsAdapter: watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating outbox subscriber: %w", err)
	}

	if err := subscriber.SubscribeInitialize(outboxTopic); err != nil {
		return nil, fmt.Errorf("initialising outbox subscriber: %w", err)
	}

	return subscriber, nil
}

// PublishInTx stores event in the outbox table using tx. The event becomes
// visible to handlers only if tx commits.
func PublishInTx(
	ctx context.Context,
	event any,
	tx *sql.Tx,
	logger watermill.LoggerAdapter,
) error {
	sqlPublisher, err := watermillSQL.NewPublisher(
		tx,
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating sql publisher: %w", err)
	}

	publisher := log.CorrelationPublisherDecorator{
		Publisher: forwarder.NewPublisher(sqlPublisher, forwarder.PublisherConfig{
			ForwarderTopic: outboxTopic,
		}),
	}

	eventBus, err := cqrs.NewEventBusWithConfig(publisher, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: eventMarshaler,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating outbox event bus: %w", err)
	}

	if err := eventBus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing %T to outbox: %w", event, err)
	}

	return nil
}
