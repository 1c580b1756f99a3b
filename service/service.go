package service

import (
	"context"
	"errors"
	"fmt"
	"ticketing/account"
	"ticketing/analytics"
	"ticketing/cache"
	"ticketing/catalog"
	"ticketing/config"
	"ticketing/entity"
	"ticketing/http"
	"ticketing/message"
	"ticketing/message/command"
	"ticketing/message/event"
	"ticketing/payment"
	"ticketing/postgres"
	"ticketing/reminder"
	"ticketing/ticket"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type PaymentGateway interface {
	payment.Gateway
	ticket.Refunder
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) (entity.DeliveryReceipt, error)
}

type Deps struct {
	Config      config.Config
	Logger      watermill.LoggerAdapter
	DB          *sqlx.DB
	RedisClient *redis.Client
	Gateway     PaymentGateway
	Mailer      Mailer
}

type Service struct {
	msgRouter  *message.Router
	forwarder  *message.Forwarder
	scheduler  *message.Scheduler
	sweeper    *reminder.Sweeper
	httpRouter *echo.Echo
	httpAddr   string
}

func New(deps Deps) (*Service, error) {
	cfg := deps.Config

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: deps.RedisClient,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating publisher: %w", err)
	}
	decoratedPublisher := log.CorrelationPublisherDecorator{Publisher: publisher}

	commandBus, err := command.NewBus(decoratedPublisher, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating command bus: %w", err)
	}

	userRepo := postgres.NewUserRepo(deps.DB)
	eventRepo := postgres.NewEventRepo(deps.DB)
	ticketRepo := postgres.NewTicketRepo(deps.DB, deps.Logger)
	paymentRepo := postgres.NewPaymentRepo(deps.DB, deps.Logger)
	reminderRepo := postgres.NewReminderRepo(deps.DB)
	statsRepo := postgres.NewStatsRepo(deps.DB)

	c := cache.New(deps.RedisClient, cfg.CacheTTL)
	scheduler := message.NewScheduler(deps.RedisClient, commandBus, cfg.PollInterval)

	accounts := account.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	events := catalog.NewService(eventRepo, c)
	stats := analytics.NewService(statsRepo, eventRepo, c)
	payments := payment.NewService(deps.Gateway, paymentRepo, eventRepo, stats, cfg.PaymentExpiry)
	tickets := ticket.NewService(ticketRepo, events, payments, deps.Gateway, stats)
	reminders := reminder.NewService(reminderRepo, eventRepo, scheduler)
	deliverer := reminder.NewDeliverer(reminderRepo, userRepo, eventRepo, deps.Mailer, cfg.ClaimLease)
	sweeper := reminder.NewSweeper(reminderRepo, deliverer, payments, cfg.SweepInterval)

	forwarder, err := message.NewForwarder(deps.DB, deps.RedisClient, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating outbox forwarder: %w", err)
	}

	msgRouter, err := message.NewRouter(message.RouterDeps{
		Logger:          deps.Logger,
		RedisClient:     deps.RedisClient,
		PoisonPublisher: decoratedPublisher,
		CommandHandler:  command.NewHandler(deliverer),
		EventHandler:    event.NewHandler(deps.Mailer, eventRepo, reminders, stats),
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	httpRouter := http.NewRouter(http.RouterDeps{
		Accounts:        accounts,
		Catalog:         events,
		Tickets:         tickets,
		Payments:        payments,
		Analytics:       stats,
		Reminders:       reminders,
		RedisClient:     deps.RedisClient,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	return &Service{
		msgRouter:  msgRouter,
		forwarder:  forwarder,
		scheduler:  scheduler,
		sweeper:    sweeper,
		httpRouter: httpRouter,
		httpAddr:   cfg.HTTPAddr,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if !s.waitForRouter(runCtx) {
			return nil
		}

		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running outbox forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if !s.waitForRouter(runCtx) {
			return nil
		}

		return s.scheduler.Run(runCtx)
	})

	g.Go(func() error {
		if !s.waitForRouter(runCtx) {
			return nil
		}

		return s.sweeper.Run(runCtx)
	})

	g.Go(func() error {
		if !s.waitForRouter(runCtx) {
			return nil
		}

		logrus.WithField("addr", s.httpAddr).Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}

// waitForRouter reports false when ctx ends before the message router starts.
func (s Service) waitForRouter(ctx context.Context) bool {
	select {
	case <-s.msgRouter.Running():
		return true
	case <-ctx.Done():
		return false
	}
}
