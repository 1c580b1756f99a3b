package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"ticketing/clients"
	"ticketing/config"
	"ticketing/message"
	"ticketing/postgres"
	"ticketing/service"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Fatal("failed to load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.Init(level)
	logger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	if err := run(cfg, logger); err != nil {
		logger.Error("failed to run", err, nil)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger watermill.LoggerAdapter) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis connection", err, nil)
		}
	}()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}

	dbConn, err := sqlx.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close db connection", err, nil)
		}
	}()
	if err := dbConn.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging db: %w", err)
	}

	if err := postgres.InitialiseDB(ctx, dbConn); err != nil {
		return fmt.Errorf("initialising schema: %w", err)
	}
	if err := message.InitialiseOutbox(dbConn, logger); err != nil {
		return fmt.Errorf("initialising outbox: %w", err)
	}

	gateway := clients.NewPaystack(clients.PaystackConfig{
		SecretKey:   cfg.Paystack.SecretKey,
		BaseURL:     cfg.Paystack.BaseURL,
		CallbackURL: cfg.Paystack.CallbackURL,
		Timeout:     cfg.Paystack.Timeout,
	})
	mailer := clients.NewMailer(clients.MailerConfig{
		Addr:     cfg.SMTP.Addr(),
		Host:     cfg.SMTP.Host,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.MailFrom,
	})

	svc, err := service.New(service.Deps{
		Config:      cfg,
		Logger:      logger,
		DB:          dbConn,
		RedisClient: rdb,
		Gateway:     gateway,
		Mailer:      mailer,
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	return svc.Run(ctx)
}
