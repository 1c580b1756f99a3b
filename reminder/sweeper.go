package reminder

import (
	"context"
	"ticketing/entity"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

const sweepBatchSize = 100

type DueLister interface {
	Due(ctx context.Context, limit int) ([]entity.Reminder, error)
}

type PaymentExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper periodically delivers reminders whose jobs were lost and settles
// payments left pending past their expiry.
type Sweeper struct {
	reminders DueLister
	deliverer *Deliverer
	payments  PaymentExpirer
	interval  time.Duration
}

func NewSweeper(reminders DueLister, deliverer *Deliverer, payments PaymentExpirer, interval time.Duration) *Sweeper {
	return &Sweeper{
		reminders: reminders,
		deliverer: deliverer,
		payments:  payments,
		interval:  interval,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many reminders it delivered. Failures
// are logged and retried on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	logger := log.FromContext(ctx)

	delivered := 0
	due, err := s.reminders.Due(ctx, sweepBatchSize)
	if err != nil {
		logger.WithError(err).Error("Listing due reminders failed")
	}
	for _, r := range due {
		if err := s.deliverer.deliver(ctx, r.ID, sourceSweep); err != nil {
			logger.WithError(err).WithField("reminder_id", r.ID).Warn("Sweep delivery failed")
			continue
		}
		delivered++
	}

	if s.payments != nil {
		expired, err := s.payments.ExpireStale(ctx)
		if err != nil {
			logger.WithError(err).Error("Expiring stale payments failed")
		} else if expired > 0 {
			logger.WithField("payments", expired).Info("Settled stale payments")
		}
	}

	return delivered
}
