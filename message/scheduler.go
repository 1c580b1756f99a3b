package message

import (
	"context"
	"fmt"
	"strconv"
	"ticketing/message/command"
	"ticketing/monitoring"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

const (
	scheduledRemindersKey = "scheduled:SendReminder"
	forwardBatchSize      = 100
)

type CommandSender interface {
	Send(ctx context.Context, cmd any) error
}

// Scheduler holds SendReminder jobs in a Redis sorted set scored by fire time
// and moves each onto the command bus once it is due. Several schedulers may
// poll the same set; ZREM decides which one forwards a job.
type Scheduler struct {
	rdb      redis.Cmdable
	bus      CommandSender
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(rdb redis.Cmdable, bus CommandSender, interval time.Duration) *Scheduler {
	return &Scheduler{
		rdb:      rdb,
		bus:      bus,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock replaces the scheduler's time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Schedule sends the job right away when fireAt is not in the future.
func (s *Scheduler) Schedule(ctx context.Context, reminderID string, fireAt time.Time) error {
	if !fireAt.After(s.now()) {
		if err := s.bus.Send(ctx, command.NewSendReminder(reminderID)); err != nil {
			return fmt.Errorf("sending reminder command: %w", err)
		}
		return nil
	}

	err := s.rdb.ZAdd(ctx, scheduledRemindersKey, redis.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: reminderID,
	}).Err()
	if err != nil {
		return fmt.Errorf("adding scheduled reminder: %w", err)
	}

	return nil
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ForwardDue(ctx); err != nil {
				log.FromContext(ctx).WithError(err).Error("Forwarding due reminders failed")
			}
		}
	}
}

// ForwardDue moves jobs whose fire time has passed onto the command bus and
// returns how many it forwarded.
func (s *Scheduler) ForwardDue(ctx context.Context) (int, error) {
	due, err := s.rdb.ZRangeByScoreWithScores(ctx, scheduledRemindersKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: forwardBatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("reading due reminders: %w", err)
	}

	forwarded := 0
	for _, job := range due {
		reminderID, ok := job.Member.(string)
		if !ok {
			continue
		}

		removed, err := s.rdb.ZRem(ctx, scheduledRemindersKey, reminderID).Result()
		if err != nil {
			return forwarded, fmt.Errorf("claiming reminder %s: %w", reminderID, err)
		}
		if removed == 0 {
			continue
		}

		if err := s.bus.Send(ctx, command.NewSendReminder(reminderID)); err != nil {
			if putBackErr := s.rdb.ZAdd(ctx, scheduledRemindersKey, job).Err(); putBackErr != nil {
				log.FromContext(ctx).WithError(putBackErr).WithField("reminder_id", reminderID).
					Error("Re-adding reminder after failed forward")
			}
			return forwarded, fmt.Errorf("sending reminder %s: %w", reminderID, err)
		}

		forwarded++
		monitoring.TrackJobForwarded()
	}

	return forwarded, nil
}
