package command

import (
	"context"
	"fmt"
)

type ReminderDeliverer interface {
	Deliver(ctx context.Context, reminderID string) error
}

type Handler struct {
	deliverer ReminderDeliverer
}

func NewHandler(d ReminderDeliverer) Handler {
	return Handler{
		deliverer: d,
	}
}

func (h Handler) SendReminder(ctx context.Context, cmd *SendReminder) error {
	if err := h.deliverer.Deliver(ctx, cmd.ReminderID); err != nil {
		return fmt.Errorf("delivering reminder %s: %w", cmd.ReminderID, err)
	}

	return nil
}
