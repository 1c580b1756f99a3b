package command

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// SendReminder asks for one reminder to be delivered. It may arrive more than
// once; the reminder id is the idempotency key.
type SendReminder struct {
	Header     header `json:"header"`
	ReminderID string `json:"reminder_id"`
}

func NewSendReminder(reminderID string) SendReminder {
	return SendReminder{
		Header:     newHeader(reminderID),
		ReminderID: reminderID,
	}
}
