package event_test

import (
	"context"
	"sync"
	"testing"
	"ticketing/entity"
	"ticketing/message/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMailer struct {
	lock sync.Mutex
	sent []string
}

func (m *mockMailer) SendEmail(_ context.Context, to, subject, _ string) (entity.DeliveryReceipt, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.sent = append(m.sent, to+"|"+subject)
	return entity.DeliveryReceipt{To: to}, nil
}

type mockEvents struct {
	events map[string]entity.Event
}

func (m mockEvents) Get(_ context.Context, eventID string) (entity.Event, error) {
	ev, ok := m.events[eventID]
	if !ok {
		return entity.Event{}, entity.NotFound("event")
	}
	return ev, nil
}

type mockReminders struct {
	lock    sync.Mutex
	created []string
}

func (m *mockReminders) CreateDefault(_ context.Context, userID, eventID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.created = append(m.created, userID+"|"+eventID)
	return nil
}

type mockAnalytics struct {
	lock        sync.Mutex
	invalidated []string
}

func (m *mockAnalytics) Invalidate(_ context.Context, eventID, creatorID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.invalidated = append(m.invalidated, eventID+"|"+creatorID)
	return nil
}

func newHandler() (event.Handler, *mockMailer, *mockReminders, *mockAnalytics) {
	mailer := &mockMailer{}
	reminders := &mockReminders{}
	analytics := &mockAnalytics{}
	events := mockEvents{events: map[string]entity.Event{
		"event-1": {ID: "event-1", CreatorID: "creator-1", Title: "Afrobeats Live"},
	}}

	return event.NewHandler(mailer, events, reminders, analytics), mailer, reminders, analytics
}

func ticketsIssued(email string) event.TicketsIssued {
	return event.NewTicketsIssued("PAY-1", entity.Issue{
		EventID: "event-1",
		UserID:  "user-1",
		Email:   email,
	}, []entity.Ticket{
		{ID: "ticket-1", Code: "code-1"},
		{ID: "ticket-2", Code: "code-2"},
	})
}

func TestNewTicketsIssued(t *testing.T) {
	e := ticketsIssued("ada@example.com")

	assert.Equal(t, []string{"ticket-1", "ticket-2"}, e.TicketIDs)
	assert.Equal(t, []string{"code-1", "code-2"}, e.Codes)
	assert.Equal(t, "PAY-1", e.Header.IdempotencyKey)

	free := event.NewTicketsIssued("", entity.Issue{EventID: "event-1"}, []entity.Ticket{{ID: "ticket-9"}})
	assert.Equal(t, "ticket-9", free.Header.IdempotencyKey)
}

func TestHandler_SendTicketConfirmation(t *testing.T) {
	h, mailer, _, _ := newHandler()

	e := ticketsIssued("ada@example.com")
	require.NoError(t, h.SendTicketConfirmation(context.Background(), &e))

	assert.Equal(t, []string{"ada@example.com|Your tickets for Afrobeats Live"}, mailer.sent)
}

func TestHandler_SendTicketConfirmation_NoEmail(t *testing.T) {
	h, mailer, _, _ := newHandler()

	e := ticketsIssued("")
	require.NoError(t, h.SendTicketConfirmation(context.Background(), &e))

	assert.Empty(t, mailer.sent)
}

func TestHandler_SendTicketConfirmation_UnknownEvent(t *testing.T) {
	h, mailer, _, _ := newHandler()

	e := ticketsIssued("ada@example.com")
	e.EventID = "missing"

	err := h.SendTicketConfirmation(context.Background(), &e)
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
	assert.Empty(t, mailer.sent)
}

func TestHandler_ScheduleDefaultReminder(t *testing.T) {
	h, _, reminders, _ := newHandler()

	e := ticketsIssued("ada@example.com")
	require.NoError(t, h.ScheduleDefaultReminder(context.Background(), &e))

	assert.Equal(t, []string{"user-1|event-1"}, reminders.created)
}

func TestHandler_InvalidateAnalytics(t *testing.T) {
	h, _, _, analytics := newHandler()

	e := ticketsIssued("ada@example.com")
	require.NoError(t, h.InvalidateAnalytics(context.Background(), &e))

	assert.Equal(t, []string{"event-1|creator-1"}, analytics.invalidated)
}
