package reminder_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"ticketing/entity"
	"time"
)

type mockRepo struct {
	lock      sync.Mutex
	reminders map[string]entity.Reminder
	claimed   map[string]bool
	nextID    int
	releases  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		reminders: map[string]entity.Reminder{},
		claimed:   map[string]bool{},
	}
}

func (m *mockRepo) Add(_ context.Context, r entity.Reminder) (entity.Reminder, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if r.ID == "" {
		m.nextID++
		r.ID = fmt.Sprintf("reminder-%d", m.nextID)
	}
	m.reminders[r.ID] = r
	return r, nil
}

func (m *mockRepo) AddDefault(ctx context.Context, r entity.Reminder) (entity.Reminder, bool, error) {
	m.lock.Lock()
	for _, existing := range m.reminders {
		if existing.Type == entity.ReminderTypeCreatorDefault && existing.UserID == r.UserID && existing.EventID == r.EventID {
			m.lock.Unlock()
			return entity.Reminder{}, false, nil
		}
	}
	m.lock.Unlock()

	added, err := m.Add(ctx, r)
	return added, err == nil, err
}

func (m *mockRepo) Get(_ context.Context, id string) (entity.Reminder, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	r, ok := m.reminders[id]
	if !ok {
		return entity.Reminder{}, entity.NotFound("reminder")
	}
	return r, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID string) ([]entity.Reminder, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var out []entity.Reminder
	for _, r := range m.reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (m *mockRepo) Claim(_ context.Context, id string, _ time.Duration) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	r, ok := m.reminders[id]
	if !ok || r.Sent || m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	r.Attempts++
	m.reminders[id] = r
	return true, nil
}

func (m *mockRepo) Release(_ context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.releases++
	delete(m.claimed, id)
	return nil
}

func (m *mockRepo) MarkSent(_ context.Context, id string) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	r, ok := m.reminders[id]
	if !ok {
		return false, entity.NotFound("reminder")
	}
	if r.Sent {
		return false, nil
	}
	r.Sent = true
	m.reminders[id] = r
	delete(m.claimed, id)
	return true, nil
}

func (m *mockRepo) Due(_ context.Context, limit int) ([]entity.Reminder, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var out []entity.Reminder
	for _, r := range m.reminders {
		if !r.Sent && !m.claimed[r.ID] && !r.FireAt.After(time.Now()) {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) get(id string) entity.Reminder {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.reminders[id]
}

type mockEvents struct {
	events map[string]entity.Event
}

func (m mockEvents) Get(_ context.Context, eventID string) (entity.Event, error) {
	e, ok := m.events[eventID]
	if !ok {
		return entity.Event{}, entity.NotFound("event")
	}
	return e, nil
}

type mockUsers struct {
	users map[string]entity.User
}

func (m mockUsers) Get(_ context.Context, userID string) (entity.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return entity.User{}, entity.NotFound("user")
	}
	return u, nil
}

type scheduledJob struct {
	reminderID string
	fireAt     time.Time
}

type mockScheduler struct {
	lock sync.Mutex
	jobs []scheduledJob
	err  error
}

func (m *mockScheduler) Schedule(_ context.Context, reminderID string, fireAt time.Time) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, scheduledJob{reminderID: reminderID, fireAt: fireAt})
	return nil
}

type sentEmail struct {
	to      string
	subject string
}

type mockMailer struct {
	lock sync.Mutex
	sent []sentEmail
	fail bool
}

var errSMTPDown = errors.New("smtp down")

func (m *mockMailer) SendEmail(_ context.Context, to, subject, _ string) (entity.DeliveryReceipt, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.fail {
		return entity.DeliveryReceipt{}, entity.Delivery(errSMTPDown)
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject})
	return entity.DeliveryReceipt{MessageID: fmt.Sprintf("msg-%d", len(m.sent)), To: to, AcceptedAt: time.Now()}, nil
}

func (m *mockMailer) emails() []sentEmail {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]sentEmail(nil), m.sent...)
}
