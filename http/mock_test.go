package http

import (
	"context"
	"sync"
	"ticketing/account"
	"ticketing/catalog"
	"ticketing/entity"
	"ticketing/ticket"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type mockAccounts struct {
	sessions map[string]account.Claims
	users    map[string]entity.User
}

func (m mockAccounts) ParseToken(token string) (account.Claims, error) {
	claims, ok := m.sessions[token]
	if !ok {
		return account.Claims{}, entity.Unauthorized("invalid_token", "session token is invalid")
	}
	return claims, nil
}

func (m mockAccounts) Signup(_ context.Context, req account.SignupRequest) (entity.User, error) {
	return entity.User{ID: "new-user", Email: req.Email, Role: req.Role}, nil
}

func (m mockAccounts) Login(_ context.Context, email, password string) (string, entity.User, error) {
	if password != "secret-password" {
		return "", entity.User{}, entity.Unauthorized("invalid_credentials", "email or password is incorrect")
	}
	return "token", entity.User{ID: "user", Email: email}, nil
}

func (m mockAccounts) Get(_ context.Context, userID string) (entity.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return entity.User{}, entity.NotFound("user")
	}
	return u, nil
}

type mockCatalog struct {
	lock    sync.Mutex
	created []catalog.CreateEvent
}

func (m *mockCatalog) Create(_ context.Context, creator entity.User, req catalog.CreateEvent) (entity.Event, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.created = append(m.created, req)
	return entity.Event{ID: eventID, CreatorID: creator.ID, Title: req.Title, Status: entity.EventStatusDraft}, nil
}

func (m *mockCatalog) Get(_ context.Context, id string) (entity.Event, error) {
	if id != eventID {
		return entity.Event{}, entity.NotFound("event")
	}
	return entity.Event{ID: id, Title: "Concert"}, nil
}

func (m *mockCatalog) Feed(context.Context) ([]entity.Event, error) {
	return []entity.Event{{ID: eventID, Title: "Concert"}}, nil
}

func (m *mockCatalog) ListByCreator(context.Context, string) ([]entity.Event, error) {
	return []entity.Event{}, nil
}

func (m *mockCatalog) UpdateStatus(_ context.Context, _, id string, status entity.EventStatus) (entity.Event, error) {
	return entity.Event{ID: id, Status: status}, nil
}

type mockTickets struct {
	lock      sync.Mutex
	purchases []ticket.PurchaseRequest
}

func (m *mockTickets) Purchase(_ context.Context, req ticket.PurchaseRequest) (ticket.PurchaseResult, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.purchases = append(m.purchases, req)
	return ticket.PurchaseResult{Tickets: []entity.Ticket{{ID: "t1", Code: "TKT-1"}}}, nil
}

func (m *mockTickets) Validate(_ context.Context, code, _, _ string) (entity.Ticket, error) {
	if code == "TKT-USED" {
		return entity.Ticket{}, entity.ErrAlreadyUsed
	}
	return entity.Ticket{Code: code, Status: entity.TicketStatusUsed}, nil
}

func (m *mockTickets) Refund(_ context.Context, ticketID, _ string, _ bool) (entity.Ticket, error) {
	return entity.Ticket{ID: ticketID, Status: entity.TicketStatusRefunded}, nil
}

func (m *mockTickets) ListByUser(context.Context, string) ([]entity.Ticket, error) {
	return []entity.Ticket{}, nil
}

func (m *mockTickets) QRCode(context.Context, string, string) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

type mockPayments struct {
	lock      sync.Mutex
	webhooks  [][]byte
	signature string
}

func (m *mockPayments) Get(_ context.Context, reference, _ string) (entity.Payment, error) {
	return entity.Payment{Reference: reference, Status: entity.PaymentStatusPending}, nil
}

func (m *mockPayments) Verify(_ context.Context, reference string) (entity.Payment, error) {
	return entity.Payment{Reference: reference, Status: entity.PaymentStatusSuccess}, nil
}

func (m *mockPayments) HandleWebhook(_ context.Context, body []byte, signature string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if signature != "valid" {
		return entity.ErrInvalidSignature
	}
	m.webhooks = append(m.webhooks, body)
	m.signature = signature
	return nil
}

type mockAnalytics struct{}

func (mockAnalytics) EventStats(_ context.Context, requesterID string, admin bool, id string) (entity.EventStats, error) {
	if requesterID != "creator" && !admin {
		return entity.EventStats{}, entity.Forbidden("only the event creator can view its analytics")
	}
	return entity.EventStats{EventID: id, TicketsSold: 3}, nil
}

func (mockAnalytics) CreatorStats(_ context.Context, creatorID string) (entity.CreatorStats, error) {
	return entity.CreatorStats{CreatorID: creatorID}, nil
}

type mockReminders struct {
	lock    sync.Mutex
	created []time.Time
}

func (m *mockReminders) Create(_ context.Context, userID, eventID string, fireAt time.Time, t entity.ReminderType) (entity.Reminder, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.created = append(m.created, fireAt)
	return entity.Reminder{ID: "r1", UserID: userID, EventID: eventID, FireAt: fireAt, Type: t}, nil
}

func (m *mockReminders) ListByUser(context.Context, string) ([]entity.Reminder, error) {
	return []entity.Reminder{}, nil
}

func session(userID string, role entity.Role) account.Claims {
	return account.Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
}
