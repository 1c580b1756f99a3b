package tests_test

import (
	"context"
	"errors"
	"sync"
	"ticketing/clients"
	"ticketing/entity"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

type MockGateway struct {
	lock     sync.Mutex
	charges  map[string]clients.Transaction
	Refunded []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{charges: map[string]clients.Transaction{}}
}

func (m *MockGateway) Initialize(_ context.Context, _, reference string, amount decimal.Decimal, currency string) (clients.Checkout, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.charges[reference] = clients.Transaction{
		Reference: reference,
		Status:    "success",
		Amount:    amount,
		Currency:  currency,
	}

	return clients.Checkout{
		AuthorizationURL: "https://checkout.example.com/" + reference,
		AccessCode:       shortuuid.New(),
		Reference:        reference,
	}, nil
}

func (m *MockGateway) Verify(_ context.Context, reference string) (clients.Transaction, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	tx, ok := m.charges[reference]
	if !ok {
		return clients.Transaction{}, entity.Gateway("verifying transaction", errors.New("unknown reference"))
	}
	return tx, nil
}

func (m *MockGateway) VerifySignature(_ []byte, signature string) error {
	if signature != "valid" {
		return entity.ErrInvalidSignature
	}
	return nil
}

func (m *MockGateway) Refund(_ context.Context, reference string, _ decimal.Decimal) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Refunded = append(m.Refunded, reference)
	return nil
}

type SentEmail struct {
	To      string
	Subject string
	HTML    string
}

type MockMailer struct {
	lock sync.Mutex
	sent []SentEmail
}

func (m *MockMailer) SendEmail(_ context.Context, to, subject, html string) (entity.DeliveryReceipt, error) {
	if to == "" {
		return entity.DeliveryReceipt{}, errors.New("missing recipient")
	}

	m.lock.Lock()
	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, HTML: html})
	m.lock.Unlock()

	return entity.DeliveryReceipt{
		MessageID:  shortuuid.New(),
		To:         to,
		AcceptedAt: time.Now().UTC(),
	}, nil
}

func (m *MockMailer) SentTo(to string) []SentEmail {
	m.lock.Lock()
	defer m.lock.Unlock()

	var out []SentEmail
	for _, e := range m.sent {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}
