package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleEventee Role = "EVENTEE"
	RoleAdmin   Role = "ADMIN"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusCancelled EventStatus = "CANCELLED"
	EventStatusCompleted EventStatus = "COMPLETED"
)

var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:     {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished: {EventStatusCancelled, EventStatusCompleted},
}

// CanTransition reports whether an event may move from one status to another.
func (s EventStatus) CanTransition(to EventStatus) bool {
	for _, allowed := range eventTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Event struct {
	ID               string          `db:"id" json:"id"`
	CreatorID        string          `db:"creator_id" json:"creatorId"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description"`
	Location         string          `db:"location" json:"location"`
	StartsAt         time.Time       `db:"starts_at" json:"startsAt"`
	Price            decimal.Decimal `db:"price" json:"price"`
	Currency         string          `db:"currency" json:"currency"`
	Capacity         *int            `db:"capacity" json:"capacity,omitempty"`
	TicketsRemaining *int            `db:"tickets_remaining" json:"ticketsRemaining,omitempty"`
	IsPublic         bool            `db:"is_public" json:"isPublic"`
	Status           EventStatus     `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
	TicketTypes      []TicketType    `db:"-" json:"ticketTypes,omitempty"`
}

// TicketType returns the ticket type with the given id.
func (e Event) TicketType(id string) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.ID == id {
			return tt, true
		}
	}
	return TicketType{}, false
}

type TicketType struct {
	ID        string          `db:"id" json:"id"`
	EventID   string          `db:"event_id" json:"eventId"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Capacity  *int            `db:"capacity" json:"capacity,omitempty"`
	Remaining *int            `db:"remaining" json:"remaining,omitempty"`
}

type TicketStatus string

const (
	TicketStatusValid    TicketStatus = "VALID"
	TicketStatusUsed     TicketStatus = "USED"
	TicketStatusRefunded TicketStatus = "REFUNDED"
)

type Ticket struct {
	ID           string          `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	EventID      string          `db:"event_id" json:"eventId"`
	UserID       string          `db:"user_id" json:"userId"`
	TicketTypeID *string         `db:"ticket_type_id" json:"ticketTypeId,omitempty"`
	PaymentID    *string         `db:"payment_id" json:"paymentId,omitempty"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Currency     string          `db:"currency" json:"currency"`
	Status       TicketStatus    `db:"status" json:"status"`
	ScannedAt    *time.Time      `db:"scanned_at" json:"scannedAt,omitempty"`
	ScannedBy    *string         `db:"scanned_by" json:"scannedBy,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// Issue describes tickets to create for one buyer at one snapshot price.
type Issue struct {
	EventID      string
	UserID       string
	Email        string
	TicketTypeID *string
	PaymentID    *string
	Quantity     int
	UnitPrice    decimal.Decimal
	Currency     string
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

type Payment struct {
	ID               string          `db:"id" json:"id"`
	Reference        string          `db:"reference" json:"reference"`
	UserID           string          `db:"user_id" json:"userId"`
	EventID          string          `db:"event_id" json:"eventId"`
	TicketTypeID     *string         `db:"ticket_type_id" json:"ticketTypeId,omitempty"`
	Quantity         int             `db:"quantity" json:"quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	Email            string          `db:"email" json:"email"`
	Status           PaymentStatus   `db:"status" json:"status"`
	AuthorizationURL string          `db:"authorization_url" json:"authorizationUrl"`
	GatewayStatus    string          `db:"gateway_status" json:"gatewayStatus,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	VerifiedAt       *time.Time      `db:"verified_at" json:"verifiedAt,omitempty"`
}

// Issue returns the tickets a successful payment entitles its payer to.
func (p Payment) Issue() Issue {
	id := p.ID
	return Issue{
		EventID:      p.EventID,
		UserID:       p.UserID,
		Email:        p.Email,
		TicketTypeID: p.TicketTypeID,
		PaymentID:    &id,
		Quantity:     p.Quantity,
		UnitPrice:    p.UnitPrice,
		Currency:     p.Currency,
	}
}

type ReminderType string

const (
	ReminderTypeUserCustom     ReminderType = "USER_CUSTOM"
	ReminderTypeCreatorDefault ReminderType = "CREATOR_DEFAULT"
)

type Reminder struct {
	ID           string       `db:"id" json:"id"`
	UserID       string       `db:"user_id" json:"userId"`
	EventID      string       `db:"event_id" json:"eventId"`
	FireAt       time.Time    `db:"fire_at" json:"scheduledAt"`
	Type         ReminderType `db:"type" json:"type"`
	Sent         bool         `db:"sent" json:"sent"`
	SentAt       *time.Time   `db:"sent_at" json:"sentAt,omitempty"`
	ClaimedUntil *time.Time   `db:"claimed_until" json:"-"`
	Attempts     int          `db:"attempts" json:"attempts"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

type DeliveryReceipt struct {
	MessageID  string    `json:"messageId"`
	To         string    `json:"to"`
	AcceptedAt time.Time `json:"acceptedAt"`
}
