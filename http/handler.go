package http

import (
	"context"
	"io"
	"net/http"
	"ticketing/account"
	"ticketing/catalog"
	"ticketing/entity"
	"ticketing/ticket"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const headerPaystackSignature = "X-Paystack-Signature"

type Accounts interface {
	TokenParser
	Signup(ctx context.Context, req account.SignupRequest) (entity.User, error)
	Login(ctx context.Context, email, password string) (string, entity.User, error)
	Get(ctx context.Context, userID string) (entity.User, error)
}

type Catalog interface {
	Create(ctx context.Context, creator entity.User, req catalog.CreateEvent) (entity.Event, error)
	Get(ctx context.Context, eventID string) (entity.Event, error)
	Feed(ctx context.Context) ([]entity.Event, error)
	ListByCreator(ctx context.Context, creatorID string) ([]entity.Event, error)
	UpdateStatus(ctx context.Context, creatorID, eventID string, status entity.EventStatus) (entity.Event, error)
}

type Tickets interface {
	Purchase(ctx context.Context, req ticket.PurchaseRequest) (ticket.PurchaseResult, error)
	Validate(ctx context.Context, code, eventID, scannerID string) (entity.Ticket, error)
	Refund(ctx context.Context, ticketID, requesterID string, admin bool) (entity.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Ticket, error)
	QRCode(ctx context.Context, ticketID, userID string) ([]byte, error)
}

type Payments interface {
	Get(ctx context.Context, reference, requesterID string) (entity.Payment, error)
	Verify(ctx context.Context, reference string) (entity.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

type Analytics interface {
	EventStats(ctx context.Context, requesterID string, admin bool, eventID string) (entity.EventStats, error)
	CreatorStats(ctx context.Context, creatorID string) (entity.CreatorStats, error)
}

type Reminders interface {
	Create(ctx context.Context, userID, eventID string, fireAt time.Time, reminderType entity.ReminderType) (entity.Reminder, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Reminder, error)
}

type handler struct {
	accounts  Accounts
	catalog   Catalog
	tickets   Tickets
	payments  Payments
	analytics Analytics
	reminders Reminders
}

// idParam reads a uuid path parameter. Malformed ids cannot exist, so they
// are reported as missing.
func idParam(c echo.Context, name, what string) (string, error) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		return "", entity.NotFound(what)
	}
	return id, nil
}

type signupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role" validate:"omitempty,oneof=CREATOR EVENTEE"`
}

func (h handler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.Signup(c.Request().Context(), account.SignupRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      entity.Role(req.Role),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  entity.User `json:"user"`
}

func (h handler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, user, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

type ticketTypeRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Capacity *int            `json:"capacity" validate:"omitempty,min=1"`
}

type createEventRequest struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description"`
	Location    string              `json:"location"`
	StartsAt    time.Time           `json:"startsAt" validate:"required"`
	Price       decimal.Decimal     `json:"price"`
	Currency    string              `json:"currency" validate:"omitempty,len=3"`
	Capacity    *int                `json:"capacity" validate:"omitempty,min=1"`
	IsPublic    *bool               `json:"isPublic"`
	Status      string              `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	TicketTypes []ticketTypeRequest `json:"ticketTypes" validate:"dive"`
}

func (h handler) CreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	create := catalog.CreateEvent{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		Price:       req.Price,
		Currency:    req.Currency,
		Capacity:    req.Capacity,
		IsPublic:    isPublic,
		Status:      entity.EventStatus(req.Status),
	}
	for _, tt := range req.TicketTypes {
		create.TicketTypes = append(create.TicketTypes, catalog.CreateTicketType{
			Name:     tt.Name,
			Price:    tt.Price,
			Capacity: tt.Capacity,
		})
	}

	claims := claimsFrom(c)
	event, err := h.catalog.Create(c.Request().Context(), entity.User{ID: claims.UserID(), Role: claims.Role}, create)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, event)
}

func (h handler) Feed(c echo.Context) error {
	events, err := h.catalog.Feed(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, events)
}

func (h handler) GetEvent(c echo.Context) error {
	eventID, err := idParam(c, "id", "event")
	if err != nil {
		return err
	}

	event, err := h.catalog.Get(c.Request().Context(), eventID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, event)
}

func (h handler) MyEvents(c echo.Context) error {
	events, err := h.catalog.ListByCreator(c.Request().Context(), claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, events)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT PUBLISHED CANCELLED COMPLETED"`
}

func (h handler) UpdateEventStatus(c echo.Context) error {
	eventID, err := idParam(c, "id", "event")
	if err != nil {
		return err
	}

	var req statusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	event, err := h.catalog.UpdateStatus(c.Request().Context(), claimsFrom(c).UserID(), eventID, entity.EventStatus(req.Status))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, event)
}

func (h handler) EventStats(c echo.Context) error {
	eventID, err := idParam(c, "id", "event")
	if err != nil {
		return err
	}

	stats, err := h.analytics.EventStats(c.Request().Context(), claimsFrom(c).UserID(), isAdmin(c), eventID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

func (h handler) CreatorStats(c echo.Context) error {
	stats, err := h.analytics.CreatorStats(c.Request().Context(), claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

type purchaseRequest struct {
	EventID      string  `json:"eventId" validate:"required,uuid"`
	TicketTypeID *string `json:"ticketTypeId" validate:"omitempty,uuid"`
	Quantity     *int    `json:"quantity"`
}

func (h handler) Purchase(c echo.Context) error {
	var req purchaseRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	ctx := c.Request().Context()
	buyer, err := h.accounts.Get(ctx, claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	res, err := h.tickets.Purchase(ctx, ticket.PurchaseRequest{
		UserID:       buyer.ID,
		Email:        buyer.Email,
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     quantity,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, res)
}

func (h handler) MyTickets(c echo.Context) error {
	tickets, err := h.tickets.ListByUser(c.Request().Context(), claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tickets)
}

func (h handler) TicketQRCode(c echo.Context) error {
	ticketID, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}

	png, err := h.tickets.QRCode(c.Request().Context(), ticketID, claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

type validateRequest struct {
	QRCode  string `json:"qrCode" validate:"required"`
	EventID string `json:"eventId" validate:"required,uuid"`
}

func (h handler) ValidateTicket(c echo.Context) error {
	var req validateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := h.tickets.Validate(c.Request().Context(), req.QRCode, req.EventID, claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, t)
}

func (h handler) RefundTicket(c echo.Context) error {
	ticketID, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}

	t, err := h.tickets.Refund(c.Request().Context(), ticketID, claimsFrom(c).UserID(), isAdmin(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, t)
}

func (h handler) GetPayment(c echo.Context) error {
	p, err := h.payments.Get(c.Request().Context(), c.Param("reference"), claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, p)
}

func (h handler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	reference := c.Param("reference")

	if _, err := h.payments.Get(ctx, reference, claimsFrom(c).UserID()); err != nil {
		return err
	}

	p, err := h.payments.Verify(ctx, reference)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, p)
}

func (h handler) PaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return entity.Validation("invalid_body", "webhook body could not be read")
	}

	err = h.payments.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get(headerPaystackSignature))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type reminderRequest struct {
	EventID     string `json:"eventId" validate:"required,uuid"`
	ScheduledAt string `json:"scheduledAt" validate:"required"`
}

func (h handler) CreateReminder(c echo.Context) error {
	var req reminderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	fireAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return entity.Validation("invalid_scheduled_at", "scheduledAt must be an RFC 3339 timestamp")
	}

	r, err := h.reminders.Create(c.Request().Context(), claimsFrom(c).UserID(), req.EventID, fireAt, entity.ReminderTypeUserCustom)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, r)
}

func (h handler) MyReminders(c echo.Context) error {
	reminders, err := h.reminders.ListByUser(c.Request().Context(), claimsFrom(c).UserID())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, reminders)
}
