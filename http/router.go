package http

import (
	"net/http"
	"ticketing/entity"
	"ticketing/monitoring"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

var ErrServerClosed = http.ErrServerClosed

type RouterDeps struct {
	Accounts  Accounts
	Catalog   Catalog
	Tickets   Tickets
	Payments  Payments
	Analytics Analytics
	Reminders Reminders

	RedisClient     redis.Cmdable
	RateLimit       int
	RateLimitWindow time.Duration
}

func NewRouter(deps RouterDeps) *echo.Echo {
	server := newEcho()
	server.HTTPErrorHandler = handleError
	server.Validator = newRequestValidator()

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	server.GET("/metrics", echo.WrapHandler(monitoring.Handler()))

	h := handler{
		accounts:  deps.Accounts,
		catalog:   deps.Catalog,
		tickets:   deps.Tickets,
		payments:  deps.Payments,
		analytics: deps.Analytics,
		reminders: deps.Reminders,
	}

	authLimit := rateLimitByIP(newRedisRateStore(deps.RedisClient, "auth", deps.RateLimit, deps.RateLimitWindow))
	purchaseLimit := rateLimitByUser(newRedisRateStore(deps.RedisClient, "purchase", deps.RateLimit, deps.RateLimitWindow))

	auth := authenticate(deps.Accounts)
	creator := requireRole(entity.RoleCreator)

	server.POST("/auth/signup", h.Signup, authLimit)
	server.POST("/auth/login", h.Login, authLimit)

	server.GET("/events", h.Feed)
	server.GET("/events/mine", h.MyEvents, auth, creator)
	server.GET("/events/:id", h.GetEvent)
	server.POST("/events", h.CreateEvent, auth, creator)
	server.PATCH("/events/:id/status", h.UpdateEventStatus, auth, creator)
	server.GET("/events/:id/stats", h.EventStats, auth, creator)
	server.GET("/analytics/creator", h.CreatorStats, auth, creator)

	server.POST("/tickets/purchase", h.Purchase, auth, purchaseLimit)
	server.GET("/tickets", h.MyTickets, auth)
	server.GET("/tickets/:id/qrcode", h.TicketQRCode, auth)
	server.POST("/tickets/validate", h.ValidateTicket, auth, creator)
	server.POST("/tickets/:id/refund", h.RefundTicket, auth, creator)

	server.POST("/payments/webhook", h.PaymentWebhook)
	server.GET("/payments/:reference", h.GetPayment, auth)
	server.POST("/payments/:reference/verify", h.VerifyPayment, auth)

	server.POST("/reminders", h.CreateReminder, auth)
	server.GET("/reminders", h.MyReminders, auth)

	return server
}
