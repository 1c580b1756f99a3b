package postgres_test

import (
	"context"
	"sync/atomic"
	"testing"
	"ticketing/entity"
	"ticketing/postgres"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func addPendingPayment(t *testing.T, event entity.Event, buyer entity.User, quantity int) entity.Payment {
	t.Helper()

	p, err := paymentRepo().AddPending(context.Background(), entity.Payment{
		ID:               uuid.NewString(),
		Reference:        "PAY-" + shortuuid.New(),
		UserID:           buyer.ID,
		EventID:          event.ID,
		Quantity:         quantity,
		UnitPrice:        event.Price,
		Amount:           event.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Currency:         event.Currency,
		Email:            buyer.Email,
		AuthorizationURL: "https://checkout.example.com/abc",
	})
	require.NoError(t, err)

	return p
}

func TestPaymentRepo_AddPending_ReservesCapacity(t *testing.T) {
	ctx := context.Background()
	creator := addUser(t, entity.RoleCreator)
	buyer := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID, withPrice("1000"), withCapacity(2))

	p := addPendingPayment(t, event, buyer, 2)
	assert.Equal(t, entity.PaymentStatusPending, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(2000)))

	_, err := paymentRepo().AddPending(ctx, entity.Payment{
		ID:        uuid.NewString(),
		Reference: "PAY-" + shortuuid.New(),
		UserID:    buyer.ID,
		EventID:   event.ID,
		Quantity:  1,
		UnitPrice: event.Price,
		Amount:    event.Price,
		Currency:  event.Currency,
		Email:     buyer.Email,
	})
	assert.ErrorIs(t, err, entity.ErrSoldOut)
}

func TestPaymentRepo_Complete_Success(t *testing.T) {
	ctx := context.Background()
	creator := addUser(t, entity.RoleCreator)
	buyer := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID, withPrice("1000"), withCapacity(10))
	pending := addPendingPayment(t, event, buyer, 2)

	p, tickets, err := paymentRepo().Complete(ctx, pending.Reference, postgres.PaymentOutcome{Success: true, GatewayStatus: "success"})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusSuccess, p.Status)
	assert.Equal(t, "success", p.GatewayStatus)
	assert.NotNil(t, p.VerifiedAt)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		require.NotNil(t, ticket.PaymentID)
		assert.Equal(t, p.ID, *ticket.PaymentID)
		assert.True(t, ticket.Price.Equal(decimal.NewFromInt(1000)))
	}

	stored, err := postgres.NewEventRepo(db).Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, *stored.TicketsRemaining)

	again, tickets, err := paymentRepo().Complete(ctx, pending.Reference, postgres.PaymentOutcome{Success: true, GatewayStatus: "success"})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusSuccess, again.Status)
	assert.Empty(t, tickets)

	issued, err := paymentRepo().TicketsForPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, issued, 2)
}

func TestPaymentRepo_Complete_ConcurrentIssuesOnce(t *testing.T) {
	ctx := context.Background()
	creator := addUser(t, entity.RoleCreator)
	buyer := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID, withPrice("1000"))
	pending := addPendingPayment(t, event, buyer, 1)

	var issued atomic.Int32
	var g errgroup.Group
	for range 5 {
		g.Go(func() error {
			_, tickets, err := paymentRepo().Complete(ctx, pending.Reference, postgres.PaymentOutcome{Success: true})
			issued.Add(int32(len(tickets)))
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), issued.Load())
}

func TestPaymentRepo_Complete_FailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	creator := addUser(t, entity.RoleCreator)
	buyer := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID, withPrice("1000"), withCapacity(3))
	pending := addPendingPayment(t, event, buyer, 3)

	p, tickets, err := paymentRepo().Complete(ctx, pending.Reference, postgres.PaymentOutcome{Success: false, GatewayStatus: "abandoned"})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusFailed, p.Status)
	assert.Empty(t, tickets)

	stored, err := postgres.NewEventRepo(db).Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *stored.TicketsRemaining)

	p, _, err = paymentRepo().Complete(ctx, pending.Reference, postgres.PaymentOutcome{Success: true})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, p.Status, "terminal states never change")
}

func TestPaymentRepo_Complete_Unknown(t *testing.T) {
	_, _, err := paymentRepo().Complete(context.Background(), "PAY-unknown", postgres.PaymentOutcome{Success: true})
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
}

func TestPaymentRepo_ListStalePending(t *testing.T) {
	ctx := context.Background()
	creator := addUser(t, entity.RoleCreator)
	buyer := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID, withPrice("1000"))
	pending := addPendingPayment(t, event, buyer, 1)

	stale, err := paymentRepo().ListStalePending(ctx, time.Now().Add(time.Minute), 1000)
	require.NoError(t, err)
	assert.Contains(t, references(stale), pending.Reference)

	stale, err = paymentRepo().ListStalePending(ctx, time.Now().Add(-time.Hour), 1000)
	require.NoError(t, err)
	assert.NotContains(t, references(stale), pending.Reference)
}

func references(payments []entity.Payment) []string {
	refs := make([]string, len(payments))
	for i, p := range payments {
		refs[i] = p.Reference
	}
	return refs
}
