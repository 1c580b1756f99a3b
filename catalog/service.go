package catalog

import (
	"context"
	"fmt"
	"strings"
	"ticketing/cache"
	"ticketing/entity"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultCurrency = "NGN"

type Repository interface {
	Add(ctx context.Context, event entity.Event) (entity.Event, error)
	Get(ctx context.Context, id string) (entity.Event, error)
	ListPublished(ctx context.Context) ([]entity.Event, error)
	ListByCreator(ctx context.Context, creatorID string) ([]entity.Event, error)
	UpdateStatus(ctx context.Context, id string, from, to entity.EventStatus) (entity.Event, error)
}

type CreateEvent struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	Price       decimal.Decimal
	Currency    string
	Capacity    *int
	IsPublic    bool
	Status      entity.EventStatus
	TicketTypes []CreateTicketType
}

type CreateTicketType struct {
	Name     string
	Price    decimal.Decimal
	Capacity *int
}

type Service struct {
	repo  Repository
	cache cache.Cache
}

func NewService(repo Repository, c cache.Cache) Service {
	return Service{
		repo:  repo,
		cache: c,
	}
}

// Create stores a new event with its ticket types. Events start as DRAFT unless
// created straight into PUBLISHED.
func (s Service) Create(ctx context.Context, creator entity.User, req CreateEvent) (entity.Event, error) {
	if creator.Role != entity.RoleCreator && creator.Role != entity.RoleAdmin {
		return entity.Event{}, entity.Forbidden("only creators can create events")
	}

	status := req.Status
	if status == "" {
		status = entity.EventStatusDraft
	}
	if status != entity.EventStatusDraft && status != entity.EventStatusPublished {
		return entity.Event{}, entity.Validation("invalid_status", "new events are DRAFT or PUBLISHED")
	}
	if req.Price.IsNegative() {
		return entity.Event{}, entity.Validation("invalid_price", "price cannot be negative")
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	event := entity.Event{
		ID:          uuid.NewString(),
		CreatorID:   creator.ID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt.UTC(),
		Price:       req.Price,
		Currency:    currency,
		Capacity:    req.Capacity,
		IsPublic:    req.IsPublic,
		Status:      status,
	}
	for _, tt := range req.TicketTypes {
		if tt.Price.IsNegative() {
			return entity.Event{}, entity.Validation("invalid_price", "ticket type price cannot be negative")
		}
		event.TicketTypes = append(event.TicketTypes, entity.TicketType{
			ID:       uuid.NewString(),
			Name:     tt.Name,
			Price:    tt.Price,
			Capacity: tt.Capacity,
		})
	}

	added, err := s.repo.Add(ctx, event)
	if err != nil {
		return entity.Event{}, fmt.Errorf("adding event: %w", err)
	}

	if added.Status == entity.EventStatusPublished {
		s.invalidate(ctx, cache.FeedKey())
	}

	return added, nil
}

func (s Service) Get(ctx context.Context, eventID string) (entity.Event, error) {
	return cache.Load(ctx, s.cache, cache.EventKey(eventID), func(ctx context.Context) (entity.Event, error) {
		return s.repo.Get(ctx, eventID)
	})
}

// Feed lists published public events by start time.
func (s Service) Feed(ctx context.Context) ([]entity.Event, error) {
	return cache.Load(ctx, s.cache, cache.FeedKey(), func(ctx context.Context) ([]entity.Event, error) {
		return s.repo.ListPublished(ctx)
	})
}

func (s Service) ListByCreator(ctx context.Context, creatorID string) ([]entity.Event, error) {
	return s.repo.ListByCreator(ctx, creatorID)
}

func (s Service) UpdateStatus(ctx context.Context, creatorID, eventID string, to entity.EventStatus) (entity.Event, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return entity.Event{}, err
	}
	if event.CreatorID != creatorID {
		return entity.Event{}, entity.Forbidden("only the event creator can change its status")
	}
	if !event.Status.CanTransition(to) {
		return entity.Event{}, entity.Validation(
			"invalid_transition",
			fmt.Sprintf("event cannot move from %s to %s", event.Status, to),
		)
	}

	updated, err := s.repo.UpdateStatus(ctx, eventID, event.Status, to)
	if err != nil {
		return entity.Event{}, err
	}

	s.invalidate(ctx, cache.EventKey(eventID), cache.FeedKey())

	return updated, nil
}

func (s Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.FromContext(ctx).WithError(err).Warn("Invalidating event cache failed")
	}
}
