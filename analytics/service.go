package analytics

import (
	"context"
	"fmt"
	"ticketing/cache"
	"ticketing/entity"
)

const breakdownLimit = 10

type Repository interface {
	EventStats(ctx context.Context, eventID string) (entity.EventStats, error)
	CreatorStats(ctx context.Context, creatorID string, breakdownLimit int) (entity.CreatorStats, error)
}

type EventReader interface {
	Get(ctx context.Context, eventID string) (entity.Event, error)
}

type Service struct {
	repo   Repository
	events EventReader
	cache  cache.Cache
}

func NewService(repo Repository, events EventReader, c cache.Cache) Service {
	return Service{
		repo:   repo,
		events: events,
		cache:  c,
	}
}

// EventStats is visible to the event's creator and to admins.
func (s Service) EventStats(ctx context.Context, requesterID string, admin bool, eventID string) (entity.EventStats, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return entity.EventStats{}, err
	}
	if event.CreatorID != requesterID && !admin {
		return entity.EventStats{}, entity.Forbidden("only the event creator can view its analytics")
	}

	return cache.Load(ctx, s.cache, cache.EventStatsKey(eventID), func(ctx context.Context) (entity.EventStats, error) {
		return s.repo.EventStats(ctx, eventID)
	})
}

func (s Service) CreatorStats(ctx context.Context, creatorID string) (entity.CreatorStats, error) {
	return cache.Load(ctx, s.cache, cache.CreatorStatsKey(creatorID), func(ctx context.Context) (entity.CreatorStats, error) {
		return s.repo.CreatorStats(ctx, creatorID, breakdownLimit)
	})
}

// Invalidate drops the cached figures that a ticket change on eventID affects.
func (s Service) Invalidate(ctx context.Context, eventID, creatorID string) error {
	if err := s.cache.Delete(ctx, cache.EventStatsKey(eventID), cache.CreatorStatsKey(creatorID)); err != nil {
		return fmt.Errorf("invalidating analytics: %w", err)
	}

	return nil
}
