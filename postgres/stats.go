package postgres

import (
	"context"
	"fmt"
	"ticketing/entity"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type StatsRepo struct {
	db *sqlx.DB
}

func NewStatsRepo(db *sqlx.DB) StatsRepo {
	return StatsRepo{
		db: db,
	}
}

type ticketTotals struct {
	TicketsSold  int             `db:"tickets_sold"`
	Revenue      decimal.Decimal `db:"revenue"`
	CheckedIn    int             `db:"checked_in"`
	UniqueBuyers int             `db:"unique_buyers"`
}

// Refunded tickets are left out of every total except check-ins.
const ticketTotalsColumns = `
	COUNT(t.id) FILTER (WHERE t.status <> 'REFUNDED') AS tickets_sold,
	COALESCE(SUM(t.price) FILTER (WHERE t.status <> 'REFUNDED'), 0) AS revenue,
	COUNT(t.id) FILTER (WHERE t.status = 'USED') AS checked_in,
	COUNT(DISTINCT t.user_id) FILTER (WHERE t.status <> 'REFUNDED') AS unique_buyers`

func (r StatsRepo) EventStats(ctx context.Context, eventID string) (entity.EventStats, error) {
	var totals ticketTotals
	err := r.db.GetContext(ctx, &totals, `SELECT`+ticketTotalsColumns+`
		FROM tickets t WHERE t.event_id = $1`, eventID)
	if err != nil {
		return entity.EventStats{}, fmt.Errorf("aggregating event tickets: %w", err)
	}

	return entity.EventStats{
		EventID:            eventID,
		TicketsSold:        totals.TicketsSold,
		Revenue:            totals.Revenue,
		AttendeesCheckedIn: totals.CheckedIn,
		UniqueBuyers:       totals.UniqueBuyers,
		AttendanceRate:     entity.AttendanceRate(totals.CheckedIn, totals.TicketsSold),
	}, nil
}

// CreatorStats totals every event of the creator and breaks down the
// breakdownLimit most recently created ones.
func (r StatsRepo) CreatorStats(ctx context.Context, creatorID string, breakdownLimit int) (entity.CreatorStats, error) {
	var totals ticketTotals
	err := r.db.GetContext(ctx, &totals, `SELECT`+ticketTotalsColumns+`
		FROM tickets t JOIN events e ON e.id = t.event_id
		WHERE e.creator_id = $1`, creatorID)
	if err != nil {
		return entity.CreatorStats{}, fmt.Errorf("aggregating creator tickets: %w", err)
	}

	var totalEvents int
	err = r.db.GetContext(ctx, &totalEvents, `SELECT COUNT(*) FROM events WHERE creator_id = $1`, creatorID)
	if err != nil {
		return entity.CreatorStats{}, fmt.Errorf("counting creator events: %w", err)
	}

	breakdown := []entity.EventBreakdown{}
	err = r.db.SelectContext(ctx, &breakdown, `SELECT e.id AS event_id, e.title, e.created_at,
			COUNT(t.id) FILTER (WHERE t.status <> 'REFUNDED') AS tickets_sold,
			COALESCE(SUM(t.price) FILTER (WHERE t.status <> 'REFUNDED'), 0) AS revenue,
			COUNT(t.id) FILTER (WHERE t.status = 'USED') AS checked_in
		FROM events e LEFT JOIN tickets t ON t.event_id = e.id
		WHERE e.creator_id = $1
		GROUP BY e.id
		ORDER BY e.created_at DESC
		LIMIT $2`, creatorID, breakdownLimit)
	if err != nil {
		return entity.CreatorStats{}, fmt.Errorf("selecting event breakdown: %w", err)
	}

	return entity.CreatorStats{
		CreatorID:                 creatorID,
		TotalEvents:               totalEvents,
		TotalTicketsSold:          totals.TicketsSold,
		TotalRevenue:              totals.Revenue,
		TotalAttendeesCheckedIn:   totals.CheckedIn,
		TotalUniqueEventeesBought: totals.UniqueBuyers,
		EventsBreakdown:           breakdown,
	}, nil
}
