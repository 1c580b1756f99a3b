package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStats struct {
	EventID            string          `json:"eventId"`
	TicketsSold        int             `json:"ticketsSold"`
	Revenue            decimal.Decimal `json:"revenue"`
	AttendeesCheckedIn int             `json:"attendeesCheckedIn"`
	UniqueBuyers       int             `json:"uniqueBuyers"`
	AttendanceRate     float64         `json:"attendanceRate"`
}

type CreatorStats struct {
	CreatorID                 string           `json:"creatorId"`
	TotalEvents               int              `json:"totalEvents"`
	TotalTicketsSold          int              `json:"totalTicketsSold"`
	TotalRevenue              decimal.Decimal  `json:"totalRevenue"`
	TotalAttendeesCheckedIn   int              `json:"totalAttendeesCheckedIn"`
	TotalUniqueEventeesBought int              `json:"totalUniqueEventeesBought"`
	EventsBreakdown           []EventBreakdown `json:"eventsBreakdown"`
}

type EventBreakdown struct {
	EventID            string          `db:"event_id" json:"eventId"`
	Title              string          `db:"title" json:"title"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	TicketsSold        int             `db:"tickets_sold" json:"ticketsSold"`
	Revenue            decimal.Decimal `db:"revenue" json:"revenue"`
	AttendeesCheckedIn int             `db:"checked_in" json:"attendeesCheckedIn"`
}

// AttendanceRate is checkedIn/sold as a percentage rounded to two decimals.
func AttendanceRate(checkedIn, sold int) float64 {
	if sold == 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(checkedIn)).
		Div(decimal.NewFromInt(int64(sold))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return rate.InexactFloat64()
}
