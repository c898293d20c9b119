package models

import "time"

// Reservation is a finalized booking of a room for a time interval.
type Reservation struct {
	ID                    uint       `json:"id" gorm:"primaryKey"`
	CustomerID            uint       `json:"customer_id" gorm:"index;not null"`
	RoomID                uint       `json:"room_id" gorm:"index:idx_reservation_room_date;not null"`
	Room                  *Room      `json:"room,omitempty" gorm:"foreignKey:RoomID"`
	Date                  time.Time  `json:"date" gorm:"type:date;index:idx_reservation_room_date;not null"`
	StartAt               time.Time  `json:"start_at" gorm:"index;not null"`
	EndAt                 time.Time  `json:"end_at" gorm:"not null"`
	Persons               int        `json:"persons" gorm:"default:2"`
	TotalPrice            float64    `json:"total_price"`
	Status                string     `json:"status" gorm:"size:16;index;not null"`
	ArrivedAt             *time.Time `json:"arrived_at"`
	ConfirmedByStaffPhone string     `json:"confirmed_by_staff_phone" gorm:"size:32"`
	Notes                 string     `json:"notes" gorm:"type:text"`
	Channel               Channel    `json:"channel" gorm:"size:16"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Reservation statuses
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCheckedIn = "checked_in"
	ReservationCompleted = "completed"
	ReservationCancelled = "cancelled"
	ReservationNoShow    = "no_show"
)

// HoldingStatuses occupy a room for availability purposes.
var HoldingStatuses = []string{ReservationPending, ReservationConfirmed, ReservationCheckedIn}

// DefaultPersons is used when the dialogue does not ask for a head count.
const DefaultPersons = 2

// Holds reports whether the reservation blocks its room interval.
func (r *Reservation) Holds() bool {
	switch r.Status {
	case ReservationPending, ReservationConfirmed, ReservationCheckedIn:
		return true
	}
	return false
}

// Overlaps reports whether [start, end) intersects the reservation interval.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartAt.Before(end) && r.EndAt.After(start)
}

// DurationHours returns the booked length in whole hours.
func (r *Reservation) DurationHours() int {
	return int(r.EndAt.Sub(r.StartAt).Hours())
}
