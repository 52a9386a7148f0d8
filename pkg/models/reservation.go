package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// ReservationSource identifies the channel a booking came through
type ReservationSource string

const (
	SourceWeb     ReservationSource = "web"
	SourceChatbot ReservationSource = "chatbot"
	SourcePhone   ReservationSource = "phone"
)

// Reservation is a booking record. Cancellation is a status transition,
// never a physical delete, so reporting and calendar cleanup keep working.
type Reservation struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	StoreID         uuid.UUID         `db:"store_id" json:"store_id"`
	SeatTypeID      *uuid.UUID        `db:"seat_type_id" json:"seat_type_id,omitempty"`
	CustomerName    string            `db:"customer_name" json:"customer_name"`
	CustomerPhone   string            `db:"customer_phone" json:"customer_phone"`
	PartySize       int               `db:"party_size" json:"party_size"`
	ReservedOn      time.Time         `db:"reserved_on" json:"reserved_on"` // calendar date
	StartTime       string            `db:"start_time" json:"start_time"`   // HH:MM
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	Status          ReservationStatus `db:"status" json:"status"`
	Source          ReservationSource `db:"source" json:"source"`
	// Reference to the synced external calendar event, if creation succeeded
	CalendarEventID *string    `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// TableName returns the database table name
func (Reservation) TableName() string {
	return "reservations"
}
