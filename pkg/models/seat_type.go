package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatType is a bookable category of seating within one store.
type SeatType struct {
	ID      uuid.UUID `db:"id" json:"id"`
	StoreID uuid.UUID `db:"store_id" json:"store_id"`
	Name    string    `db:"name" json:"name"`
	// Number of physical seats, informational only
	Capacity  int `db:"capacity" json:"capacity"`
	MinPeople int `db:"min_people" json:"min_people"`
	// NULL means unbounded above MinPeople
	MaxPeople    *int      `db:"max_people" json:"max_people,omitempty"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (SeatType) TableName() string {
	return "seat_types"
}

// Fits reports whether the party size is within [MinPeople, MaxPeople].
func (st *SeatType) Fits(partySize int) bool {
	if partySize < st.MinPeople {
		return false
	}
	if st.MaxPeople != nil && partySize > *st.MaxPeople {
		return false
	}
	return true
}
