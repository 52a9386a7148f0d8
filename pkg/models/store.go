package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/database"
)

// Store is a restaurant tenant. Stores are never hard-deleted; onboarding
// creates them active and settings updates may deactivate them.
type Store struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	OpenTime   string    `db:"open_time" json:"open_time"`   // HH:MM
	CloseTime  string    `db:"close_time" json:"close_time"` // HH:MM
	// Weekdays the store is regularly closed, 0=Sunday .. 6=Saturday
	RegularHolidays database.JSONB[[]int] `db:"regular_holidays" json:"regular_holidays"`
	// Default reservation duration applied when a request omits one
	DefaultDurationMinutes int  `db:"default_duration_minutes" json:"default_duration_minutes"`
	AutoReportEnabled      bool `db:"auto_report_enabled" json:"auto_report_enabled"`
	// Tone bucket for the chatbot persona (formal, friendly, casual)
	PersonaTone string `db:"persona_tone" json:"persona_tone"`
	// Opaque recipient identity for operator push notifications
	NotifyRecipientID *string `db:"notify_recipient_id" json:"notify_recipient_id,omitempty"`
	// External calendar the store's reservations sync to
	CalendarID *string    `db:"calendar_id" json:"calendar_id,omitempty"`
	Active     bool       `db:"active" json:"active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Store) TableName() string {
	return "stores"
}

// IsClosedOn reports whether the weekday is a regular holiday.
func (s *Store) IsClosedOn(day time.Weekday) bool {
	for _, d := range s.RegularHolidays.Data {
		if d == int(day) {
			return true
		}
	}
	return false
}
