package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan defines the monthly ceilings a subscription grants. NULL limits mean
// unlimited.
type Plan struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Code string    `db:"code" json:"code"`
	Name string    `db:"name" json:"name"`
	// Chatbot tokens per calendar month
	TokenLimit *int64 `db:"token_limit" json:"token_limit,omitempty"`
	// Broadcast messages per calendar month
	BroadcastLimit *int64 `db:"broadcast_limit" json:"broadcast_limit,omitempty"`
	// Menu operations per calendar month
	MenuOpsLimit *int64    `db:"menu_ops_limit" json:"menu_ops_limit,omitempty"`
	ReportTier   string    `db:"report_tier" json:"report_tier"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Plan) TableName() string {
	return "plans"
}

// LimitFor returns the ceiling for a service, nil meaning unlimited.
func (p *Plan) LimitFor(service ServiceType) *int64 {
	switch service {
	case ServiceBroadcast:
		return p.BroadcastLimit
	case ServiceChatbot:
		return p.TokenLimit
	case ServiceMenuOps:
		return p.MenuOpsLimit
	}
	return nil
}

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Subscription links a store to a plan for a validity period. Plan changes
// deactivate the old row and insert a new one; the table is an append-only
// history with at most one active row per store.
type Subscription struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	StoreID   uuid.UUID          `db:"store_id" json:"store_id"`
	PlanID    uuid.UUID          `db:"plan_id" json:"plan_id"`
	Status    SubscriptionStatus `db:"status" json:"status"`
	StartsAt  time.Time          `db:"starts_at" json:"starts_at"`
	EndsAt    *time.Time         `db:"ends_at" json:"ends_at,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (Subscription) TableName() string {
	return "subscriptions"
}
