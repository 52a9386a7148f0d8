package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceType identifies a metered service
type ServiceType string

const (
	ServiceBroadcast ServiceType = "broadcast"
	ServiceChatbot   ServiceType = "chatbot"
	ServiceMenuOps   ServiceType = "menu_ops"
)

// UsageLog is one counter row per (store, calendar day, service). Rows are
// upserted with increment-on-conflict and never deleted; monthly totals are
// aggregates over these rows, so a new month implicitly resets usage.
type UsageLog struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	StoreID   uuid.UUID   `db:"store_id" json:"store_id"`
	UsageDate time.Time   `db:"usage_date" json:"usage_date"`
	Service   ServiceType `db:"service" json:"service"`
	// Broadcast: messages sent. Chatbot: tokens consumed. MenuOps: operations.
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (UsageLog) TableName() string {
	return "usage_logs"
}
