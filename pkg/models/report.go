package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/database"
)

// ReportStatus distinguishes generated reports from ones a human promoted
type ReportStatus string

const (
	ReportGenerated ReportStatus = "generated"
	ReportDelivered ReportStatus = "delivered"
)

// ReportContent is the aggregated monthly summary persisted as jsonb.
type ReportContent struct {
	ReservationCount int              `json:"reservation_count"`
	CancelledCount   int              `json:"cancelled_count"`
	TotalGuests      int              `json:"total_guests"`
	UsageByService   map[string]int64 `json:"usage_by_service"`
}

// Report is one generated monthly report per store. Uniqueness on
// (store_id, month) makes the sweep idempotent.
type Report struct {
	ID            uuid.UUID                     `db:"id" json:"id"`
	StoreID       uuid.UUID                     `db:"store_id" json:"store_id"`
	Month         time.Time                     `db:"month" json:"month"` // first day of month
	Status        ReportStatus                  `db:"status" json:"status"`
	AutoGenerated bool                          `db:"auto_generated" json:"auto_generated"`
	Content       database.JSONB[ReportContent] `db:"content" json:"content"`
	CreatedAt     time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                     `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Report) TableName() string {
	return "reports"
}

// SweepTrigger records how a sweep was started
type SweepTrigger string

const (
	TriggerScheduled SweepTrigger = "scheduled"
	TriggerManual    SweepTrigger = "manual"
)

// ReportRun is the audit row for one sweep execution.
type ReportRun struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	Month      time.Time    `db:"month" json:"month"`
	Trigger    SweepTrigger `db:"trigger" json:"trigger"`
	Succeeded  int          `db:"succeeded" json:"succeeded"`
	Failed     int          `db:"failed" json:"failed"`
	Skipped    int          `db:"skipped" json:"skipped"`
	StartedAt  time.Time    `db:"started_at" json:"started_at"`
	FinishedAt time.Time    `db:"finished_at" json:"finished_at"`
}

// TableName returns the database table name
func (ReportRun) TableName() string {
	return "report_runs"
}
