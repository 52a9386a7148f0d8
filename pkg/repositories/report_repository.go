package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// ReportRepo defines monthly report persistence
type ReportRepo interface {
	GetByStoreMonth(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.Report, error)
	Insert(ctx context.Context, report *models.Report) (bool, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Report, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReportRepository implements ReportRepo
type ReportRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db database.DB, logger ectologger.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

const reportColumns = "id, store_id, month, status, auto_generated, content, created_at, updated_at"

// GetByStoreMonth returns the store's report for the month, or nil when none
// exists
func (r *ReportRepository) GetByStoreMonth(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.Report, error) {
	ctx, span := tracing.StartSpan(ctx, "ReportRepository.GetByStoreMonth")
	defer span.End()

	start, _ := MonthBounds(month)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reportColumns)
	sb.From(models.Report{}.TableName())
	sb.Where(sb.Equal("store_id", storeID), sb.Equal("month", DateString(start)))

	query, args := sb.Build()

	report := models.Report{}
	err := r.db.GetContext(ctx, &report, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get report")
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// Insert persists a new report. Returns false without error when a report for
// the same store and month already exists, so concurrent sweeps stay
// idempotent.
func (r *ReportRepository) Insert(ctx context.Context, report *models.Report) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReportRepository.Insert")
	defer span.End()

	now := time.Now().UTC()
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = now
	report.UpdatedAt = now

	ib := database.NewInsertBuilder()
	ib.InsertInto(models.Report{}.TableName())
	ib.Cols("id", "store_id", "month", "status", "auto_generated", "content", "created_at", "updated_at")
	ib.Values(report.ID, report.StoreID, DateString(report.Month), report.Status, report.AutoGenerated, report.Content, report.CreatedAt, report.UpdatedAt)
	ib.OnConflictDoNothing()

	query, args := ib.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert report")
		return false, fmt.Errorf("failed to insert report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	if rows == 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"store_id": report.StoreID,
			"month":    DateString(report.Month),
		}).Debug("report already exists, skipping insert")
		return false, nil
	}

	return true, nil
}

// ListByStore returns the store's reports, newest month first
func (r *ReportRepository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Report, error) {
	ctx, span := tracing.StartSpan(ctx, "ReportRepository.ListByStore")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reportColumns)
	sb.From(models.Report{}.TableName())
	sb.Where(sb.Equal("store_id", storeID))
	sb.OrderBy("month").Desc()

	query, args := sb.Build()

	reports := []models.Report{}
	err := r.db.SelectContext(ctx, &reports, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list reports")
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, nil
}

// MarkDelivered promotes a generated report to delivered. Returns false when
// the report does not exist.
func (r *ReportRepository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReportRepository.MarkDelivered")
	defer span.End()

	query := `
		UPDATE reports
		SET status = 'delivered', updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to mark report delivered")
		return false, fmt.Errorf("failed to mark report delivered: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}

	return rows > 0, nil
}
