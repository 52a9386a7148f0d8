package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// UsageRepo defines usage counter persistence
type UsageRepo interface {
	Increment(ctx context.Context, storeID uuid.UUID, service models.ServiceType, amount int64) error
	MonthToDate(ctx context.Context, storeID uuid.UUID, service models.ServiceType, month time.Time) (int64, error)
	MonthTotals(ctx context.Context, storeID uuid.UUID, month time.Time) (map[string]int64, error)
}

// UsageRepository implements UsageRepo
type UsageRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db database.DB, logger ectologger.Logger) *UsageRepository {
	return &UsageRepository{db: db, logger: logger}
}

// Increment upserts today's counter row for (store, service). The
// increment-on-conflict form makes concurrent increments additive, so no
// update is ever lost without any external locking.
func (r *UsageRepository) Increment(ctx context.Context, storeID uuid.UUID, service models.ServiceType, amount int64) error {
	ctx, span := tracing.StartSpan(ctx, "UsageRepository.Increment")
	defer span.End()

	if amount <= 0 {
		return nil
	}

	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto(models.UsageLog{}.TableName())
	ib.Cols("id", "store_id", "usage_date", "service", "amount", "created_at", "updated_at")
	ib.Values(uuid.New(), storeID, DateString(now), service, amount, now, now)
	ib.OnConflictUpdate(
		[]string{"store_id", "usage_date", "service"},
		"amount = usage_logs.amount + EXCLUDED.amount",
		"updated_at = EXCLUDED.updated_at",
	)

	query, args := ib.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to increment usage counter")
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"store_id": storeID,
		"service":  service,
		"amount":   amount,
	}).Debug("recorded usage")

	return nil
}

// MonthToDate sums a service's counters for the month containing the given
// time
func (r *UsageRepository) MonthToDate(ctx context.Context, storeID uuid.UUID, service models.ServiceType, month time.Time) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "UsageRepository.MonthToDate")
	defer span.End()

	start, end := MonthBounds(month)

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM usage_logs
		WHERE store_id = $1
		AND service = $2
		AND usage_date >= $3
		AND usage_date < $4
	`

	var total int64
	err := r.db.GetContext(ctx, &total, query, storeID, service, DateString(start), DateString(end))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to sum monthly usage")
		return 0, fmt.Errorf("failed to sum monthly usage: %w", err)
	}

	return total, nil
}

// MonthTotals returns per-service totals for the month, for usage reads and
// reports
func (r *UsageRepository) MonthTotals(ctx context.Context, storeID uuid.UUID, month time.Time) (map[string]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "UsageRepository.MonthTotals")
	defer span.End()

	start, end := MonthBounds(month)

	query := `
		SELECT service, COALESCE(SUM(amount), 0) AS total
		FROM usage_logs
		WHERE store_id = $1
		AND usage_date >= $2
		AND usage_date < $3
		GROUP BY service
	`

	rows := []struct {
		Service string `db:"service"`
		Total   int64  `db:"total"`
	}{}
	err := r.db.SelectContext(ctx, &rows, query, storeID, DateString(start), DateString(end))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load monthly usage totals")
		return nil, fmt.Errorf("failed to load monthly usage totals: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.Service] = row.Total
	}

	return totals, nil
}
