package repositories

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// ReportRunRepo records sweep executions
type ReportRunRepo interface {
	Insert(ctx context.Context, run *models.ReportRun) error
	ListRecent(ctx context.Context, limit int) ([]models.ReportRun, error)
}

// ReportRunRepository implements ReportRunRepo
type ReportRunRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewReportRunRepository creates a new report run repository
func NewReportRunRepository(db database.DB, logger ectologger.Logger) *ReportRunRepository {
	return &ReportRunRepository{db: db, logger: logger}
}

// Insert persists one sweep audit row
func (r *ReportRunRepository) Insert(ctx context.Context, run *models.ReportRun) error {
	ctx, span := tracing.StartSpan(ctx, "ReportRunRepository.Insert")
	defer span.End()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(models.ReportRun{}.TableName())
	ib.Cols("id", "month", "trigger", "succeeded", "failed", "skipped", "started_at", "finished_at")
	ib.Values(run.ID, DateString(run.Month), run.Trigger, run.Succeeded, run.Failed, run.Skipped, run.StartedAt, run.FinishedAt)

	query, args := ib.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert report run")
		return fmt.Errorf("failed to insert report run: %w", err)
	}

	return nil
}

// ListRecent returns the latest sweep runs, newest first
func (r *ReportRunRepository) ListRecent(ctx context.Context, limit int) ([]models.ReportRun, error) {
	ctx, span := tracing.StartSpan(ctx, "ReportRunRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "month", "trigger", "succeeded", "failed", "skipped", "started_at", "finished_at")
	sb.From(models.ReportRun{}.TableName())
	sb.OrderBy("started_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()

	runs := []models.ReportRun{}
	err := r.db.SelectContext(ctx, &runs, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list report runs")
		return nil, fmt.Errorf("failed to list report runs: %w", err)
	}

	return runs, nil
}
