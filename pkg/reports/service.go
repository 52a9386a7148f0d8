// Package reports generates the monthly per-store summary reports and owns
// the sweep that produces them. The scheduled trigger and the manual API
// trigger both call Sweep, so there is exactly one code path.
package reports

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/metrics"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Service generates and lists monthly reports
type Service struct {
	stores       repositories.StoreRepo
	reservations repositories.ReservationRepo
	usage        repositories.UsageRepo
	reports      repositories.ReportRepo
	runs         repositories.ReportRunRepo
	logger       ectologger.Logger
	// Fixed pause between stores to avoid bursting downstream APIs
	storeDelay time.Duration
}

// NewService creates a new report service
func NewService(stores repositories.StoreRepo, reservations repositories.ReservationRepo, usage repositories.UsageRepo, reports repositories.ReportRepo, runs repositories.ReportRunRepo, storeDelay time.Duration, logger ectologger.Logger) *Service {
	return &Service{
		stores:       stores,
		reservations: reservations,
		usage:        usage,
		reports:      reports,
		runs:         runs,
		storeDelay:   storeDelay,
		logger:       logger,
	}
}

// SweepResult aggregates per-store outcomes of one sweep
type SweepResult struct {
	Month     time.Time `json:"month"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// Sweep generates reports for every active store for the given month. One
// store failing never stops the rest; the aggregate outcome is persisted as
// an audit row.
func (s *Service) Sweep(ctx context.Context, month time.Time, trigger models.SweepTrigger) (*SweepResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reports.Service.Sweep")
	defer span.End()

	sweepStart := time.Now()
	monthStart, _ := repositories.MonthBounds(month)
	result := &SweepResult{Month: monthStart}

	stores, err := s.stores.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"month":   repositories.DateString(monthStart),
		"trigger": trigger,
		"stores":  len(stores),
	}).Info("starting report sweep")

	for i, store := range stores {
		if i > 0 && s.storeDelay > 0 {
			time.Sleep(s.storeDelay)
		}

		if !store.AutoReportEnabled {
			result.Skipped++
			metrics.ReportSweepStoresTotal.WithLabelValues("skipped").Inc()
			continue
		}

		created, err := s.Generate(ctx, store.ID, monthStart, true)
		if err != nil {
			result.Failed++
			metrics.ReportSweepStoresTotal.WithLabelValues("failed").Inc()
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"store_id": store.ID,
			}).Error("report generation failed for store")
			continue
		}
		if !created {
			result.Skipped++
			metrics.ReportSweepStoresTotal.WithLabelValues("skipped").Inc()
			continue
		}

		result.Succeeded++
		metrics.ReportSweepStoresTotal.WithLabelValues("succeeded").Inc()
	}

	metrics.ReportSweepDuration.Observe(time.Since(sweepStart).Seconds())

	run := &models.ReportRun{
		Month:      monthStart,
		Trigger:    trigger,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		StartedAt:  sweepStart.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to persist sweep audit row")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	}).Info("report sweep finished")

	return result, nil
}

// Generate builds and persists one store's report for the month. Returns
// false when a report already exists, which makes repeat sweeps no-ops.
func (s *Service) Generate(ctx context.Context, storeID uuid.UUID, month time.Time, auto bool) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "reports.Service.Generate")
	defer span.End()

	monthStart, _ := repositories.MonthBounds(month)

	existing, err := s.reports.GetByStoreMonth(ctx, storeID, monthStart)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	stats, err := s.reservations.MonthlyStats(ctx, storeID, monthStart)
	if err != nil {
		return false, err
	}

	totals, err := s.usage.MonthTotals(ctx, storeID, monthStart)
	if err != nil {
		return false, err
	}
	stats.UsageByService = totals

	report := &models.Report{
		StoreID:       storeID,
		Month:         monthStart,
		Status:        models.ReportGenerated,
		AutoGenerated: auto,
		Content:       database.JSONB[models.ReportContent]{Data: *stats},
	}

	// The unique (store, month) index makes the insert the authority on
	// idempotence even when two sweeps race past the existence check.
	return s.reports.Insert(ctx, report)
}

// List returns the store's reports, newest first
func (s *Service) List(ctx context.Context, storeID uuid.UUID) ([]models.Report, error) {
	return s.reports.ListByStore(ctx, storeID)
}

// MarkDelivered promotes a report to delivered
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	ok, err := s.reports.MarkDelivered(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repositories.NotFound("report %s not found", id)
	}
	return nil
}
