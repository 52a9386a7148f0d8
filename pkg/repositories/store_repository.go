package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

const storeColumns = "id, name, open_time, close_time, regular_holidays, default_duration_minutes, auto_report_enabled, persona_tone, notify_recipient_id, calendar_id, active, created_at, updated_at"

// StoreRepo is the read-only store directory lookup
type StoreRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListActive(ctx context.Context) ([]models.Store, error)
}

// StoreRepository implements StoreRepo
type StoreRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(db database.DB, logger ectologger.Logger) *StoreRepository {
	return &StoreRepository{db: db, logger: logger}
}

// GetByID gets a store by ID
func (r *StoreRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "StoreRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(storeColumns)
	sb.From(models.Store{}.TableName())
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var store models.Store
	err := r.db.GetContext(ctx, &store, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get store")
		return nil, fmt.Errorf("failed to get store: %w", err)
	}

	return &store, nil
}

// ListActive returns all active stores ordered by name
func (r *StoreRepository) ListActive(ctx context.Context) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "StoreRepository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(storeColumns)
	sb.From(models.Store{}.TableName())
	sb.Where(sb.Equal("active", true))
	sb.OrderBy("name ASC")

	query, args := sb.Build()

	var stores []models.Store
	err := r.db.SelectContext(ctx, &stores, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active stores")
		return nil, fmt.Errorf("failed to list active stores: %w", err)
	}

	return stores, nil
}
