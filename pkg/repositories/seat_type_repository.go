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

const seatTypeColumns = "id, store_id, name, capacity, min_people, max_people, display_order, active, created_at, updated_at"

// SeatTypeRepo defines seat type catalog lookups
type SeatTypeRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SeatType, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.SeatType, error)
}

// SeatTypeRepository implements SeatTypeRepo
type SeatTypeRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewSeatTypeRepository creates a new seat type repository
func NewSeatTypeRepository(db database.DB, logger ectologger.Logger) *SeatTypeRepository {
	return &SeatTypeRepository{db: db, logger: logger}
}

// GetByID gets a seat type by ID
func (r *SeatTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SeatType, error) {
	ctx, span := tracing.StartSpan(ctx, "SeatTypeRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(seatTypeColumns)
	sb.From(models.SeatType{}.TableName())
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("active", true),
	)

	query, args := sb.Build()

	var st models.SeatType
	err := r.db.GetContext(ctx, &st, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get seat type")
		return nil, fmt.Errorf("failed to get seat type: %w", err)
	}

	return &st, nil
}

// ListByStore returns a store's active seat types in display order
func (r *SeatTypeRepository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.SeatType, error) {
	ctx, span := tracing.StartSpan(ctx, "SeatTypeRepository.ListByStore")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(seatTypeColumns)
	sb.From(models.SeatType{}.TableName())
	sb.Where(
		sb.Equal("store_id", storeID),
		sb.Equal("active", true),
	)
	sb.OrderBy("display_order ASC", "name ASC")

	query, args := sb.Build()

	var items []models.SeatType
	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list seat types")
		return nil, fmt.Errorf("failed to list seat types: %w", err)
	}

	return items, nil
}
