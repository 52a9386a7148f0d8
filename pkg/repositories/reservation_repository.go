package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

const reservationColumns = "id, store_id, seat_type_id, customer_name, customer_phone, party_size, reserved_on, start_time, duration_minutes, notes, status, source, calendar_event_id, created_at, updated_at, cancelled_at"

// ReservationRepo defines reservation ledger persistence. Insert and
// ListConfirmed join a transaction carried on the context, so the ledger can
// run its lock / re-check / insert sequence atomically.
type ReservationRepo interface {
	Insert(ctx context.Context, res *models.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListConfirmed(ctx context.Context, seatTypeID uuid.UUID, date time.Time) ([]models.Reservation, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, date *time.Time) ([]models.Reservation, error)
	LockSeatDate(ctx context.Context, seatTypeID uuid.UUID, date time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error
	MonthlyStats(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.ReportContent, error)
}

// ReservationRepository implements ReservationRepo
type ReservationRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db database.DB, logger ectologger.Logger) *ReservationRepository {
	return &ReservationRepository{db: db, logger: logger}
}

// LockSeatDate takes the per-(seat type, date) advisory lock that serializes
// concurrent check-then-insert sequences. Only meaningful inside a
// transaction; the lock releases on commit or rollback.
func (r *ReservationRepository) LockSeatDate(ctx context.Context, seatTypeID uuid.UUID, date time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.LockSeatDate")
	defer span.End()

	q := database.QueryerFromContext(ctx, r.db)
	key := fmt.Sprintf("seat:%s:%s", seatTypeID, DateString(date))

	_, err := q.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to acquire seat date lock")
		return fmt.Errorf("failed to acquire seat date lock: %w", err)
	}
	return nil
}

// Insert writes a new reservation row
func (r *ReservationRepository) Insert(ctx context.Context, res *models.Reservation) error {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.Insert")
	defer span.End()

	now := time.Now().UTC()
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.CreatedAt = now
	res.UpdatedAt = now

	ib := database.NewInsertBuilder()
	ib.InsertInto(models.Reservation{}.TableName())
	ib.Cols("id", "store_id", "seat_type_id", "customer_name", "customer_phone", "party_size", "reserved_on", "start_time", "duration_minutes", "notes", "status", "source", "created_at", "updated_at")
	ib.Values(res.ID, res.StoreID, res.SeatTypeID, res.CustomerName, res.CustomerPhone, res.PartySize, DateString(res.ReservedOn), res.StartTime, res.DurationMinutes, res.Notes, res.Status, res.Source, res.CreatedAt, res.UpdatedAt)

	query, args := ib.Build()

	q := database.QueryerFromContext(ctx, r.db)
	_, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert reservation")
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":         res.ID,
		"store_id":   res.StoreID,
		"party_size": res.PartySize,
	}).Info("created reservation")

	return nil
}

// GetByID gets a reservation by ID
func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reservationColumns)
	sb.From(models.Reservation{}.TableName())
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	q := database.QueryerFromContext(ctx, r.db)
	var res models.Reservation
	err := q.GetContext(ctx, &res, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get reservation")
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return &res, nil
}

// ListConfirmed returns the confirmed reservations for a seat type on a date.
// Inside the ledger transaction, under the seat-date lock, this is the
// authoritative occupancy read.
func (r *ReservationRepository) ListConfirmed(ctx context.Context, seatTypeID uuid.UUID, date time.Time) ([]models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.ListConfirmed")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reservationColumns)
	sb.From(models.Reservation{}.TableName())
	sb.Where(
		sb.Equal("seat_type_id", seatTypeID),
		sb.Equal("reserved_on", DateString(date)),
		sb.Equal("status", models.ReservationConfirmed),
	)
	sb.OrderBy("start_time ASC")

	query, args := sb.Build()

	q := database.QueryerFromContext(ctx, r.db)
	var items []models.Reservation
	err := q.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list confirmed reservations")
		return nil, fmt.Errorf("failed to list confirmed reservations: %w", err)
	}

	return items, nil
}

// ListByStore returns a store's reservations, optionally filtered to a date
func (r *ReservationRepository) ListByStore(ctx context.Context, storeID uuid.UUID, date *time.Time) ([]models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.ListByStore")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reservationColumns)
	sb.From(models.Reservation{}.TableName())
	conds := []string{sb.Equal("store_id", storeID)}
	if date != nil {
		conds = append(conds, sb.Equal("reserved_on", DateString(*date)))
	}
	sb.Where(conds...)
	sb.OrderBy("reserved_on ASC", "start_time ASC")

	query, args := sb.Build()

	var items []models.Reservation
	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list reservations")
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	return items, nil
}

// MarkCancelled transitions a confirmed reservation to cancelled. Returns
// false when no confirmed row matched (unknown id or already cancelled).
func (r *ReservationRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.MarkCancelled")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(models.Reservation{}.TableName())
	ub.Set(
		ub.Assign("status", models.ReservationCancelled),
		ub.Assign("cancelled_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", models.ReservationConfirmed),
	)

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to cancel reservation")
		return false, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("cancelled reservation")
	}

	return rowsAffected > 0, nil
}

// SetCalendarEventID persists the external calendar event reference after a
// successful sync
func (r *ReservationRepository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.SetCalendarEventID")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(models.Reservation{}.TableName())
	ub.Set(
		ub.Assign("calendar_event_id", eventID),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to set calendar event id")
		return fmt.Errorf("failed to set calendar event id: %w", err)
	}

	return nil
}

// MonthlyStats aggregates a store's reservations for the month containing
// the given time
func (r *ReservationRepository) MonthlyStats(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.ReportContent, error) {
	ctx, span := tracing.StartSpan(ctx, "ReservationRepository.MonthlyStats")
	defer span.End()

	start, end := MonthBounds(month)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed') AS reservation_count,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_count,
			COALESCE(SUM(party_size) FILTER (WHERE status = 'confirmed'), 0) AS total_guests
		FROM reservations
		WHERE store_id = $1
		AND reserved_on >= $2
		AND reserved_on < $3
	`

	var stats struct {
		ReservationCount int `db:"reservation_count"`
		CancelledCount   int `db:"cancelled_count"`
		TotalGuests      int `db:"total_guests"`
	}
	err := r.db.GetContext(ctx, &stats, query, storeID, DateString(start), DateString(end))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to aggregate monthly stats")
		return nil, fmt.Errorf("failed to aggregate monthly stats: %w", err)
	}

	return &models.ReportContent{
		ReservationCount: stats.ReservationCount,
		CancelledCount:   stats.CancelledCount,
		TotalGuests:      stats.TotalGuests,
	}, nil
}
