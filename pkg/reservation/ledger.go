// Package reservation owns the transactional reservation ledger. The
// availability check outside a transaction is advisory; the ledger repeats
// it under an advisory lock inside the insert transaction, which is the sole
// serialization point for concurrent bookings.
package reservation

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/availability"
	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/metrics"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Hook receives reservation lifecycle notifications after the transaction
// has committed. The ledger knows nothing about what the hooks do.
type Hook interface {
	ReservationConfirmed(ctx context.Context, store *models.Store, seatType *models.SeatType, res *models.Reservation)
	ReservationCancelled(ctx context.Context, store *models.Store, res *models.Reservation)
}

// CreateInput is a booking request
type CreateInput struct {
	StoreID         uuid.UUID
	SeatTypeID      *uuid.UUID
	CustomerName    string
	CustomerPhone   string
	PartySize       int
	Date            time.Time
	StartTime       string
	DurationMinutes int // 0 means use the store default
	Notes           *string
	Source          models.ReservationSource
}

// CreateResult carries the committed reservation plus enough context for the
// caller to format a confirmation without a second read
type CreateResult struct {
	Reservation *models.Reservation `json:"reservation"`
	SeatType    *models.SeatType    `json:"seat_type"`
	Store       *models.Store       `json:"store"`
}

// TxBeginner is the slice of the data-access handle the ledger needs: just
// the ability to open a context-scoped transaction
type TxBeginner interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// Ledger performs transactional reservation writes
type Ledger struct {
	db           TxBeginner
	engine       *availability.Engine
	reservations repositories.ReservationRepo
	stores       repositories.StoreRepo
	seatTypes    repositories.SeatTypeRepo
	hooks        []Hook
	logger       ectologger.Logger
}

// NewLedger creates a new reservation ledger
func NewLedger(db TxBeginner, engine *availability.Engine, reservations repositories.ReservationRepo, stores repositories.StoreRepo, seatTypes repositories.SeatTypeRepo, logger ectologger.Logger, hooks ...Hook) *Ledger {
	return &Ledger{
		db:           db,
		engine:       engine,
		reservations: reservations,
		stores:       stores,
		seatTypes:    seatTypes,
		hooks:        hooks,
		logger:       logger,
	}
}

// AdmissionError converts an availability rejection into an HTTP error
// carrying the machine-readable reason code
func AdmissionError(result *availability.Result) error {
	status := http.StatusBadRequest
	if result.Reason == availability.ReasonSeatUnavailable {
		status = http.StatusConflict
	}
	return httperror.NewHTTPError(status, result.Message).AddMetaValue("code", result.Reason)
}

// Create books a reservation. The admission sequence runs inside the insert
// transaction under an advisory lock on (seat type, date); on an unexpected
// integrity failure the whole sequence is retried once before giving up.
func (l *Ledger) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Ledger.Create")
	defer span.End()

	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	result, err := l.createOnce(ctx, input)
	if err != nil && !httperror.IsHTTPError(err) {
		l.logger.WithContext(ctx).WithError(err).Warn("reservation insert failed, retrying once")
		result, err = l.createOnce(ctx, input)
	}
	if err != nil {
		if httperror.IsHTTPError(err) {
			return nil, err
		}
		metrics.ReservationsTotal.WithLabelValues("error").Inc()
		l.logger.WithContext(ctx).WithError(err).Error("reservation insert failed after retry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "unable to complete the booking, please call the store")
	}

	metrics.ReservationsTotal.WithLabelValues("confirmed").Inc()

	for _, hook := range l.hooks {
		hook.ReservationConfirmed(ctx, result.Store, result.SeatType, result.Reservation)
	}

	return result, nil
}

func (l *Ledger) createOnce(ctx context.Context, input CreateInput) (*CreateResult, error) {
	txCtx, tx, err := l.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Resolve the seat type before locking so auto-selection and the lock
	// key agree.
	check, err := l.engine.Check(txCtx, availability.CheckRequest{
		StoreID:         input.StoreID,
		SeatTypeID:      input.SeatTypeID,
		Date:            input.Date,
		StartTime:       input.StartTime,
		PartySize:       input.PartySize,
		DurationMinutes: input.DurationMinutes,
	})
	if err != nil {
		return nil, err
	}
	if !check.Available {
		metrics.AdmissionRejectionsTotal.WithLabelValues(check.Reason).Inc()
		return nil, AdmissionError(check)
	}

	seatType := check.SeatType

	// Serialize concurrent bookings for the same seat type and date, then
	// repeat the overlap check now that no competing insert can slip in.
	if err = l.reservations.LockSeatDate(txCtx, seatType.ID, input.Date); err != nil {
		return nil, err
	}

	check, err = l.engine.Check(txCtx, availability.CheckRequest{
		StoreID:         input.StoreID,
		SeatTypeID:      &seatType.ID,
		Date:            input.Date,
		StartTime:       input.StartTime,
		PartySize:       input.PartySize,
		DurationMinutes: input.DurationMinutes,
	})
	if err != nil {
		return nil, err
	}
	if !check.Available {
		metrics.AdmissionRejectionsTotal.WithLabelValues(check.Reason).Inc()
		return nil, AdmissionError(check)
	}

	// Load everything the response needs before the commit; once the commit
	// goes through the booking must be reported as confirmed, so no fallible
	// step may follow it.
	store, err := l.stores.GetByID(txCtx, input.StoreID)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		StoreID:         input.StoreID,
		SeatTypeID:      &seatType.ID,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		PartySize:       input.PartySize,
		ReservedOn:      input.Date,
		StartTime:       input.StartTime,
		DurationMinutes: check.DurationMinutes,
		Notes:           input.Notes,
		Status:          models.ReservationConfirmed,
		Source:          input.Source,
	}

	if err = l.reservations.Insert(txCtx, res); err != nil {
		return nil, err
	}

	if err = tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &CreateResult{Reservation: res, SeatType: seatType, Store: store}, nil
}

// Cancel transitions a reservation to cancelled. Cancelling an already
// cancelled reservation is a no-op success.
func (l *Ledger) Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "Ledger.Cancel")
	defer span.End()

	res, err := l.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, repositories.NotFound("reservation %s not found", id)
	}

	if res.Status == models.ReservationCancelled {
		return res, nil
	}

	transitioned, err := l.reservations.MarkCancelled(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Lost the race to another cancel; same terminal state either way.
		return l.reservations.GetByID(ctx, id)
	}

	metrics.ReservationsTotal.WithLabelValues("cancelled").Inc()

	res.Status = models.ReservationCancelled
	now := time.Now().UTC()
	res.CancelledAt = &now

	store, err := l.stores.GetByID(ctx, res.StoreID)
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).Warn("failed to load store for cancel effects")
		return res, nil
	}

	for _, hook := range l.hooks {
		hook.ReservationCancelled(ctx, store, res)
	}

	return res, nil
}

func validateCreateInput(input CreateInput) error {
	missing := input.StoreID == uuid.Nil ||
		input.CustomerName == "" ||
		input.CustomerPhone == "" ||
		input.PartySize <= 0 ||
		input.Date.IsZero() ||
		input.StartTime == ""
	if missing {
		return httperror.NewHTTPError(http.StatusBadRequest, "customer name, phone, date, time and party size are required").
			AddMetaValue("code", availability.ReasonMissingFields)
	}
	return nil
}
