package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheve777/kanpai-sub002/pkg/availability"
	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (f *fakeTx) IsOpen() bool { return !f.committed && !f.rolledBack }

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (f *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (f *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}

type fakeTxBeginner struct {
	lastTx *fakeTx
}

func (f *fakeTxBeginner) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	f.lastTx = &fakeTx{}
	return ctx, f.lastTx, nil
}

type fakeStoreRepo struct {
	stores map[uuid.UUID]*models.Store
}

func (f *fakeStoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return f.stores[id], nil
}

func (f *fakeStoreRepo) ListActive(ctx context.Context) ([]models.Store, error) {
	return nil, nil
}

type fakeSeatTypeRepo struct {
	seatTypes []models.SeatType
}

func (f *fakeSeatTypeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SeatType, error) {
	for i := range f.seatTypes {
		if f.seatTypes[i].ID == id {
			return &f.seatTypes[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSeatTypeRepo) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.SeatType, error) {
	out := []models.SeatType{}
	for _, st := range f.seatTypes {
		if st.StoreID == storeID {
			out = append(out, st)
		}
	}
	return out, nil
}

type fakeReservationRepo struct {
	reservations []models.Reservation
	locks        int
}

func (f *fakeReservationRepo) Insert(ctx context.Context, res *models.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	f.reservations = append(f.reservations, *res)
	return nil
}

func (f *fakeReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	for i := range f.reservations {
		if f.reservations[i].ID == id {
			res := f.reservations[i]
			return &res, nil
		}
	}
	return nil, nil
}

func (f *fakeReservationRepo) ListConfirmed(ctx context.Context, seatTypeID uuid.UUID, date time.Time) ([]models.Reservation, error) {
	out := []models.Reservation{}
	for _, r := range f.reservations {
		if r.SeatTypeID != nil && *r.SeatTypeID == seatTypeID &&
			r.ReservedOn.Format("2006-01-02") == date.Format("2006-01-02") &&
			r.Status == models.ReservationConfirmed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) ListByStore(ctx context.Context, storeID uuid.UUID, date *time.Time) ([]models.Reservation, error) {
	return f.reservations, nil
}

func (f *fakeReservationRepo) LockSeatDate(ctx context.Context, seatTypeID uuid.UUID, date time.Time) error {
	f.locks++
	return nil
}

func (f *fakeReservationRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	for i := range f.reservations {
		if f.reservations[i].ID == id && f.reservations[i].Status == models.ReservationConfirmed {
			f.reservations[i].Status = models.ReservationCancelled
			now := time.Now().UTC()
			f.reservations[i].CancelledAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationRepo) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	return nil
}

func (f *fakeReservationRepo) MonthlyStats(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.ReportContent, error) {
	return &models.ReportContent{}, nil
}

type hookRecorder struct {
	confirmed []uuid.UUID
	cancelled []uuid.UUID
	// records whether the transaction had committed when the hook fired
	txCommitted []bool
	db          *fakeTxBeginner
}

func (h *hookRecorder) ReservationConfirmed(ctx context.Context, store *models.Store, seatType *models.SeatType, res *models.Reservation) {
	h.confirmed = append(h.confirmed, res.ID)
	if h.db != nil && h.db.lastTx != nil {
		h.txCommitted = append(h.txCommitted, h.db.lastTx.committed)
	}
}

func (h *hookRecorder) ReservationCancelled(ctx context.Context, store *models.Store, res *models.Reservation) {
	h.cancelled = append(h.cancelled, res.ID)
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func intPtr(v int) *int { return &v }

type ledgerFixture struct {
	ledger       *Ledger
	store        *models.Store
	counter      models.SeatType
	reservations *fakeReservationRepo
	hook         *hookRecorder
	db           *fakeTxBeginner
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	storeID := uuid.New()
	store := &models.Store{
		ID:                     storeID,
		Name:                   "Kanpai Honten",
		DefaultDurationMinutes: 120,
		Active:                 true,
	}
	counter := models.SeatType{
		ID: uuid.New(), StoreID: storeID, Name: "Counter",
		MinPeople: 1, MaxPeople: intPtr(2), DisplayOrder: 1, Active: true,
	}

	stores := &fakeStoreRepo{stores: map[uuid.UUID]*models.Store{storeID: store}}
	seatTypes := &fakeSeatTypeRepo{seatTypes: []models.SeatType{counter}}
	reservations := &fakeReservationRepo{}
	logger := testLogger()

	engine := availability.NewEngine(stores, seatTypes, reservations, logger)

	db := &fakeTxBeginner{}
	hook := &hookRecorder{db: db}
	ledger := NewLedger(db, engine, reservations, stores, seatTypes, logger, hook)

	return &ledgerFixture{
		ledger:       ledger,
		store:        store,
		counter:      counter,
		reservations: reservations,
		hook:         hook,
		db:           db,
	}
}

func tomorrow() time.Time {
	return time.Now().UTC().AddDate(0, 0, 1)
}

func validInput(f *ledgerFixture) CreateInput {
	return CreateInput{
		StoreID:       f.store.ID,
		CustomerName:  "Tanaka",
		CustomerPhone: "090-0000-0000",
		PartySize:     2,
		Date:          tomorrow(),
		StartTime:     "18:00",
		Source:        models.SourceWeb,
	}
}

func TestCreateCommitsThenFiresHooks(t *testing.T) {
	f := newLedgerFixture(t)

	result, err := f.ledger.Create(context.Background(), validInput(f))
	require.NoError(t, err)
	require.NotNil(t, result.Reservation)
	assert.Equal(t, models.ReservationConfirmed, result.Reservation.Status)
	assert.Equal(t, "Counter", result.SeatType.Name)
	assert.Equal(t, 120, result.Reservation.DurationMinutes)

	require.Len(t, f.hook.confirmed, 1)
	assert.Equal(t, result.Reservation.ID, f.hook.confirmed[0])
	require.Len(t, f.hook.txCommitted, 1)
	assert.True(t, f.hook.txCommitted[0], "hooks must fire after commit")
	assert.True(t, f.db.lastTx.committed)
	assert.False(t, f.db.lastTx.rolledBack)
}

// flakyStoreRepo fails one specific GetByID call, counting from 1.
type flakyStoreRepo struct {
	*fakeStoreRepo
	calls    int
	failCall int
}

func (f *flakyStoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	f.calls++
	if f.calls == f.failCall {
		return nil, fmt.Errorf("connection reset by peer")
	}
	return f.fakeStoreRepo.GetByID(ctx, id)
}

// A transient store read failure inside the insert transaction must roll the
// attempt back cleanly: the retry books the slot, the caller never sees a
// conflict against a row of their own, and the hooks fire exactly once.
func TestCreateRetriesWhenStoreReadFails(t *testing.T) {
	f := newLedgerFixture(t)

	// The third read is the response-context load after the overlap checks.
	stores := &flakyStoreRepo{
		fakeStoreRepo: &fakeStoreRepo{stores: map[uuid.UUID]*models.Store{f.store.ID: f.store}},
		failCall:      3,
	}
	seatTypes := &fakeSeatTypeRepo{seatTypes: []models.SeatType{f.counter}}
	reservations := &fakeReservationRepo{}
	logger := testLogger()
	engine := availability.NewEngine(stores, seatTypes, reservations, logger)
	db := &fakeTxBeginner{}
	hook := &hookRecorder{db: db}
	ledger := NewLedger(db, engine, reservations, stores, seatTypes, logger, hook)

	input := validInput(f)
	result, err := ledger.Create(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Store)

	assert.Len(t, reservations.reservations, 1, "exactly one booking must be committed")
	require.Len(t, hook.confirmed, 1)
	assert.Equal(t, result.Reservation.ID, hook.confirmed[0])
	assert.True(t, db.lastTx.committed)
}

func TestCreateLocksSeatDate(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.Create(context.Background(), validInput(f))
	require.NoError(t, err)
	assert.Equal(t, 1, f.reservations.locks)
}

func TestCreateRejectsConflictingSlot(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.Create(context.Background(), validInput(f))
	require.NoError(t, err)

	_, err = f.ledger.Create(context.Background(), validInput(f))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Equal(t, availability.ReasonSeatUnavailable, httperror.ToHTTPError(err).Meta["code"])

	assert.Len(t, f.hook.confirmed, 1, "rejected request must not fire hooks")
	assert.Len(t, f.reservations.reservations, 1)
}

func TestCreateRejectsSameDay(t *testing.T) {
	f := newLedgerFixture(t)

	input := validInput(f)
	input.Date = time.Now().UTC()

	_, err := f.ledger.Create(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, availability.ReasonSameDayBooking, httperror.ToHTTPError(err).Meta["code"])
	assert.Empty(t, f.reservations.reservations)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	f := newLedgerFixture(t)

	input := validInput(f)
	input.CustomerName = ""

	_, err := f.ledger.Create(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Equal(t, availability.ReasonMissingFields, httperror.ToHTTPError(err).Meta["code"])
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newLedgerFixture(t)

	result, err := f.ledger.Create(context.Background(), validInput(f))
	require.NoError(t, err)
	id := result.Reservation.ID

	first, err := f.ledger.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, first.Status)

	second, err := f.ledger.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, second.Status)

	assert.Len(t, f.hook.cancelled, 1, "second cancel must not re-fire hooks")
}

func TestCancelFreesTheSlot(t *testing.T) {
	f := newLedgerFixture(t)

	result, err := f.ledger.Create(context.Background(), validInput(f))
	require.NoError(t, err)

	_, err = f.ledger.Cancel(context.Background(), result.Reservation.ID)
	require.NoError(t, err)

	_, err = f.ledger.Create(context.Background(), validInput(f))
	assert.NoError(t, err)
}

func TestCancelUnknownReservation(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.Cancel(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
