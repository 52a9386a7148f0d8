package availability

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
)

type fakeStoreRepo struct {
	stores map[uuid.UUID]*models.Store
}

func (f *fakeStoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return f.stores[id], nil
}

func (f *fakeStoreRepo) ListActive(ctx context.Context) ([]models.Store, error) {
	out := []models.Store{}
	for _, s := range f.stores {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeSeatTypeRepo struct {
	seatTypes []models.SeatType
}

func (f *fakeSeatTypeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SeatType, error) {
	for i := range f.seatTypes {
		if f.seatTypes[i].ID == id && f.seatTypes[i].Active {
			return &f.seatTypes[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSeatTypeRepo) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.SeatType, error) {
	out := []models.SeatType{}
	for _, st := range f.seatTypes {
		if st.StoreID == storeID && st.Active {
			out = append(out, st)
		}
	}
	return out, nil
}

type fakeReservationRepo struct {
	reservations []models.Reservation
	inserted     []*models.Reservation
}

func (f *fakeReservationRepo) Insert(ctx context.Context, res *models.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	f.reservations = append(f.reservations, *res)
	f.inserted = append(f.inserted, res)
	return nil
}

func (f *fakeReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	for i := range f.reservations {
		if f.reservations[i].ID == id {
			return &f.reservations[i], nil
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
	out := []models.Reservation{}
	for _, r := range f.reservations {
		if r.StoreID == storeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) LockSeatDate(ctx context.Context, seatTypeID uuid.UUID, date time.Time) error {
	return nil
}

func (f *fakeReservationRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	for i := range f.reservations {
		if f.reservations[i].ID == id && f.reservations[i].Status == models.ReservationConfirmed {
			f.reservations[i].Status = models.ReservationCancelled
			now := time.Now()
			f.reservations[i].CancelledAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationRepo) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	for i := range f.reservations {
		if f.reservations[i].ID == id {
			f.reservations[i].CalendarEventID = &eventID
		}
	}
	return nil
}

func (f *fakeReservationRepo) MonthlyStats(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.ReportContent, error) {
	return &models.ReportContent{}, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func intPtr(v int) *int { return &v }

type engineFixture struct {
	engine       *Engine
	store        *models.Store
	counter      models.SeatType
	table        models.SeatType
	reservations *fakeReservationRepo
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	storeID := uuid.New()
	store := &models.Store{
		ID:                     storeID,
		Name:                   "Kanpai Honten",
		OpenTime:               "17:00",
		CloseTime:              "23:00",
		RegularHolidays:        database.JSONB[[]int]{Data: []int{1}},
		DefaultDurationMinutes: 120,
		Active:                 true,
	}

	counter := models.SeatType{
		ID: uuid.New(), StoreID: storeID, Name: "Counter",
		Capacity: 8, MinPeople: 1, MaxPeople: intPtr(2), DisplayOrder: 1, Active: true,
	}
	table := models.SeatType{
		ID: uuid.New(), StoreID: storeID, Name: "Table",
		Capacity: 12, MinPeople: 3, MaxPeople: intPtr(6), DisplayOrder: 2, Active: true,
	}

	reservations := &fakeReservationRepo{}
	engine := NewEngine(
		&fakeStoreRepo{stores: map[uuid.UUID]*models.Store{storeID: store}},
		&fakeSeatTypeRepo{seatTypes: []models.SeatType{counter, table}},
		reservations,
		testLogger(),
	)
	engine.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	return &engineFixture{engine: engine, store: store, counter: counter, table: table, reservations: reservations}
}

func (f *engineFixture) tomorrow() time.Time {
	return time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
}

func TestCheckRejectsSameDayBooking(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:   f.store.ID,
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "18:00",
		PartySize: 2,
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonSameDayBooking, result.Reason)
}

func TestCheckCapacityBounds(t *testing.T) {
	f := newEngineFixture(t)

	for _, size := range []int{2, 7} {
		result, err := f.engine.Check(context.Background(), CheckRequest{
			StoreID:    f.store.ID,
			SeatTypeID: &f.table.ID,
			Date:       f.tomorrow(),
			StartTime:  "18:00",
			PartySize:  size,
		})
		require.NoError(t, err)
		assert.False(t, result.Available, "size %d", size)
		assert.Equal(t, ReasonCapacityMismatch, result.Reason, "size %d", size)
	}

	for size := 3; size <= 6; size++ {
		result, err := f.engine.Check(context.Background(), CheckRequest{
			StoreID:    f.store.ID,
			SeatTypeID: &f.table.ID,
			Date:       f.tomorrow(),
			StartTime:  "18:00",
			PartySize:  size,
		})
		require.NoError(t, err)
		assert.True(t, result.Available, "size %d", size)
	}
}

func TestCheckAutoSelectsTightestSeatType(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:   f.store.ID,
		Date:      f.tomorrow(),
		StartTime: "18:00",
		PartySize: 2,
	})
	require.NoError(t, err)
	require.True(t, result.Available)
	require.NotNil(t, result.SeatType)
	assert.Equal(t, "Counter", result.SeatType.Name)
	assert.Equal(t, 120, result.DurationMinutes)
}

func TestCheckNoCrossSeatTypeSpillover(t *testing.T) {
	f := newEngineFixture(t)

	f.reservations.reservations = append(f.reservations.reservations, models.Reservation{
		ID:              uuid.New(),
		StoreID:         f.store.ID,
		SeatTypeID:      &f.counter.ID,
		PartySize:       2,
		ReservedOn:      f.tomorrow(),
		StartTime:       "18:00",
		DurationMinutes: 120,
		Status:          models.ReservationConfirmed,
	})

	// Counter is booked for the slot; a party of 2 must not spill over to
	// the Table even though it is free.
	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:   f.store.ID,
		Date:      f.tomorrow(),
		StartTime: "18:00",
		PartySize: 2,
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonSeatUnavailable, result.Reason)
}

func TestCheckAllowsBackToBackBookings(t *testing.T) {
	f := newEngineFixture(t)

	f.reservations.reservations = append(f.reservations.reservations, models.Reservation{
		ID:              uuid.New(),
		StoreID:         f.store.ID,
		SeatTypeID:      &f.counter.ID,
		ReservedOn:      f.tomorrow(),
		StartTime:       "18:00",
		DurationMinutes: 120,
		Status:          models.ReservationConfirmed,
	})

	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:    f.store.ID,
		SeatTypeID: &f.counter.ID,
		Date:       f.tomorrow(),
		StartTime:  "20:00",
		PartySize:  2,
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestCheckIgnoresCancelledReservations(t *testing.T) {
	f := newEngineFixture(t)

	f.reservations.reservations = append(f.reservations.reservations, models.Reservation{
		ID:              uuid.New(),
		StoreID:         f.store.ID,
		SeatTypeID:      &f.counter.ID,
		ReservedOn:      f.tomorrow(),
		StartTime:       "18:00",
		DurationMinutes: 120,
		Status:          models.ReservationCancelled,
	})

	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:    f.store.ID,
		SeatTypeID: &f.counter.ID,
		Date:       f.tomorrow(),
		StartTime:  "18:00",
		PartySize:  2,
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestCheckNoSuitableSeat(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:   f.store.ID,
		Date:      f.tomorrow(),
		StartTime: "18:00",
		PartySize: 20,
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonNoSuitableSeat, result.Reason)
}

func TestCheckMissingFields(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.Check(context.Background(), CheckRequest{
		StoreID:   f.store.ID,
		Date:      f.tomorrow(),
		StartTime: "not-a-time",
		PartySize: 2,
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonMissingFields, result.Reason)

	result, err = f.engine.Check(context.Background(), CheckRequest{
		StoreID:   f.store.ID,
		Date:      f.tomorrow(),
		StartTime: "18:00",
		PartySize: 0,
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, ReasonMissingFields, result.Reason)
}

func TestBestFitTieBreaksOnDisplayOrder(t *testing.T) {
	storeID := uuid.New()
	a := models.SeatType{ID: uuid.New(), StoreID: storeID, Name: "Zashiki", MinPeople: 2, MaxPeople: intPtr(4), DisplayOrder: 5, Active: true}
	b := models.SeatType{ID: uuid.New(), StoreID: storeID, Name: "Booth", MinPeople: 2, MaxPeople: intPtr(4), DisplayOrder: 1, Active: true}

	best := bestFit([]models.SeatType{a, b}, 3)
	require.NotNil(t, best)
	assert.Equal(t, "Booth", best.Name)
}

func TestBestFitUnboundedMaxLosesToBounded(t *testing.T) {
	storeID := uuid.New()
	bounded := models.SeatType{ID: uuid.New(), StoreID: storeID, Name: "Table", MinPeople: 2, MaxPeople: intPtr(6), DisplayOrder: 2, Active: true}
	unbounded := models.SeatType{ID: uuid.New(), StoreID: storeID, Name: "Hall", MinPeople: 2, MaxPeople: nil, DisplayOrder: 1, Active: true}

	best := bestFit([]models.SeatType{unbounded, bounded}, 4)
	require.NotNil(t, best)
	assert.Equal(t, "Table", best.Name)
}
