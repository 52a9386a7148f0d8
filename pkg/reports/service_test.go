package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
)

type fakeStoreRepo struct {
	stores []models.Store
}

func (f *fakeStoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	for i := range f.stores {
		if f.stores[i].ID == id {
			return &f.stores[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStoreRepo) ListActive(ctx context.Context) ([]models.Store, error) {
	out := []models.Store{}
	for _, s := range f.stores {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeReservationRepo struct {
	statsErr map[uuid.UUID]error
}

func (f *fakeReservationRepo) Insert(ctx context.Context, res *models.Reservation) error {
	return nil
}

func (f *fakeReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationRepo) ListConfirmed(ctx context.Context, seatTypeID uuid.UUID, date time.Time) ([]models.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationRepo) ListByStore(ctx context.Context, storeID uuid.UUID, date *time.Time) ([]models.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationRepo) LockSeatDate(ctx context.Context, seatTypeID uuid.UUID, date time.Time) error {
	return nil
}

func (f *fakeReservationRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeReservationRepo) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	return nil
}

func (f *fakeReservationRepo) MonthlyStats(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.ReportContent, error) {
	if err := f.statsErr[storeID]; err != nil {
		return nil, err
	}
	return &models.ReportContent{ReservationCount: 12, CancelledCount: 2, TotalGuests: 31}, nil
}

type fakeUsageRepo struct{}

func (f *fakeUsageRepo) Increment(ctx context.Context, storeID uuid.UUID, service models.ServiceType, amount int64) error {
	return nil
}

func (f *fakeUsageRepo) MonthToDate(ctx context.Context, storeID uuid.UUID, service models.ServiceType, month time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeUsageRepo) MonthTotals(ctx context.Context, storeID uuid.UUID, month time.Time) (map[string]int64, error) {
	return map[string]int64{"broadcast": 4}, nil
}

type fakeReportRepo struct {
	reports map[string]*models.Report
}

func (f *fakeReportRepo) key(storeID uuid.UUID, month time.Time) string {
	return storeID.String() + "/" + repositories.DateString(month)
}

func (f *fakeReportRepo) GetByStoreMonth(ctx context.Context, storeID uuid.UUID, month time.Time) (*models.Report, error) {
	return f.reports[f.key(storeID, month)], nil
}

func (f *fakeReportRepo) Insert(ctx context.Context, report *models.Report) (bool, error) {
	if f.reports == nil {
		f.reports = map[string]*models.Report{}
	}
	k := f.key(report.StoreID, report.Month)
	if _, exists := f.reports[k]; exists {
		return false, nil
	}
	report.ID = uuid.New()
	f.reports[k] = report
	return true, nil
}

func (f *fakeReportRepo) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Report, error) {
	out := []models.Report{}
	for _, r := range f.reports {
		if r.StoreID == storeID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, r := range f.reports {
		if r.ID == id {
			r.Status = models.ReportDelivered
			return true, nil
		}
	}
	return false, nil
}

type fakeReportRunRepo struct {
	runs []models.ReportRun
}

func (f *fakeReportRunRepo) Insert(ctx context.Context, run *models.ReportRun) error {
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeReportRunRepo) ListRecent(ctx context.Context, limit int) ([]models.ReportRun, error) {
	return f.runs, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func activeStore(name string, autoReport bool) models.Store {
	return models.Store{ID: uuid.New(), Name: name, AutoReportEnabled: autoReport, Active: true}
}

func newReportFixture(stores []models.Store) (*Service, *fakeReportRepo, *fakeReportRunRepo, *fakeReservationRepo) {
	reportRepo := &fakeReportRepo{}
	runRepo := &fakeReportRunRepo{}
	resRepo := &fakeReservationRepo{statsErr: map[uuid.UUID]error{}}
	svc := NewService(&fakeStoreRepo{stores: stores}, resRepo, &fakeUsageRepo{}, reportRepo, runRepo, 0, testLogger())
	return svc, reportRepo, runRepo, resRepo
}

func TestSweepIsIdempotentPerStoreMonth(t *testing.T) {
	store := activeStore("Honten", true)
	svc, reportRepo, runRepo, _ := newReportFixture([]models.Store{store})
	month := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.Sweep(context.Background(), month, models.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded)

	second, err := svc.Sweep(context.Background(), month, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Succeeded)
	assert.Equal(t, 1, second.Skipped)

	assert.Len(t, reportRepo.reports, 1, "exactly one report row per store and month")
	assert.Len(t, runRepo.runs, 2, "every sweep records an audit row")
}

func TestSweepSkipsOptedOutStores(t *testing.T) {
	optedIn := activeStore("Honten", true)
	optedOut := activeStore("Shibuya", false)
	svc, reportRepo, _, _ := newReportFixture([]models.Store{optedIn, optedOut})

	result, err := svc.Sweep(context.Background(), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), models.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, reportRepo.reports, 1)
}

func TestSweepIsolatesPerStoreFailures(t *testing.T) {
	broken := activeStore("Broken", true)
	healthy := activeStore("Honten", true)
	svc, reportRepo, runRepo, resRepo := newReportFixture([]models.Store{broken, healthy})
	resRepo.statsErr[broken.ID] = errors.New("stats query failed")

	result, err := svc.Sweep(context.Background(), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), models.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, reportRepo.reports, 1, "the healthy store still gets its report")

	require.Len(t, runRepo.runs, 1)
	assert.Equal(t, 1, runRepo.runs[0].Failed)
}

func TestGenerateContent(t *testing.T) {
	store := activeStore("Honten", true)
	svc, _, _, _ := newReportFixture([]models.Store{store})
	month := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)

	created, err := svc.Generate(context.Background(), store.ID, month, false)
	require.NoError(t, err)
	assert.True(t, created)

	reports, err := svc.List(context.Background(), store.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	report := reports[0]
	assert.False(t, report.AutoGenerated)
	assert.Equal(t, models.ReportGenerated, report.Status)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), report.Month, "month is normalized to its first day")
	assert.Equal(t, 12, report.Content.Data.ReservationCount)
	assert.Equal(t, int64(4), report.Content.Data.UsageByService["broadcast"])
}

func TestMarkDeliveredUnknownReport(t *testing.T) {
	svc, _, _, _ := newReportFixture(nil)

	err := svc.MarkDelivered(context.Background(), uuid.New())
	assert.Error(t, err)
}
