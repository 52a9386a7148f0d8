package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheve777/kanpai-sub002/pkg/models"
)

type fakeSubscriptionRepo struct {
	plan *models.Plan
}

func (f *fakeSubscriptionRepo) ActivePlan(ctx context.Context, storeID uuid.UUID) (*models.Plan, error) {
	return f.plan, nil
}

func (f *fakeSubscriptionRepo) ChangePlan(ctx context.Context, storeID, planID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

// fakeUsageRepo mimics the Postgres upsert: increments are atomic.
type fakeUsageRepo struct {
	mu sync.Mutex
	// keyed by service
	totals map[models.ServiceType]int64
}

func (f *fakeUsageRepo) Increment(ctx context.Context, storeID uuid.UUID, service models.ServiceType, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.totals == nil {
		f.totals = map[models.ServiceType]int64{}
	}
	f.totals[service] += amount
	return nil
}

func (f *fakeUsageRepo) MonthToDate(ctx context.Context, storeID uuid.UUID, service models.ServiceType, month time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[service], nil
}

func (f *fakeUsageRepo) MonthTotals(ctx context.Context, storeID uuid.UUID, month time.Time) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for k, v := range f.totals {
		out[string(k)] = v
	}
	return out, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func int64Ptr(v int64) *int64 { return &v }

func newGate(limit *int64, used int64) (*Gate, *fakeUsageRepo) {
	usage := &fakeUsageRepo{totals: map[models.ServiceType]int64{models.ServiceBroadcast: used}}
	subs := &fakeSubscriptionRepo{plan: &models.Plan{
		ID:             uuid.New(),
		Code:           "standard",
		BroadcastLimit: limit,
	}}
	return NewGate(subs, usage, testLogger()), usage
}

func TestGateRejectsAtLimit(t *testing.T) {
	gate, _ := newGate(int64Ptr(10), 10)

	decision, err := gate.Check(context.Background(), uuid.New(), models.ServiceBroadcast)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, int64(10), decision.Used)
	assert.Equal(t, int64(0), *decision.Remaining)
}

func TestGateAdmitsAtLimitMinusOne(t *testing.T) {
	gate, usage := newGate(int64Ptr(10), 9)
	storeID := uuid.New()

	decision, err := gate.Check(context.Background(), storeID, models.ServiceBroadcast)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)

	require.NoError(t, gate.Record(context.Background(), storeID, models.ServiceBroadcast, 1))
	assert.Equal(t, int64(10), usage.totals[models.ServiceBroadcast])

	// The slot just consumed was the last one.
	decision, err = gate.Check(context.Background(), storeID, models.ServiceBroadcast)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
}

func TestGateUnlimitedWhenLimitIsNil(t *testing.T) {
	gate, _ := newGate(nil, 1_000_000)

	decision, err := gate.Check(context.Background(), uuid.New(), models.ServiceBroadcast)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Nil(t, decision.Limit)
	assert.Nil(t, decision.Remaining)
}

func TestGateAdmitsWithoutActiveSubscription(t *testing.T) {
	usage := &fakeUsageRepo{}
	gate := NewGate(&fakeSubscriptionRepo{plan: nil}, usage, testLogger())

	decision, err := gate.Check(context.Background(), uuid.New(), models.ServiceBroadcast)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
}

func TestGateCheckAmountForBroadcastRecipients(t *testing.T) {
	gate, _ := newGate(int64Ptr(100), 80)
	storeID := uuid.New()

	decision, err := gate.CheckAmount(context.Background(), storeID, models.ServiceBroadcast, 20)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)

	decision, err = gate.CheckAmount(context.Background(), storeID, models.ServiceBroadcast, 21)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, int64(20), *decision.Remaining)
}

func TestGateRecordConcurrentIncrements(t *testing.T) {
	gate, usage := newGate(nil, 0)
	storeID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Record(context.Background(), storeID, models.ServiceChatbot, 3))
		}()
	}
	wg.Wait()

	total, err := usage.MonthToDate(context.Background(), storeID, models.ServiceChatbot, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestOutOfBudgetMessageMatchesTone(t *testing.T) {
	for _, tone := range []string{ToneFormal, ToneFriendly, ToneCasual} {
		msg := OutOfBudgetMessage(tone)
		assert.Contains(t, outOfBudgetTemplates[tone], msg)
	}

	// Unknown tone falls back to formal.
	msg := OutOfBudgetMessage("sarcastic")
	assert.Contains(t, outOfBudgetTemplates[ToneFormal], msg)
}
