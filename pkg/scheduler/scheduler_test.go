package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/redis"
	"github.com/sheve777/kanpai-sub002/pkg/reports"
)

type fakeSweeper struct {
	months   []time.Time
	triggers []models.SweepTrigger
}

func (f *fakeSweeper) Sweep(ctx context.Context, month time.Time, trigger models.SweepTrigger) (*reports.SweepResult, error) {
	f.months = append(f.months, month)
	f.triggers = append(f.triggers, trigger)
	return &reports.SweepResult{Month: month, Succeeded: 1}, nil
}

type fakeLock struct {
	released bool
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released = true
	return nil
}

type fakeLocker struct {
	held     bool
	acquired int
	lastLock *fakeLock
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if f.held {
		return nil, redis.ErrLockNotAcquired
	}
	f.acquired++
	f.lastLock = &fakeLock{}
	return f.lastLock, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestScheduler(sweepDay int, now time.Time) (*Scheduler, *fakeSweeper, *fakeLocker) {
	sweeper := &fakeSweeper{}
	locker := &fakeLocker{}
	s := NewScheduler(sweeper, locker, Config{SweepDay: sweepDay, PollInterval: time.Hour}, testLogger())
	s.now = func() time.Time { return now }
	return s, sweeper, locker
}

func TestTickSweepsPreviousMonthOnSweepDay(t *testing.T) {
	now := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	s, sweeper, locker := newTestScheduler(1, now)

	s.tick(context.Background())

	require.Len(t, sweeper.months, 1)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), sweeper.months[0])
	assert.Equal(t, models.TriggerScheduled, sweeper.triggers[0])
	assert.Equal(t, 1, locker.acquired)
	assert.True(t, locker.lastLock.released)
}

func TestTickDoesNothingOffSweepDay(t *testing.T) {
	now := time.Date(2026, 8, 15, 3, 0, 0, 0, time.UTC)
	s, sweeper, _ := newTestScheduler(1, now)

	s.tick(context.Background())

	assert.Empty(t, sweeper.months)
}

func TestTickRunsOncePerMonth(t *testing.T) {
	now := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	s, sweeper, _ := newTestScheduler(1, now)

	s.tick(context.Background())
	s.tick(context.Background())
	s.tick(context.Background())

	assert.Len(t, sweeper.months, 1, "repeat polls on the sweep day must not re-sweep")
}

func TestTickSkipsWhenAnotherInstanceHoldsTheLock(t *testing.T) {
	now := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	s, sweeper, locker := newTestScheduler(1, now)
	locker.held = true

	s.tick(context.Background())

	assert.Empty(t, sweeper.months)
}

func TestStartStop(t *testing.T) {
	now := time.Date(2026, 8, 15, 3, 0, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(1, now)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}
