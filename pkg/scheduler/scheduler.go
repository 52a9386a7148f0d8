// Package scheduler runs the monthly report sweep. A polling loop fires the
// sweep on the configured calendar day; a distributed lock keeps multiple
// instances from sweeping at once. The sweep itself lives in the reports
// service so the manual trigger goes through the identical path.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/redis"
	"github.com/sheve777/kanpai-sub002/pkg/reports"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when starting a running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

const (
	// DefaultPollInterval is the default interval between checks
	DefaultPollInterval = time.Hour

	// DefaultLockTTL is the default TTL for the sweep lock
	DefaultLockTTL = 10 * time.Minute

	// DefaultSweepDay is the day of month the sweep fires
	DefaultSweepDay = 1

	// LockKeyPrefix is the prefix for sweep locks
	LockKeyPrefix = "report-sweep:"
)

// Sweeper is the report sweep entry point
type Sweeper interface {
	Sweep(ctx context.Context, month time.Time, trigger models.SweepTrigger) (*reports.SweepResult, error)
}

// Lock is a held distributed lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker acquires distributed locks
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker adapts the redis locker to the scheduler's interface
type RedisLocker struct {
	Inner *redis.Locker
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	return r.Inner.Acquire(ctx, key, ttl)
}

// Config holds scheduler configuration
type Config struct {
	// SweepDay is the day of month (1-28) the sweep fires
	SweepDay int

	// PollInterval is how often to check whether the sweep is due
	PollInterval time.Duration

	// LockTTL is how long the sweep lock is held
	LockTTL time.Duration
}

// Scheduler fires the monthly sweep
type Scheduler struct {
	sweeper Sweeper
	locker  Locker
	config  Config
	logger  ectologger.Logger
	now     func() time.Time

	// month the last successful run covered, so one instance does not
	// re-sweep on every poll of the sweep day
	lastSwept time.Time

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler. Locker may be nil when the service
// runs as a single instance.
func NewScheduler(sweeper Sweeper, locker Locker, config Config, logger ectologger.Logger) *Scheduler {
	if config.SweepDay <= 0 || config.SweepDay > 28 {
		config.SweepDay = DefaultSweepDay
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Scheduler{
		sweeper:  sweeper,
		locker:   locker,
		config:   config,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the polling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting report scheduler: sweep_day=%d poll_interval=%s",
		s.config.SweepDay, s.config.PollInterval)

	go s.pollLoop(ctx)

	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Report scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Report scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires the sweep when today is the sweep day and the previous month
// has not been swept yet by this instance
func (s *Scheduler) tick(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.tick")
	defer span.End()

	now := s.now()
	if now.Day() != s.config.SweepDay {
		return
	}

	// Reports cover the month that just ended.
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	s.mu.RLock()
	done := s.lastSwept.Equal(month)
	s.mu.RUnlock()
	if done {
		return
	}

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, LockKeyPrefix+month.Format("2006-01"), s.config.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotAcquired) {
				s.logger.WithContext(ctx).Debug("another instance is running the sweep")
				return
			}
			s.logger.WithContext(ctx).WithError(err).Error("failed to acquire sweep lock")
			return
		}
		defer lock.Release(ctx)
	}

	if _, err := s.sweeper.Sweep(ctx, month, models.TriggerScheduled); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("scheduled report sweep failed")
		return
	}

	s.mu.Lock()
	s.lastSwept = month
	s.mu.Unlock()
}
