// Package startup brings external dependencies up in order with retries, so
// the process survives the database or broker arriving a few seconds late.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one external resource the service needs before serving
type Dependency struct {
	Name string
	// Start connects or otherwise readies the resource
	Start func(ctx context.Context) error
	// Stop releases the resource; nil means nothing to release
	Stop func(ctx context.Context) error
}

// Runner starts dependencies in registration order, retrying the whole
// sequence with fibonacci backoff until it succeeds or attempts run out
type Runner struct {
	deps        []Dependency
	started     map[string]bool
	logger      ectologger.Logger
	maxAttempts int
}

// NewRunner creates a new startup runner
func NewRunner(logger ectologger.Logger, maxAttempts int) *Runner {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Runner{
		started:     make(map[string]bool),
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Add registers a dependency. Order of registration is start order.
func (r *Runner) Add(dep Dependency) {
	r.deps = append(r.deps, dep)
}

// Start brings every dependency up. Already-started dependencies are not
// restarted on retry.
func (r *Runner) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = r.startAll(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == r.maxAttempts {
			break
		}

		wait := time.Duration(a) * time.Second
		r.logger.WithError(lastErr).Infof("Startup attempt %d/%d failed, retrying in %s", attempt, r.maxAttempts, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *Runner) startAll(ctx context.Context) error {
	for _, dep := range r.deps {
		if r.started[dep.Name] {
			continue
		}

		r.logger.WithField("dependency", dep.Name).Infof("Starting dependency '%s'", dep.Name)
		if err := dep.Start(ctx); err != nil {
			return fmt.Errorf("dependency '%s': %w", dep.Name, err)
		}
		r.started[dep.Name] = true
	}
	return nil
}

// Stop releases dependencies in reverse start order
func (r *Runner) Stop(ctx context.Context) {
	for i := len(r.deps) - 1; i >= 0; i-- {
		dep := r.deps[i]
		if !r.started[dep.Name] || dep.Stop == nil {
			continue
		}

		r.logger.WithField("dependency", dep.Name).Infof("Stopping dependency '%s'", dep.Name)
		if err := dep.Stop(ctx); err != nil {
			r.logger.WithError(err).Errorf("Failed to stop dependency '%s'", dep.Name)
		}
		r.started[dep.Name] = false
	}
}
