// Package quota enforces per-store monthly usage ceilings. Checking and
// recording are deliberately separate steps: chatbot calls check before
// spending tokens and record the actual amount consumed afterwards.
package quota

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/metrics"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// ReasonQuotaExceeded is the machine-readable code on quota rejections
const ReasonQuotaExceeded = "QUOTA_EXCEEDED"

// Decision is the outcome of a quota check plus the numbers behind it, so
// callers can render usage without a second read
type Decision struct {
	Admitted bool   `json:"admitted"`
	Used     int64  `json:"used"`
	Limit    *int64 `json:"limit,omitempty"` // nil means unlimited
	// Remaining is nil when the limit is unlimited
	Remaining *int64 `json:"remaining,omitempty"`
}

// Gate admits or rejects gated actions against the active plan's ceilings.
// The monthly reset is implicit: usage is summed over the current calendar
// month, so a new month starts at zero without any reset job.
type Gate struct {
	subscriptions repositories.SubscriptionRepo
	usage         repositories.UsageRepo
	logger        ectologger.Logger
	now           func() time.Time
}

// NewGate creates a new quota gate
func NewGate(subscriptions repositories.SubscriptionRepo, usage repositories.UsageRepo, logger ectologger.Logger) *Gate {
	return &Gate{
		subscriptions: subscriptions,
		usage:         usage,
		logger:        logger,
		now:           time.Now,
	}
}

// Check decides whether one more unit of the service is admitted
func (g *Gate) Check(ctx context.Context, storeID uuid.UUID, service models.ServiceType) (*Decision, error) {
	return g.CheckAmount(ctx, storeID, service, 1)
}

// CheckAmount decides whether the given amount fits within the remaining
// allowance, for callers that know the cost up front such as a broadcast's
// recipient count
func (g *Gate) CheckAmount(ctx context.Context, storeID uuid.UUID, service models.ServiceType, amount int64) (*Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "Gate.CheckAmount")
	defer span.End()

	plan, err := g.subscriptions.ActivePlan(ctx, storeID)
	if err != nil {
		return nil, err
	}

	used, err := g.usage.MonthToDate(ctx, storeID, service, g.now())
	if err != nil {
		return nil, err
	}

	if plan == nil {
		// Stores without an active subscription are not metered.
		g.logger.WithContext(ctx).WithFields(map[string]any{
			"store_id": storeID,
		}).Warn("no active subscription, admitting without a ceiling")
		return &Decision{Admitted: true, Used: used}, nil
	}

	limit := plan.LimitFor(service)
	if limit == nil {
		return &Decision{Admitted: true, Used: used}, nil
	}

	remaining := *limit - used
	if remaining < 0 {
		remaining = 0
	}

	decision := &Decision{
		Admitted:  used+amount <= *limit,
		Used:      used,
		Limit:     limit,
		Remaining: &remaining,
	}

	if !decision.Admitted {
		metrics.QuotaRejectionsTotal.WithLabelValues(string(service)).Inc()
		g.logger.WithContext(ctx).WithFields(map[string]any{
			"store_id": storeID,
			"service":  service,
			"used":     used,
			"limit":    *limit,
			"amount":   amount,
		}).Info("quota gate rejected action")
	}

	return decision, nil
}

// Record increments the usage counter with the actual amount consumed
func (g *Gate) Record(ctx context.Context, storeID uuid.UUID, service models.ServiceType, amount int64) error {
	ctx, span := tracing.StartSpan(ctx, "Gate.Record")
	defer span.End()

	return g.usage.Increment(ctx, storeID, service, amount)
}

// RejectError builds the hard-block error for broadcast and menu operations
func RejectError(service models.ServiceType) error {
	return httperror.NewHTTPError(http.StatusTooManyRequests, "monthly allowance for this plan has been used up").
		AddMetaValue("code", ReasonQuotaExceeded).
		AddMetaValue("service", string(service))
}
