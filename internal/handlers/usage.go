package handlers

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/quota"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// UsageHandler serves plan and usage queries plus the quota prechecks the
// admin UI runs before expensive actions
type UsageHandler struct {
	gate          *quota.Gate
	subscriptions repositories.SubscriptionRepo
	usage         repositories.UsageRepo
	logger        ectologger.Logger
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(gate *quota.Gate, subscriptions repositories.SubscriptionRepo, usage repositories.UsageRepo, logger ectologger.Logger) *UsageHandler {
	return &UsageHandler{
		gate:          gate,
		subscriptions: subscriptions,
		usage:         usage,
		logger:        logger,
	}
}

// ServiceUsage is the month-to-date picture for one metered service
type ServiceUsage struct {
	Used      int64  `json:"used"`
	Limit     *int64 `json:"limit,omitempty"` // nil means unlimited
	Remaining *int64 `json:"remaining,omitempty"`
}

// UsageSummary is the plan plus per-service usage for the current month
type UsageSummary struct {
	Plan     *models.Plan            `json:"plan,omitempty"`
	Month    string                  `json:"month"`
	Services map[string]ServiceUsage `json:"services"`
}

// BroadcastPrecheckRequest represents the broadcast precheck request body
type BroadcastPrecheckRequest struct {
	RecipientCount int64 `json:"recipient_count" validate:"required,min=1"`
}

// ChangePlanRequest represents the change plan request body
type ChangePlanRequest struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// RecordUsageRequest represents the record usage request body
type RecordUsageRequest struct {
	Service string `json:"service" validate:"required,oneof=broadcast chatbot menu_ops"`
	Amount  int64  `json:"amount" validate:"required,min=1"`
}

// Register registers usage routes
func (h *UsageHandler) Register(g *echo.Group) {
	g.GET("", h.GetSummary)
	g.POST("/record", h.Record)
	g.POST("/broadcast-precheck", h.BroadcastPrecheck)
	g.PUT("/plan", h.ChangePlan)
}

// GetSummary returns the active plan and month-to-date usage per service
func (h *UsageHandler) GetSummary(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "UsageHandler.GetSummary")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	now := time.Now()

	plan, err := h.subscriptions.ActivePlan(ctx, storeID)
	if err != nil {
		return err
	}

	totals, err := h.usage.MonthTotals(ctx, storeID, now)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to load usage totals")
		return err
	}

	summary := UsageSummary{
		Plan:     plan,
		Month:    now.Format("2006-01"),
		Services: make(map[string]ServiceUsage),
	}

	for _, service := range []models.ServiceType{models.ServiceBroadcast, models.ServiceChatbot, models.ServiceMenuOps} {
		usage := ServiceUsage{Used: totals[string(service)]}
		if plan != nil {
			if limit := plan.LimitFor(service); limit != nil {
				remaining := *limit - usage.Used
				if remaining < 0 {
					remaining = 0
				}
				usage.Limit = limit
				usage.Remaining = &remaining
			}
		}
		summary.Services[string(service)] = usage
	}

	return SuccessResponse(c, summary)
}

// Record checks the quota and books the spend in one call, for actions whose
// cost is known up front such as menu operations
func (h *UsageHandler) Record(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "UsageHandler.Record")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	req, err := BindRequest[RecordUsageRequest](c)
	if err != nil {
		return err
	}

	service := models.ServiceType(req.Service)

	decision, err := h.gate.CheckAmount(ctx, storeID, service, req.Amount)
	if err != nil {
		return err
	}
	if !decision.Admitted {
		return quota.RejectError(service)
	}

	if err := h.gate.Record(ctx, storeID, service, req.Amount); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to record usage")
		return err
	}

	return SuccessResponse(c, decision)
}

// BroadcastPrecheck decides whether a broadcast with the given recipient
// count fits the remaining allowance. Rejections are hard blocks.
func (h *UsageHandler) BroadcastPrecheck(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "UsageHandler.BroadcastPrecheck")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	req, err := BindRequest[BroadcastPrecheckRequest](c)
	if err != nil {
		return err
	}

	decision, err := h.gate.CheckAmount(ctx, storeID, models.ServiceBroadcast, req.RecipientCount)
	if err != nil {
		return err
	}
	if !decision.Admitted {
		return quota.RejectError(models.ServiceBroadcast)
	}

	return SuccessResponse(c, decision)
}

// ChangePlan switches the store's active subscription to another plan. The
// new ceilings apply from the next quota check; usage already booked this
// month stays counted.
func (h *UsageHandler) ChangePlan(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "UsageHandler.ChangePlan")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	req, err := BindRequest[ChangePlanRequest](c)
	if err != nil {
		return err
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return BadRequest("invalid plan_id")
	}

	sub, err := h.subscriptions.ChangePlan(ctx, storeID, planID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to change plan")
		return err
	}

	h.logger.WithContext(ctx).Infof("Changed plan for store %s to %s", storeID, planID)
	return SuccessResponse(c, sub)
}
