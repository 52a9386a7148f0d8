package handlers

import (
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/reports"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// ReportHandler handles monthly report endpoints
type ReportHandler struct {
	service *reports.Service
	runs    repositories.ReportRunRepo
	logger  ectologger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(service *reports.Service, runs repositories.ReportRunRepo, logger ectologger.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		runs:    runs,
		logger:  logger,
	}
}

// SweepRequest represents the manual sweep request body
type SweepRequest struct {
	Month string `json:"month" validate:"required"` // YYYY-MM
}

// GenerateReportRequest represents the per-store generate request body
type GenerateReportRequest struct {
	Month string `json:"month" validate:"required"` // YYYY-MM
}

// RegisterStoreRoutes registers the store-scoped report routes
func (h *ReportHandler) RegisterStoreRoutes(g *echo.Group) {
	g.GET("", h.ListByStore)
	g.POST("/generate", h.Generate)
}

// RegisterAdminRoutes registers the cross-store report routes
func (h *ReportHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/sweep", h.Sweep)
	g.GET("/runs", h.ListRuns)
	g.POST("/:id/delivered", h.MarkDelivered)
}

// ListByStore returns a store's reports, most recent month first
func (h *ReportHandler) ListByStore(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReportHandler.ListByStore")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	list, err := h.service.List(ctx, storeID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list reports")
		return err
	}

	return SuccessResponse(c, list)
}

// Generate builds one store's report for a month. Generating a month that
// already has a report is a no-op.
func (h *ReportHandler) Generate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReportHandler.Generate")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	req, err := BindRequest[GenerateReportRequest](c)
	if err != nil {
		return err
	}

	month, err := ParseMonth(req.Month)
	if err != nil {
		return err
	}

	created, err := h.service.Generate(ctx, storeID, month, false)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to generate report")
		return err
	}

	return SuccessResponse(c, map[string]any{
		"month":   req.Month,
		"created": created,
	})
}

// Sweep runs the report sweep for a month across all stores. Stores that
// already have a report for the month are skipped, so re-running is safe.
func (h *ReportHandler) Sweep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReportHandler.Sweep")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	req, err := BindRequest[SweepRequest](c)
	if err != nil {
		return err
	}

	month, err := ParseMonth(req.Month)
	if err != nil {
		return err
	}

	result, err := h.service.Sweep(ctx, month, models.TriggerManual)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Manual sweep failed")
		return err
	}

	h.logger.WithContext(ctx).Infof("Manual sweep for %s: %d succeeded, %d failed, %d skipped",
		req.Month, result.Succeeded, result.Failed, result.Skipped)

	return SuccessResponse(c, result)
}

// ListRuns returns recent sweep audit rows
func (h *ReportHandler) ListRuns(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReportHandler.ListRuns")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return BadRequest("invalid limit")
		}
		limit = parsed
	}

	runs, err := h.runs.ListRecent(ctx, limit)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list report runs")
		return err
	}

	return SuccessResponse(c, runs)
}

// MarkDelivered promotes a report to delivered
func (h *ReportHandler) MarkDelivered(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReportHandler.MarkDelivered")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.MarkDelivered(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
