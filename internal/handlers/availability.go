package handlers

import (
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/availability"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// AvailabilityHandler answers availability questions. The answer here is
// advisory: the booking write path repeats the check inside its transaction,
// so a "yes" can still turn into a conflict at booking time.
type AvailabilityHandler struct {
	engine *availability.Engine
	logger ectologger.Logger
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(engine *availability.Engine, logger ectologger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		engine: engine,
		logger: logger,
	}
}

// Register registers availability routes
func (h *AvailabilityHandler) Register(g *echo.Group) {
	g.GET("", h.Check)
}

// Check runs the admission sequence for the requested slot
func (h *AvailabilityHandler) Check(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "AvailabilityHandler.Check")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	dateStr := c.QueryParam("date")
	startTime := c.QueryParam("time")
	partySizeStr := c.QueryParam("party_size")
	if dateStr == "" || startTime == "" || partySizeStr == "" {
		return BadRequest("date, time and party_size query parameters are required")
	}

	date, err := ParseDate(dateStr)
	if err != nil {
		return err
	}

	partySize, err := strconv.Atoi(partySizeStr)
	if err != nil {
		return BadRequest("invalid party_size")
	}

	var seatTypeID *uuid.UUID
	if idStr := c.QueryParam("seat_type_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return BadRequest("invalid seat_type_id")
		}
		seatTypeID = &id
	}

	duration := 0
	if durStr := c.QueryParam("duration_minutes"); durStr != "" {
		duration, err = strconv.Atoi(durStr)
		if err != nil {
			return BadRequest("invalid duration_minutes")
		}
	}

	result, err := h.engine.Check(ctx, availability.CheckRequest{
		StoreID:         storeID,
		SeatTypeID:      seatTypeID,
		Date:            date,
		StartTime:       startTime,
		PartySize:       partySize,
		DurationMinutes: duration,
	})
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Availability check failed")
		return err
	}

	return SuccessResponse(c, result)
}
