package handlers

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/reservation"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// ReservationHandler handles reservation API endpoints
type ReservationHandler struct {
	ledger       *reservation.Ledger
	reservations repositories.ReservationRepo
	logger       ectologger.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(ledger *reservation.Ledger, reservations repositories.ReservationRepo, logger ectologger.Logger) *ReservationHandler {
	return &ReservationHandler{
		ledger:       ledger,
		reservations: reservations,
		logger:       logger,
	}
}

// CreateReservationRequest represents the create reservation request body
type CreateReservationRequest struct {
	SeatTypeID      *string `json:"seat_type_id,omitempty"`
	CustomerName    string  `json:"customer_name" validate:"required"`
	CustomerPhone   string  `json:"customer_phone" validate:"required"`
	PartySize       int     `json:"party_size" validate:"required,min=1"`
	Date            string  `json:"date" validate:"required"`
	StartTime       string  `json:"start_time" validate:"required"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Source          string  `json:"source,omitempty"`
}

// Register registers reservation routes
func (h *ReservationHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.GetByID)
	g.DELETE("/:id", h.Cancel)
}

// Create books a reservation
func (h *ReservationHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReservationHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	req, err := BindRequest[CreateReservationRequest](c)
	if err != nil {
		return err
	}

	date, err := ParseDate(req.Date)
	if err != nil {
		return err
	}

	var seatTypeID *uuid.UUID
	if req.SeatTypeID != nil && *req.SeatTypeID != "" {
		id, err := uuid.Parse(*req.SeatTypeID)
		if err != nil {
			return BadRequest("invalid seat_type_id")
		}
		seatTypeID = &id
	}

	source := models.ReservationSource(req.Source)
	if source == "" {
		source = models.SourceWeb
	}

	result, err := h.ledger.Create(ctx, reservation.CreateInput{
		StoreID:         storeID,
		SeatTypeID:      seatTypeID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		PartySize:       req.PartySize,
		Date:            date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Source:          source,
	})
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"reservation_id": result.Reservation.ID,
		"seat_type_id":   result.SeatType.ID,
	}).Infof("Created reservation for %s on %s", req.CustomerName, req.Date)

	return CreatedResponse(c, result)
}

// List returns reservations for a store, optionally filtered to one date
func (h *ReservationHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReservationHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	var date *time.Time
	if dateStr := c.QueryParam("date"); dateStr != "" {
		parsed, err := ParseDate(dateStr)
		if err != nil {
			return err
		}
		date = &parsed
	}

	reservations, err := h.reservations.ListByStore(ctx, storeID, date)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list reservations")
		return err
	}

	return SuccessResponse(c, reservations)
}

// GetByID returns a reservation by ID
func (h *ReservationHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReservationHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	res, err := h.reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if res == nil {
		return repositories.NotFound("reservation %s not found", id)
	}

	return SuccessResponse(c, res)
}

// Cancel cancels a reservation. Cancelling twice is a no-op success.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReservationHandler.Cancel")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	res, err := h.ledger.Cancel(ctx, id)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).Infof("Cancelled reservation %s", id)
	return SuccessResponse(c, res)
}
