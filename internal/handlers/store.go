package handlers

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// StoreHandler serves the store directory
type StoreHandler struct {
	stores    repositories.StoreRepo
	seatTypes repositories.SeatTypeRepo
	logger    ectologger.Logger
}

// NewStoreHandler creates a new store handler
func NewStoreHandler(stores repositories.StoreRepo, seatTypes repositories.SeatTypeRepo, logger ectologger.Logger) *StoreHandler {
	return &StoreHandler{
		stores:    stores,
		seatTypes: seatTypes,
		logger:    logger,
	}
}

// OpenStatus reports whether a store takes bookings on a given date
type OpenStatus struct {
	Date      string `json:"date"`
	Open      bool   `json:"open"`
	OpenTime  string `json:"open_time,omitempty"`
	CloseTime string `json:"close_time,omitempty"`
}

// Register registers store routes
func (h *StoreHandler) Register(g *echo.Group) {
	g.GET("", h.GetByID)
	g.GET("/seat-types", h.ListSeatTypes)
	g.GET("/open-status", h.GetOpenStatus)
}

// GetByID returns a store by ID
func (h *StoreHandler) GetByID(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "StoreHandler.GetByID")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	store, err := h.stores.GetByID(ctx, storeID)
	if err != nil {
		return err
	}
	if store == nil {
		return repositories.NotFound("store %s not found", storeID)
	}

	return SuccessResponse(c, store)
}

// ListSeatTypes returns the active seat types for a store
func (h *StoreHandler) ListSeatTypes(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "StoreHandler.ListSeatTypes")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	seatTypes, err := h.seatTypes.ListByStore(ctx, storeID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list seat types")
		return err
	}

	return SuccessResponse(c, seatTypes)
}

// GetOpenStatus reports whether the store is open on the requested date,
// defaulting to today
func (h *StoreHandler) GetOpenStatus(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "StoreHandler.GetOpenStatus")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	store, err := h.stores.GetByID(ctx, storeID)
	if err != nil {
		return err
	}
	if store == nil {
		return repositories.NotFound("store %s not found", storeID)
	}

	date := time.Now()
	if dateStr := c.QueryParam("date"); dateStr != "" {
		date, err = ParseDate(dateStr)
		if err != nil {
			return err
		}
	}

	status := OpenStatus{
		Date: repositories.DateString(date),
		Open: store.Active && !store.IsClosedOn(date.Weekday()),
	}
	if status.Open {
		status.OpenTime = store.OpenTime
		status.CloseTime = store.CloseTime
	}

	return SuccessResponse(c, status)
}
