package availability

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Reason codes carried on admission rejections so callers can branch on the
// outcome instead of parsing messages.
const (
	ReasonSameDayBooking   = "SAME_DAY_BOOKING"
	ReasonSeatUnavailable  = "SEAT_UNAVAILABLE"
	ReasonNoSuitableSeat   = "NO_SUITABLE_SEAT"
	ReasonCapacityMismatch = "CAPACITY_MISMATCH"
	ReasonMissingFields    = "MISSING_REQUIRED_FIELDS"
)

// CheckRequest is one admission question: can this party be seated at this
// date and time. SeatTypeID nil means auto-select the best fitting seat type.
type CheckRequest struct {
	StoreID         uuid.UUID
	SeatTypeID      *uuid.UUID
	Date            time.Time
	StartTime       string
	PartySize       int
	DurationMinutes int // 0 means use the store default
}

// Result is the admission decision. When Available is false, Reason holds a
// machine-readable code and Message a human-readable explanation.
type Result struct {
	Available bool             `json:"available"`
	Reason    string           `json:"reason,omitempty"`
	Message   string           `json:"message,omitempty"`
	SeatType  *models.SeatType `json:"seat_type,omitempty"`
	// Effective duration after applying the store default
	DurationMinutes int `json:"duration_minutes"`
}

// Engine decides whether a seat type can serve a party at a requested slot.
// The decision outside a transaction is advisory; the reservation write path
// repeats it inside the insert transaction, where the repositories join the
// transaction through the context.
type Engine struct {
	stores       repositories.StoreRepo
	seatTypes    repositories.SeatTypeRepo
	reservations repositories.ReservationRepo
	logger       ectologger.Logger
	now          func() time.Time
}

// NewEngine creates a new availability engine
func NewEngine(stores repositories.StoreRepo, seatTypes repositories.SeatTypeRepo, reservations repositories.ReservationRepo, logger ectologger.Logger) *Engine {
	return &Engine{
		stores:       stores,
		seatTypes:    seatTypes,
		reservations: reservations,
		logger:       logger,
		now:          time.Now,
	}
}

func rejected(reason, message string) *Result {
	return &Result{Available: false, Reason: reason, Message: message}
}

// Check runs the full admission sequence: same-day policy, seat type
// resolution, capacity bounds, then overlap detection against confirmed
// bookings.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Engine.Check")
	defer span.End()

	store, err := e.stores.GetByID(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, repositories.NotFound("store %s not found", req.StoreID)
	}

	// Same-day requests go through the phone channel, never this one.
	if repositories.DateString(req.Date) == repositories.DateString(e.now()) {
		return rejected(ReasonSameDayBooking, "same-day bookings are not accepted online, please call the store"), nil
	}

	if req.PartySize <= 0 {
		return rejected(ReasonMissingFields, "party size is required"), nil
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = store.DefaultDurationMinutes
	}

	requested, err := NewInterval(req.StartTime, duration)
	if err != nil {
		return rejected(ReasonMissingFields, err.Error()), nil
	}

	seatType, result, err := e.resolveSeatType(ctx, req)
	if err != nil || result != nil {
		return result, err
	}

	if !seatType.Fits(req.PartySize) {
		return rejected(ReasonCapacityMismatch, "party size is outside the seat type's capacity range"), nil
	}

	existing, err := e.reservations.ListConfirmed(ctx, seatType.ID, req.Date)
	if err != nil {
		return nil, err
	}

	for _, res := range existing {
		booked, err := NewInterval(res.StartTime, res.DurationMinutes)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"reservation_id": res.ID,
			}).Warn("skipping reservation with unparseable time")
			continue
		}
		if requested.Overlaps(booked) {
			return rejected(ReasonSeatUnavailable, "the requested time slot is already booked"), nil
		}
	}

	return &Result{Available: true, SeatType: seatType, DurationMinutes: duration}, nil
}

// resolveSeatType returns the explicit seat type or auto-selects the best
// fit. A non-nil Result means the request was rejected during resolution.
func (e *Engine) resolveSeatType(ctx context.Context, req CheckRequest) (*models.SeatType, *Result, error) {
	if req.SeatTypeID != nil {
		seatType, err := e.seatTypes.GetByID(ctx, *req.SeatTypeID)
		if err != nil {
			return nil, nil, err
		}
		if seatType == nil || seatType.StoreID != req.StoreID {
			return nil, nil, repositories.NotFound("seat type %s not found", *req.SeatTypeID)
		}
		return seatType, nil, nil
	}

	seatTypes, err := e.seatTypes.ListByStore(ctx, req.StoreID)
	if err != nil {
		return nil, nil, err
	}

	best := bestFit(seatTypes, req.PartySize)
	if best == nil {
		return nil, rejected(ReasonNoSuitableSeat, "no seat type can accommodate this party size"), nil
	}

	return best, nil, nil
}

// bestFit picks the tightest bracket containing the party size, ordering the
// fitting seat types by min ascending then max ascending, with display order
// and name as deterministic tie-breaks.
func bestFit(seatTypes []models.SeatType, partySize int) *models.SeatType {
	fits := make([]models.SeatType, 0, len(seatTypes))
	for _, st := range seatTypes {
		if st.Fits(partySize) {
			fits = append(fits, st)
		}
	}
	if len(fits) == 0 {
		return nil
	}

	sort.SliceStable(fits, func(i, j int) bool {
		a, b := fits[i], fits[j]
		if a.MinPeople != b.MinPeople {
			return a.MinPeople < b.MinPeople
		}
		amax, bmax := boundedMax(a.MaxPeople), boundedMax(b.MaxPeople)
		if amax != bmax {
			return amax < bmax
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Name < b.Name
	})

	return &fits[0]
}

// boundedMax treats a missing max as unbounded for ordering purposes
func boundedMax(max *int) int {
	if max == nil {
		return int(^uint(0) >> 1)
	}
	return *max
}
