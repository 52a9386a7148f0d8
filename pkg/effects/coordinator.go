// Package effects synchronizes committed reservation changes with external
// collaborators. Everything here is best effort: the ledger has already
// committed, so failures are logged and never surfaced as request failures.
package effects

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/sheve777/kanpai-sub002/pkg/kafka"
	"github.com/sheve777/kanpai-sub002/pkg/metrics"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// CalendarEvent is the reservation-shaped record a calendar collaborator
// accepts
type CalendarEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Calendar is the external calendar collaborator
type Calendar interface {
	// CreateEvent returns the opaque external event id
	CreateEvent(ctx context.Context, calendarID string, event CalendarEvent) (string, error)
	// DeleteEvent is idempotent; deleting a missing event is not an error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	IsFree(ctx context.Context, calendarID string, start, end time.Time) (bool, error)
}

// Notifier is the push notification collaborator
type Notifier interface {
	Push(ctx context.Context, recipientID, message string) error
}

// Coordinator runs the post-commit synchronization steps. The calendar step
// runs before the notification step so the message can mention calendar
// linkage, but a calendar failure never blocks the notification.
type Coordinator struct {
	calendar      Calendar
	notifier      Notifier
	reservations  repositories.ReservationRepo
	producer      *kafka.Producer
	logger        ectologger.Logger
	callTimeout   time.Duration
	notifyTimeout time.Duration
}

// NewCoordinator creates a new effects coordinator. The kafka producer may be
// nil when event emission is disabled.
func NewCoordinator(calendar Calendar, notifier Notifier, reservations repositories.ReservationRepo, producer *kafka.Producer, callTimeout, notifyTimeout time.Duration, logger ectologger.Logger) *Coordinator {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &Coordinator{
		calendar:      calendar,
		notifier:      notifier,
		reservations:  reservations,
		producer:      producer,
		logger:        logger,
		callTimeout:   callTimeout,
		notifyTimeout: notifyTimeout,
	}
}

// ReservationConfirmed syncs a newly committed reservation to the calendar
// and notifies the store operator
func (c *Coordinator) ReservationConfirmed(ctx context.Context, store *models.Store, seatType *models.SeatType, res *models.Reservation) {
	ctx, span := tracing.StartSpan(ctx, "Coordinator.ReservationConfirmed")
	defer span.End()

	calendarLinked := false
	if store.CalendarID != nil && c.calendar != nil {
		eventID := c.createCalendarEvent(ctx, *store.CalendarID, seatType, res)
		if eventID != "" {
			calendarLinked = true
			if err := c.reservations.SetCalendarEventID(ctx, res.ID, eventID); err != nil {
				c.logger.WithContext(ctx).WithError(err).Warn("failed to persist calendar event id")
			}
		}
	}

	c.notify(ctx, store, confirmedMessage(store, seatType, res, calendarLinked))
	c.emit(ctx, "reservation.confirmed", store, seatType, res)
}

// ReservationCancelled removes the calendar event, if one was ever created,
// and notifies the store operator
func (c *Coordinator) ReservationCancelled(ctx context.Context, store *models.Store, res *models.Reservation) {
	ctx, span := tracing.StartSpan(ctx, "Coordinator.ReservationCancelled")
	defer span.End()

	if store.CalendarID != nil && res.CalendarEventID != nil && c.calendar != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		start := time.Now()
		err := c.calendar.DeleteEvent(callCtx, *store.CalendarID, *res.CalendarEventID)
		cancel()
		metrics.CollaboratorCallDuration.WithLabelValues("calendar").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CollaboratorCallsTotal.WithLabelValues("calendar", "error").Inc()
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"reservation_id": res.ID,
			}).Warn("failed to delete calendar event")
		} else {
			metrics.CollaboratorCallsTotal.WithLabelValues("calendar", "ok").Inc()
		}
	}

	c.notify(ctx, store, cancelledMessage(res))
	c.emit(ctx, "reservation.cancelled", store, nil, res)
}

func (c *Coordinator) createCalendarEvent(ctx context.Context, calendarID string, seatType *models.SeatType, res *models.Reservation) string {
	event, err := buildCalendarEvent(seatType, res)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("failed to build calendar event")
		return ""
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	eventID, err := c.calendar.CreateEvent(callCtx, calendarID, event)
	metrics.CollaboratorCallDuration.WithLabelValues("calendar").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorCallsTotal.WithLabelValues("calendar", "error").Inc()
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"reservation_id": res.ID,
		}).Warn("failed to create calendar event")
		return ""
	}

	metrics.CollaboratorCallsTotal.WithLabelValues("calendar", "ok").Inc()
	return eventID
}

func (c *Coordinator) notify(ctx context.Context, store *models.Store, message string) {
	if store.NotifyRecipientID == nil || c.notifier == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()

	start := time.Now()
	err := c.notifier.Push(callCtx, *store.NotifyRecipientID, message)
	metrics.CollaboratorCallDuration.WithLabelValues("notification").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorCallsTotal.WithLabelValues("notification", "error").Inc()
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"store_id": store.ID,
		}).Warn("failed to push operator notification")
		return
	}
	metrics.CollaboratorCallsTotal.WithLabelValues("notification", "ok").Inc()
}

func (c *Coordinator) emit(ctx context.Context, eventType string, store *models.Store, seatType *models.SeatType, res *models.Reservation) {
	if c.producer == nil {
		return
	}

	event := &kafka.ReservationEvent{
		EventType:     eventType,
		StoreID:       store.ID.String(),
		ReservationID: res.ID.String(),
		PartySize:     res.PartySize,
		ReservedOn:    repositories.DateString(res.ReservedOn),
		StartTime:     res.StartTime,
		Source:        string(res.Source),
	}
	if res.SeatTypeID != nil {
		event.SeatTypeID = res.SeatTypeID.String()
	}
	if seatType != nil {
		event.SeatTypeName = seatType.Name
	}

	if err := c.producer.PublishReservationEvent(ctx, event); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("failed to publish reservation event")
	}
}

func buildCalendarEvent(seatType *models.SeatType, res *models.Reservation) (CalendarEvent, error) {
	startMinutes, err := parseClock(res.StartTime)
	if err != nil {
		return CalendarEvent{}, err
	}

	day := res.ReservedOn
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local).Add(time.Duration(startMinutes) * time.Minute)
	end := start.Add(time.Duration(res.DurationMinutes) * time.Minute)

	seatName := "未指定"
	if seatType != nil {
		seatName = seatType.Name
	}

	return CalendarEvent{
		Title:       fmt.Sprintf("予約 %s様 %d名", res.CustomerName, res.PartySize),
		Description: fmt.Sprintf("席種: %s\n電話: %s\n経路: %s", seatName, res.CustomerPhone, res.Source),
		Start:       start,
		End:         end,
	}, nil
}

func confirmedMessage(store *models.Store, seatType *models.SeatType, res *models.Reservation, calendarLinked bool) string {
	seatName := "未指定"
	if seatType != nil {
		seatName = seatType.Name
	}
	msg := fmt.Sprintf("【新規予約】\n%s様 %d名\n%s %s〜\n席種: %s",
		res.CustomerName, res.PartySize, repositories.DateString(res.ReservedOn), res.StartTime, seatName)
	if calendarLinked {
		msg += "\nカレンダー登録済み"
	}
	return msg
}

func cancelledMessage(res *models.Reservation) string {
	return fmt.Sprintf("【予約キャンセル】\n%s様 %d名\n%s %s〜",
		res.CustomerName, res.PartySize, repositories.DateString(res.ReservedOn), res.StartTime)
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
