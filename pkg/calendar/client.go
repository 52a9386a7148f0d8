// Package calendar talks to the external calendar collaborator. Event ids
// are opaque to us; idempotent deletion treats a missing event as success.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/sheve777/kanpai-sub002/pkg/effects"
	"github.com/sheve777/kanpai-sub002/pkg/httpclient"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Config holds calendar collaborator settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements effects.Calendar against the calendar HTTP API
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	logger  ectologger.Logger
}

// NewClient creates a new calendar client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Config{
			Timeout:         cfg.Timeout,
			MaxIdleConns:    20,
			IdleConnTimeout: 90 * time.Second,
		}, logger),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type eventPayload struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type eventResponse struct {
	ID string `json:"id"`
}

// CreateEvent creates a calendar event and returns its external id
func (c *Client) CreateEvent(ctx context.Context, calendarID string, event effects.CalendarEvent) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "calendar.Client.CreateEvent")
	defer span.End()

	payload := eventPayload{
		Summary:     event.Title,
		Description: event.Description,
		Start:       event.Start.Format(time.RFC3339),
		End:         event.End.Format(time.RFC3339),
	}

	resp, err := c.http.PostJSON(ctx, c.eventsURL(calendarID), payload, c.headers())
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("calendar event create returned status %d", resp.StatusCode)
	}

	var created eventResponse
	if err := resp.Decode(&created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar event create returned no event id")
	}

	return created.ID, nil
}

// DeleteEvent deletes a calendar event. A 404 or 410 means the event is
// already gone, which is the state we wanted.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, span := tracing.StartSpan(ctx, "calendar.Client.DeleteEvent")
	defer span.End()

	resp, err := c.http.Delete(ctx, c.eventsURL(calendarID)+"/"+url.PathEscape(eventID), c.headers())
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"event_id": eventID,
		}).Debug("calendar event already deleted")
		return nil
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("calendar event delete returned status %d", resp.StatusCode)
	}

	return nil
}

// IsFree reports whether the calendar has no event in the given range
func (c *Client) IsFree(ctx context.Context, calendarID string, start, end time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "calendar.Client.IsFree")
	defer span.End()

	query := url.Values{}
	query.Set("start", start.Format(time.RFC3339))
	query.Set("end", end.Format(time.RFC3339))

	resp, err := c.http.Get(ctx, c.eventsURL(calendarID)+"/freebusy?"+query.Encode(), c.headers())
	if err != nil {
		return false, err
	}
	if !resp.IsSuccess() {
		return false, fmt.Errorf("calendar freebusy returned status %d", resp.StatusCode)
	}

	var result struct {
		Free bool `json:"free"`
	}
	if err := resp.Decode(&result); err != nil {
		return false, err
	}

	return result.Free, nil
}

func (c *Client) eventsURL(calendarID string) string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}
