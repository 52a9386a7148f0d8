package handlers

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/chat"
	"github.com/sheve777/kanpai-sub002/pkg/effects"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// WebhookHandler receives LINE webhook events for a store's bot and routes
// text messages through the chat concierge. The webhook must answer 200
// quickly regardless of downstream outcomes, so per-event failures are
// logged and swallowed.
type WebhookHandler struct {
	chat     *chat.Service
	notifier effects.Notifier
	logger   ectologger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(chatService *chat.Service, notifier effects.Notifier, logger ectologger.Logger) *WebhookHandler {
	return &WebhookHandler{
		chat:     chatService,
		notifier: notifier,
		logger:   logger,
	}
}

// WebhookPayload is the LINE webhook envelope
type WebhookPayload struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is one event inside a webhook delivery
type WebhookEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Source     WebhookSource   `json:"source"`
	Message    *WebhookMessage `json:"message,omitempty"`
}

// WebhookSource identifies who triggered the event
type WebhookSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// WebhookMessage is the message content of a message event
type WebhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Register registers webhook routes
func (h *WebhookHandler) Register(g *echo.Group) {
	g.POST("", h.Receive)
}

// Receive handles a webhook delivery
func (h *WebhookHandler) Receive(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "WebhookHandler.Receive")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	storeID, err := ParseUUID(c, "store_id")
	if err != nil {
		return err
	}

	var payload WebhookPayload
	if err := c.Bind(&payload); err != nil {
		return BadRequest("invalid webhook payload")
	}

	for _, event := range payload.Events {
		if event.Type != "message" || event.Message == nil || event.Message.Type != "text" {
			continue
		}
		if event.Source.UserID == "" {
			continue
		}

		reply, err := h.chat.Reply(ctx, storeID, event.Source.UserID, event.Message.Text)
		if err != nil {
			h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"store_id": storeID,
				"user_id":  event.Source.UserID,
			}).Error("Failed to produce chat reply")
			continue
		}

		if err := h.notifier.Push(ctx, event.Source.UserID, reply); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to push chat reply")
		}
	}

	return c.NoContent(http.StatusOK)
}
