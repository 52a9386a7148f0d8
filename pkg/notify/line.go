// Package notify pushes operator notifications over the LINE Messaging API.
// Delivery is advisory: the caller logs failures and moves on, there is no
// retry contract.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/sheve777/kanpai-sub002/pkg/httpclient"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Config holds LINE Messaging API settings
type Config struct {
	BaseURL      string
	ChannelToken string
	Timeout      time.Duration
}

// Client implements effects.Notifier over LINE push messages
type Client struct {
	http         *httpclient.Client
	baseURL      string
	channelToken string
	logger       ectologger.Logger
}

// NewClient creates a new LINE push client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Config{
			Timeout:         cfg.Timeout,
			MaxIdleConns:    20,
			IdleConnTimeout: 90 * time.Second,
		}, logger),
		baseURL:      cfg.BaseURL,
		channelToken: cfg.ChannelToken,
		logger:       logger,
	}
}

type pushPayload struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Push sends a text message to the recipient
func (c *Client) Push(ctx context.Context, recipientID, message string) error {
	ctx, span := tracing.StartSpan(ctx, "notify.Client.Push")
	defer span.End()

	payload := pushPayload{
		To:       recipientID,
		Messages: []textMessage{{Type: "text", Text: message}},
	}

	headers := map[string]string{"Authorization": "Bearer " + c.channelToken}

	resp, err := c.http.PostJSON(ctx, c.baseURL+"/v2/bot/message/push", payload, headers)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("push message returned status %d", resp.StatusCode)
	}

	return nil
}
