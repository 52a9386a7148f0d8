package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/sheve777/kanpai-sub002/pkg/httpclient"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Config holds chat completion collaborator settings
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Message is one turn of a chat exchange
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the assistant reply plus the tokens actually consumed
type Completion struct {
	Text       string
	TokensUsed int64
}

// Completer produces assistant replies
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// Client implements Completer against a chat completion HTTP API
type Client struct {
	http   *httpclient.Client
	config Config
	logger ectologger.Logger
}

// NewClient creates a new chat completion client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Config{
			Timeout:         cfg.Timeout,
			MaxIdleConns:    20,
			IdleConnTimeout: 90 * time.Second,
		}, logger),
		config: cfg,
		logger: logger,
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Complete requests one assistant reply
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	ctx, span := tracing.StartSpan(ctx, "chat.Client.Complete")
	defer span.End()

	payload := completionRequest{Model: c.config.Model, Messages: messages}
	headers := map[string]string{"Authorization": "Bearer " + c.config.APIKey}

	resp, err := c.http.PostJSON(ctx, c.config.BaseURL+"/v1/chat/completions", payload, headers)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("chat completion returned status %d", resp.StatusCode)
	}

	var parsed completionResponse
	if err := resp.Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &Completion{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
