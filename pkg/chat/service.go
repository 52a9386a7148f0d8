// Package chat is the conversational concierge. Token spend is checked
// against the quota gate before the completion call and recorded with the
// actual consumption afterwards, never an estimate.
package chat

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/quota"
	"github.com/sheve777/kanpai-sub002/pkg/repositories"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Service answers customer messages on behalf of a store
type Service struct {
	completer Completer
	gate      *quota.Gate
	stores    repositories.StoreRepo
	logger    ectologger.Logger
}

// NewService creates a new chat service
func NewService(completer Completer, gate *quota.Gate, stores repositories.StoreRepo, logger ectologger.Logger) *Service {
	return &Service{
		completer: completer,
		gate:      gate,
		stores:    stores,
		logger:    logger,
	}
}

// Reply produces the assistant reply for a user message. When the store's
// token budget is exhausted the reply is an in-character out-of-budget
// message, not an error: the conversation degrades gracefully.
func (s *Service) Reply(ctx context.Context, storeID uuid.UUID, sessionID, userText string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "chat.Service.Reply")
	defer span.End()

	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return "", err
	}
	if store == nil {
		return "", repositories.NotFound("store %s not found", storeID)
	}

	decision, err := s.gate.Check(ctx, storeID, models.ServiceChatbot)
	if err != nil {
		return "", err
	}
	if !decision.Admitted {
		return quota.OutOfBudgetMessage(store.PersonaTone), nil
	}

	completion, err := s.completer.Complete(ctx, []Message{
		{Role: "system", Content: personaPrompt(store)},
		{Role: "user", Content: userText},
	})
	if err != nil {
		return "", err
	}

	if err := s.gate.Record(ctx, storeID, models.ServiceChatbot, completion.TokensUsed); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"store_id":   storeID,
			"session_id": sessionID,
			"tokens":     completion.TokensUsed,
		}).Error("failed to record token usage")
	}

	return completion.Text, nil
}

func personaPrompt(store *models.Store) string {
	tone := "丁寧な敬語"
	switch store.PersonaTone {
	case quota.ToneFriendly:
		tone = "親しみやすい丁寧語"
	case quota.ToneCasual:
		tone = "くだけた話し言葉"
	}
	return fmt.Sprintf("あなたは居酒屋「%s」の接客スタッフです。%sで、予約やメニューの質問に簡潔に答えてください。営業時間は%s〜%sです。",
		store.Name, tone, store.OpenTime, store.CloseTime)
}
