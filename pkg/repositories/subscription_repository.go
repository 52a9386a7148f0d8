package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/sheve777/kanpai-sub002/pkg/database"
	"github.com/sheve777/kanpai-sub002/pkg/models"
	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// SubscriptionRepo resolves a store's active plan
type SubscriptionRepo interface {
	ActivePlan(ctx context.Context, storeID uuid.UUID) (*models.Plan, error)
	ChangePlan(ctx context.Context, storeID, planID uuid.UUID) (*models.Subscription, error)
}

// SubscriptionRepository implements SubscriptionRepo
type SubscriptionRepository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db database.DB, logger ectologger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

// ActivePlan returns the plan behind the store's single active subscription.
// Returns nil when the store has no active subscription.
func (r *SubscriptionRepository) ActivePlan(ctx context.Context, storeID uuid.UUID) (*models.Plan, error) {
	ctx, span := tracing.StartSpan(ctx, "SubscriptionRepository.ActivePlan")
	defer span.End()

	query := `
		SELECT p.id, p.code, p.name, p.token_limit, p.broadcast_limit, p.menu_ops_limit, p.report_tier, p.created_at, p.updated_at
		FROM plans p
		JOIN subscriptions s ON s.plan_id = p.id
		WHERE s.store_id = $1
		AND s.status = 'active'
	`

	plan := models.Plan{}
	err := r.db.GetContext(ctx, &plan, query, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to resolve active plan")
		return nil, fmt.Errorf("failed to resolve active plan: %w", err)
	}

	return &plan, nil
}

// ChangePlan ends the current active subscription and appends a new one. The
// subscription table keeps the full history, so the old row is closed rather
// than rewritten.
func (r *SubscriptionRepository) ChangePlan(ctx context.Context, storeID, planID uuid.UUID) (*models.Subscription, error) {
	ctx, span := tracing.StartSpan(ctx, "SubscriptionRepository.ChangePlan")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	closeQuery := `
		UPDATE subscriptions
		SET status = 'inactive', ends_at = $1
		WHERE store_id = $2
		AND status = 'active'
	`
	_, err = tx.ExecContext(txCtx, closeQuery, now, storeID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to close active subscription")
		return nil, fmt.Errorf("failed to close active subscription: %w", err)
	}

	sub := models.Subscription{
		ID:        uuid.New(),
		StoreID:   storeID,
		PlanID:    planID,
		Status:    models.SubscriptionActive,
		StartsAt:  now,
		CreatedAt: now,
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(models.Subscription{}.TableName())
	ib.Cols("id", "store_id", "plan_id", "status", "starts_at", "created_at")
	ib.Values(sub.ID, sub.StoreID, sub.PlanID, sub.Status, sub.StartsAt, sub.CreatedAt)

	query, args := ib.Build()

	_, err = tx.ExecContext(txCtx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert subscription")
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}

	if err = tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("failed to commit subscription change: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"store_id": storeID,
		"plan_id":  planID,
	}).Info("changed subscription plan")

	return &sub, nil
}
