package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("line_no asc")
}

// Create inserts the order together with its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order and its items.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// GetByPgOrderID retrieves an order by its payment gateway correlation id.
func (r *GORMOrderRepository) GetByPgOrderID(ctx context.Context, pgOrderID string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "pg_order_id = ?", pgOrderID)
}

// LockByID is GetByID with a row lock held until the transaction ends.
func (r *GORMOrderRepository) LockByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Clauses(forUpdate), "id = ?", id)
}

// LockByPgOrderID is GetByPgOrderID with a row lock held until the transaction ends.
func (r *GORMOrderRepository) LockByPgOrderID(ctx context.Context, pgOrderID string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Clauses(forUpdate), "pg_order_id = ?", pgOrderID)
}

func (r *GORMOrderRepository) first(db *gorm.DB, query string, value string) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items", orderedItems).First(&order, query, value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %s not found", value)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", value, err)
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("user_id = ?", userID).
		Order("order_date desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// UpdateState persists the state-machine columns of an order.
func (r *GORMOrderRepository) UpdateState(ctx context.Context, order *models.Order) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"status":          order.Status,
		"payment_key":     order.PaymentKey,
		"refunded_amount": order.RefundedAmount,
		"cancel_reason":   order.CancelReason,
		"updated_at":      order.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order %s not found for update", order.ID)
	}
	return nil
}

// ClaimCancellation sets cancel_claimed_at with a single conditional UPDATE,
// so at most one concurrent caller sees a row affected. An open refund
// reconciliation for the order blocks the claim even after it went stale.
func (r *GORMOrderRepository) ClaimCancellation(ctx context.Context, id string, now, staleBefore time.Time) error {
	openRefundCase := r.db.Model(&models.PaymentReconciliation{}).Select("1").
		Where("payment_reconciliations.order_id = orders.id").
		Where("payment_reconciliations.operation = ? AND payment_reconciliations.resolved_at IS NULL", models.ReconcileCancel)
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPaid).
		Where("(cancel_claimed_at IS NULL OR cancel_claimed_at < ?)", staleBefore).
		Where("NOT EXISTS (?)", openRefundCase).
		UpdateColumn("cancel_claimed_at", now)
	if res.Error != nil {
		return fmt.Errorf("failed to claim cancellation of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.StateConflict("order %s is not %s or is already being canceled", id, models.OrderStatusPaid)
	}
	return nil
}

func (r *GORMOrderRepository) ReleaseCancellation(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		UpdateColumn("cancel_claimed_at", gorm.Expr("NULL")).Error
	if err != nil {
		return fmt.Errorf("failed to release cancellation of order %s: %w", id, err)
	}
	return nil
}
