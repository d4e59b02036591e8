package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// Locking reads are plain reads: MockStore transactions are already exclusive.
type MockOrderRepository struct {
	store *MockStore
}

// Create adds a new order and its items.
func (r *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.store.view(func(d *memoryData) error {
		if _, ok := d.orders[order.ID]; ok {
			return fmt.Errorf("order with ID %s already exists", order.ID)
		}
		for _, o := range d.orders {
			if o.PgOrderID == order.PgOrderID {
				return fmt.Errorf("order with pg order ID %s already exists", order.PgOrderID)
			}
		}
		now := r.store.now()
		order.CreatedAt, order.UpdatedAt = now, now
		for i := range order.Items {
			order.Items[i].CreatedAt = now
			d.orderItems[order.Items[i].ID] = order.Items[i]
		}
		row := *order
		row.Items = nil
		d.orders[order.ID] = row
		return nil
	})
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.find(id, func(o models.Order) bool { return o.ID == id })
}

// GetByPgOrderID returns an order by its gateway correlation id.
func (r *MockOrderRepository) GetByPgOrderID(ctx context.Context, pgOrderID string) (*models.Order, error) {
	return r.find(pgOrderID, func(o models.Order) bool { return o.PgOrderID == pgOrderID })
}

func (r *MockOrderRepository) LockByID(ctx context.Context, id string) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *MockOrderRepository) LockByPgOrderID(ctx context.Context, pgOrderID string) (*models.Order, error) {
	return r.GetByPgOrderID(ctx, pgOrderID)
}

func (r *MockOrderRepository) find(key string, match func(models.Order) bool) (*models.Order, error) {
	var found *models.Order
	err := r.store.view(func(d *memoryData) error {
		for _, o := range d.orders {
			if match(o) {
				o.Items = d.itemsOfOrder(o.ID)
				found = &o
				return nil
			}
		}
		return apperr.NotFound("order %s not found", key)
	})
	return found, err
}

// ListByUser returns the user's orders, newest first.
func (r *MockOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.store.view(func(d *memoryData) error {
		for _, o := range d.orders {
			if o.UserID == userID {
				o.Items = d.itemsOfOrder(o.ID)
				orders = append(orders, o)
			}
		}
		return nil
	})
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderDate.After(orders[j].OrderDate) })
	return orders, err
}

// UpdateState updates the state-machine fields of an order.
func (r *MockOrderRepository) UpdateState(ctx context.Context, order *models.Order) error {
	return r.store.view(func(d *memoryData) error {
		existing, ok := d.orders[order.ID]
		if !ok {
			return apperr.NotFound("order %s not found for update", order.ID)
		}
		existing.Status = order.Status
		existing.PaymentKey = order.PaymentKey
		existing.RefundedAmount = order.RefundedAmount
		existing.CancelReason = order.CancelReason
		existing.UpdatedAt = order.UpdatedAt
		d.orders[order.ID] = existing
		return nil
	})
}

func (r *MockOrderRepository) ClaimCancellation(ctx context.Context, id string, now, staleBefore time.Time) error {
	return r.store.view(func(d *memoryData) error {
		existing, ok := d.orders[id]
		if !ok || existing.Status != models.OrderStatusPaid ||
			(existing.CancelClaimedAt != nil && !existing.CancelClaimedAt.Before(staleBefore)) ||
			d.hasOpenRefundCase(id) {
			return apperr.StateConflict("order %s is not %s or is already being canceled", id, models.OrderStatusPaid)
		}
		claimed := now
		existing.CancelClaimedAt = &claimed
		d.orders[id] = existing
		return nil
	})
}

func (r *MockOrderRepository) ReleaseCancellation(ctx context.Context, id string) error {
	return r.store.view(func(d *memoryData) error {
		if existing, ok := d.orders[id]; ok {
			existing.CancelClaimedAt = nil
			d.orders[id] = existing
		}
		return nil
	})
}

func (d *memoryData) hasOpenRefundCase(orderID string) bool {
	for _, rec := range d.reconciliations {
		if rec.OrderID == orderID && rec.Operation == models.ReconcileCancel && rec.ResolvedAt == nil {
			return true
		}
	}
	return false
}
