package models

import (
	"fmt"
	"time"

	"storefront/internal/apperr"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// transitions lists, per target state, the only state it may be entered from.
var transitions = map[OrderStatus]OrderStatus{
	OrderStatusPaid:      OrderStatusPending,
	OrderStatusCanceled:  OrderStatusPaid,
	OrderStatusCompleted: OrderStatusPaid,
}

// IsTerminal reports whether no further transitions leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

// OrderItem is an immutable line of an order. OrderPrice is the product price
// captured when the order was created.
type OrderItem struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string    `json:"order_id" gorm:"index;type:varchar(36);not null"`
	ProductID   string    `json:"product_id" gorm:"type:varchar(36);not null"`
	ProductName string    `json:"product_name" gorm:"type:varchar(100)"`
	OrderPrice  int64     `json:"order_price" gorm:"not null"`
	Count       int       `json:"count" gorm:"not null"`
	LineNo      int       `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subtotal is OrderPrice * Count.
func (i OrderItem) Subtotal() int64 {
	return i.OrderPrice * int64(i.Count)
}

// Order represents a customer order.
type Order struct {
	ID             string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string      `json:"user_id" gorm:"index;type:varchar(36);not null"`
	PgOrderID      string      `json:"pg_order_id" gorm:"uniqueIndex;type:varchar(64);not null"`
	Status         OrderStatus `json:"status" gorm:"type:varchar(16);not null"`
	OrderDate      time.Time   `json:"order_date" gorm:"index;not null"`
	PaymentKey     *string     `json:"payment_key,omitempty" gorm:"type:varchar(200)"`
	RefundedAmount *int64      `json:"refunded_amount,omitempty"`
	CancelReason   *string     `json:"cancel_reason,omitempty" gorm:"type:varchar(500)"`
	Items          []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// CancelClaimedAt is set while one request holds the right to refund the order.
	CancelClaimedAt *time.Time `json:"-"`
}

// NewOrder builds a PENDING order with a fresh gateway correlation id and
// stamps the order id onto every item.
func NewOrder(userID string, items []OrderItem, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("an order needs at least one item")
	}
	order := &Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		PgOrderID: uuid.New().String(),
		Status:    OrderStatusPending,
		OrderDate: now,
		Items:     make([]OrderItem, 0, len(items)),
	}
	for i, item := range items {
		if item.Count < 1 {
			return nil, apperr.Validation("item count must be at least 1 for product %s", item.ProductID)
		}
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.OrderID = order.ID
		item.LineNo = i
		order.Items = append(order.Items, item)
	}
	return order, nil
}

// TotalAmount sums the item subtotals. It is recomputed on every call.
func (o *Order) TotalAmount() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}

// OrderName is the label shown to the payment provider, e.g. "Laptop and 2 more".
func (o *Order) OrderName() string {
	switch len(o.Items) {
	case 0:
		return "No items"
	case 1:
		return o.Items[0].ProductName
	default:
		return fmt.Sprintf("%s and %d more", o.Items[0].ProductName, len(o.Items)-1)
	}
}

func (o *Order) transition(to OrderStatus, now time.Time) error {
	from, ok := transitions[to]
	if !ok || o.Status != from {
		return apperr.StateConflict("order %s cannot move from %s to %s", o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// MarkPaid moves a PENDING order to PAID and records the gateway payment key.
func (o *Order) MarkPaid(paymentKey string, now time.Time) error {
	if err := o.transition(OrderStatusPaid, now); err != nil {
		return err
	}
	o.PaymentKey = &paymentKey
	return nil
}

// Cancel moves a PAID order to CANCELED, recording the reason and the refund
// of the full order total.
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.transition(OrderStatusCanceled, now); err != nil {
		return err
	}
	refunded := o.TotalAmount()
	o.RefundedAmount = &refunded
	o.CancelReason = &reason
	return nil
}

// MarkCompleted records external fulfillment of a PAID order.
func (o *Order) MarkCompleted(now time.Time) error {
	return o.transition(OrderStatusCompleted, now)
}
