package services

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/logging"
	"storefront/internal/models"

	"go.uber.org/zap"
)

// Routing keys of the events published on the order exchange.
const (
	EventOrderCreated           = "order.created"
	EventOrderPaid              = "order.paid"
	EventOrderCanceled          = "order.canceled"
	EventReconciliationRequired = "payment.reconciliation_required"
)

// EventPublisher sends a message to a broker exchange.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderEvent is the JSON body of every order event.
type OrderEvent struct {
	Event       string             `json:"event"`
	OrderID     string             `json:"order_id"`
	PgOrderID   string             `json:"pg_order_id"`
	UserID      string             `json:"user_id"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount int64              `json:"total_amount"`
	PaymentKey  string             `json:"payment_key,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func newOrderEvent(event string, order *models.Order, now time.Time) OrderEvent {
	e := OrderEvent{
		Event:       event,
		OrderID:     order.ID,
		PgOrderID:   order.PgOrderID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount(),
		OccurredAt:  now,
	}
	if order.PaymentKey != nil {
		e.PaymentKey = *order.PaymentKey
	}
	if order.CancelReason != nil {
		e.Reason = *order.CancelReason
	}
	return e
}

// publishEvent sends e; failures are logged and never returned.
func publishEvent(ctx context.Context, p EventPublisher, exchange string, e OrderEvent) {
	log := logging.FromContext(ctx).With(zap.String("event", e.Event), zap.String("order_id", e.OrderID))
	if p == nil {
		log.Debug("event publisher not configured, skipping event")
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		log.Warn("failed to marshal order event", zap.Error(err))
		return
	}
	if err := p.Publish(exchange, e.Event, body); err != nil {
		log.Warn("failed to publish order event", zap.Error(err))
		return
	}
	log.Debug("published order event")
}
