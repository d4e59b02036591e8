package services

import (
	"context"
	"sort"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repositories"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultCancelReason = "canceled by customer"

// cancelClaimTTL bounds how long a crashed cancellation can block a retry.
const cancelClaimTTL = 10 * time.Minute

var tracer = otel.Tracer("storefront/services")

// OrderItemRequest is one requested line of a new order.
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// CreateOrderRequest lists the products to order.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Checkout is what the client needs to open the payment provider's widget.
type Checkout struct {
	OrderID       string `json:"order_id"`
	PgOrderID     string `json:"pg_order_id"`
	OrderName     string `json:"order_name"`
	Amount        int64  `json:"amount"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
}

// OrderService orchestrates order creation, payment confirmation and
// cancellation. Every mutation runs inside one store transaction, and no
// transaction is open while the payment gateway is being called.
type OrderService struct {
	store          repositories.Store
	gateway        payment.Gateway
	publisher      EventPublisher
	exchange       string
	metrics        *metrics.OrderMetrics
	refundOnCancel bool
	now            func() time.Time
}

// OrderServiceOption configures an OrderService.
type OrderServiceOption func(*OrderService)

// WithPublisher publishes order events to exchange through p.
func WithPublisher(p EventPublisher, exchange string) OrderServiceOption {
	return func(s *OrderService) {
		s.publisher = p
		s.exchange = exchange
	}
}

// WithMetrics records order and payment outcomes on m.
func WithMetrics(m *metrics.OrderMetrics) OrderServiceOption {
	return func(s *OrderService) { s.metrics = m }
}

// WithRefundOnCancel controls whether CancelOrder asks the gateway for a refund.
func WithRefundOnCancel(enabled bool) OrderServiceOption {
	return func(s *OrderService) { s.refundOnCancel = enabled }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) OrderServiceOption {
	return func(s *OrderService) { s.now = now }
}

// NewOrderService creates a new OrderService.
func NewOrderService(store repositories.Store, gateway payment.Gateway, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		store:          store,
		gateway:        gateway,
		exchange:       "order",
		refundOnCancel: true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder turns the requested items into a PENDING order priced at the
// current catalog prices and empties the caller's cart. Stock is not touched.
func (s *OrderService) CreateOrder(ctx context.Context, caller Identity, req CreateOrderRequest) (checkout *Checkout, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("user.id", caller.UserID),
		attribute.Int("order.lines", len(req.Items)),
	))
	defer func() { endSpan(span, err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	if err := validateInput(req, "order request"); err != nil {
		return nil, err
	}

	var (
		order *models.Order
		user  *models.User
	)
	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		var err error
		user, err = tx.Users().GetByID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		cart, err := tx.Carts().GetOrCreateByUserID(ctx, caller.UserID)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		for _, line := range req.Items {
			product, err := tx.Products().GetByID(ctx, line.ProductID)
			if err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				OrderPrice:  product.Price,
				Count:       line.Quantity,
			})
		}

		order, err = models.NewOrder(caller.UserID, items, s.now())
		if err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return tx.Carts().Clear(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.metrics.OrderCreated()
	logging.FromContext(ctx).Info("order created",
		zap.String("order_id", order.ID),
		zap.String("pg_order_id", order.PgOrderID),
		zap.String("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount()),
	)
	publishEvent(ctx, s.publisher, s.exchange, newOrderEvent(EventOrderCreated, order, s.now()))

	return &Checkout{
		OrderID:       order.ID,
		PgOrderID:     order.PgOrderID,
		OrderName:     order.OrderName(),
		Amount:        order.TotalAmount(),
		CustomerEmail: user.Email,
		CustomerName:  user.Username,
	}, nil
}

// ConfirmPayment settles a PENDING order with the payment gateway. The claimed
// amount must equal the recomputed order total before the gateway is called.
// Once the gateway approves, the order is marked PAID and stock is decremented
// in a single transaction.
func (s *OrderService) ConfirmPayment(ctx context.Context, v payment.Verification) (confirmation *payment.Confirmation, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ConfirmPayment", trace.WithAttributes(
		attribute.String("payment.order_id", v.OrderID),
		attribute.String("payment.provider", v.Provider),
	))
	defer func() {
		if err != nil {
			s.metrics.PaymentConfirmed(string(apperr.KindOf(err)))
		} else {
			s.metrics.PaymentConfirmed("paid")
		}
		endSpan(span, err)
	}()

	if err := validateInput(v, "payment verification"); err != nil {
		return nil, err
	}

	order, err := s.store.Orders().GetByPgOrderID(ctx, v.OrderID)
	if err != nil {
		return nil, err
	}
	if total := order.TotalAmount(); total != v.Amount {
		return nil, apperr.Validation("payment amount %d does not match order total %d", v.Amount, total)
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperr.StateConflict("order %s is %s, not %s", order.ID, order.Status, models.OrderStatusPending)
	}

	confirmation, err = s.callGateway(ctx, "confirm", func(ctx context.Context) (*payment.Confirmation, error) {
		return s.gateway.Confirm(ctx, v)
	})
	if err != nil {
		logging.FromContext(ctx).Warn("payment confirmation failed, order stays pending",
			zap.String("order_id", order.ID), zap.Error(err))
		return nil, err
	}

	// The charge is captured; a caller that goes away must not roll it back.
	commitCtx := context.WithoutCancel(ctx)
	var paid *models.Order
	err = s.store.WithinTransaction(commitCtx, func(tx repositories.Store) error {
		locked, err := tx.Orders().LockByPgOrderID(commitCtx, v.OrderID)
		if err != nil {
			return err
		}
		if err := locked.MarkPaid(v.PaymentKey, s.now()); err != nil {
			return err
		}
		if err := tx.Orders().UpdateState(commitCtx, locked); err != nil {
			return err
		}
		for _, item := range inLockOrder(locked.Items) {
			if err := tx.Products().DecreaseStock(commitCtx, item.ProductID, item.Count); err != nil {
				return err
			}
		}
		paid = locked
		return nil
	})
	if err != nil {
		s.flagForReconciliation(ctx, models.ReconcileConfirm, order, v.PaymentKey, v.Amount, err)
		return nil, err
	}

	logging.FromContext(ctx).Info("order paid",
		zap.String("order_id", paid.ID),
		zap.String("payment_key", v.PaymentKey),
		zap.Int64("amount", v.Amount),
	)
	publishEvent(ctx, s.publisher, s.exchange, newOrderEvent(EventOrderPaid, paid, s.now()))
	return confirmation, nil
}

// CancelOrder cancels a PAID order owned by the caller: the payment is
// refunded with the gateway, every item is restocked and the full total is
// recorded as refunded. The order is claimed before the gateway is called so
// concurrent cancellations request at most one refund.
func (s *OrderService) CancelOrder(ctx context.Context, caller Identity, orderID, reason string) (canceled *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("user.id", caller.UserID),
	))
	defer func() {
		if err != nil {
			s.metrics.OrderCanceled(string(apperr.KindOf(err)))
		} else {
			s.metrics.OrderCanceled("canceled")
		}
		endSpan(span, err)
	}()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = defaultCancelReason
	}

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(caller.UserID) {
		return nil, apperr.Forbidden("order %s does not belong to the caller", orderID)
	}
	if order.Status != models.OrderStatusPaid {
		return nil, apperr.StateConflict("order %s is %s, only %s orders can be canceled", order.ID, order.Status, models.OrderStatusPaid)
	}

	now := s.now()
	if err := s.store.Orders().ClaimCancellation(ctx, orderID, now, now.Add(-cancelClaimTTL)); err != nil {
		return nil, err
	}

	refunded := false
	if s.refundOnCancel && order.PaymentKey != nil {
		paymentKey := *order.PaymentKey
		_, err := s.callGateway(ctx, "cancel", func(ctx context.Context) (*payment.Confirmation, error) {
			return s.gateway.Cancel(ctx, paymentKey, reason)
		})
		if err != nil {
			logging.FromContext(ctx).Warn("payment refund failed, order stays paid",
				zap.String("order_id", order.ID), zap.Error(err))
			s.releaseCancellation(ctx, orderID)
			return nil, err
		}
		refunded = true
	}

	commitCtx := ctx
	if refunded {
		// The refund went through; a caller that goes away must not undo the restock.
		commitCtx = context.WithoutCancel(ctx)
	}
	err = s.store.WithinTransaction(commitCtx, func(tx repositories.Store) error {
		locked, err := tx.Orders().LockByID(commitCtx, orderID)
		if err != nil {
			return err
		}
		if err := locked.Cancel(reason, s.now()); err != nil {
			return err
		}
		if err := tx.Orders().UpdateState(commitCtx, locked); err != nil {
			return err
		}
		for _, item := range inLockOrder(locked.Items) {
			if err := tx.Products().IncreaseStock(commitCtx, item.ProductID, item.Count); err != nil {
				return err
			}
		}
		canceled = locked
		return nil
	})
	if err != nil {
		if refunded {
			// The claim stays so nobody refunds the same payment twice.
			s.flagForReconciliation(ctx, models.ReconcileCancel, order, *order.PaymentKey, order.TotalAmount(), err)
		} else {
			s.releaseCancellation(ctx, orderID)
		}
		return nil, err
	}

	logging.FromContext(ctx).Info("order canceled",
		zap.String("order_id", canceled.ID),
		zap.String("reason", reason),
		zap.Int64("refunded_amount", *canceled.RefundedAmount),
	)
	publishEvent(ctx, s.publisher, s.exchange, newOrderEvent(EventOrderCanceled, canceled, s.now()))
	return canceled, nil
}

// GetOrderHistory returns the caller's orders, newest first.
func (s *OrderService) GetOrderHistory(ctx context.Context, caller Identity) ([]models.Order, error) {
	if err := authorize(caller); err != nil {
		return nil, err
	}
	return s.store.Orders().ListByUser(ctx, caller.UserID)
}

// GetOrderDetails returns one of the caller's orders.
func (s *OrderService) GetOrderDetails(ctx context.Context, caller Identity, orderID string) (*models.Order, error) {
	if err := authorize(caller); err != nil {
		return nil, err
	}
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(caller.UserID) {
		return nil, apperr.Forbidden("order %s does not belong to the caller", orderID)
	}
	return order, nil
}

// ListOpenReconciliations returns charges and refunds that still need manual settlement.
func (s *OrderService) ListOpenReconciliations(ctx context.Context, caller Identity) ([]models.PaymentReconciliation, error) {
	if err := authorize(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Reconciliations().ListOpen(ctx)
}

// callGateway runs call asynchronously and waits for it or for ctx to end.
// Errors without a kind are reported as gateway errors.
func (s *OrderService) callGateway(ctx context.Context, operation string, call func(ctx context.Context) (*payment.Confirmation, error)) (*payment.Confirmation, error) {
	ctx, span := tracer.Start(ctx, "payment.Gateway."+operation)
	start := time.Now()

	c, err := payment.Await(ctx, payment.Go(ctx, call))
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		err = apperr.Wrap(apperr.KindGateway, err, "payment gateway %s failed", operation)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveGateway(operation, outcome, time.Since(start))
	endSpan(span, err)
	return c, err
}

// releaseCancellation drops a cancellation claim after a failed attempt.
func (s *OrderService) releaseCancellation(ctx context.Context, orderID string) {
	if err := s.store.Orders().ReleaseCancellation(context.WithoutCancel(ctx), orderID); err != nil {
		logging.FromContext(ctx).Error("failed to release cancellation claim, retry is blocked until it expires",
			zap.String("order_id", orderID), zap.Error(err))
	}
}

// flagForReconciliation records a gateway charge or refund whose order update
// failed afterwards. The money moved, so an operator must settle it by hand.
func (s *OrderService) flagForReconciliation(ctx context.Context, operation string, order *models.Order, paymentKey string, amount int64, cause error) {
	if apperr.Is(cause, apperr.KindInsufficientStock) {
		s.metrics.Oversold()
	}
	s.metrics.ReconciliationFlagged(operation)

	reason := cause.Error()
	msg := "payment captured but order could not be marked paid, manual reconciliation required"
	if operation == models.ReconcileCancel {
		reason = "refunded but not restocked: " + reason
		msg = "payment refunded but order could not be canceled, manual reconciliation required"
	}
	log := logging.FromContext(ctx).With(
		zap.Bool("critical", true),
		zap.String("operation", operation),
		zap.String("order_id", order.ID),
		zap.String("pg_order_id", order.PgOrderID),
		zap.String("payment_key", paymentKey),
		zap.Int64("amount", amount),
	)
	log.Error(msg, zap.Error(cause))

	// The request may already be ending; the record must still be written.
	ctx = context.WithoutCancel(ctx)
	rec := &models.PaymentReconciliation{
		OrderID:    order.ID,
		PgOrderID:  order.PgOrderID,
		Operation:  operation,
		PaymentKey: paymentKey,
		Amount:     amount,
		Reason:     reason,
	}
	if err := s.store.Reconciliations().Create(ctx, rec); err != nil {
		log.Error("failed to record payment reconciliation", zap.Error(err))
	}

	event := newOrderEvent(EventReconciliationRequired, order, s.now())
	event.PaymentKey = paymentKey
	event.Reason = reason
	publishEvent(ctx, s.publisher, s.exchange, event)
}

// inLockOrder returns items sorted by product id so concurrent transactions
// lock product rows in the same order.
func inLockOrder(items []models.OrderItem) []models.OrderItem {
	sorted := make([]models.OrderItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
