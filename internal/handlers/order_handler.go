package handlers

import (
	"time"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	timeout time.Duration
}

// NewOrderHandler creates a new OrderHandler. Refunds requested while
// canceling an order are abandoned after timeout; zero means no limit.
func NewOrderHandler(service *services.OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		service: service,
		timeout: timeout,
	}
}

// OrderResponse is an order with its computed total.
type OrderResponse struct {
	models.Order
	OrderName   string `json:"order_name"`
	TotalAmount int64  `json:"total_amount"`
}

func newOrderResponse(order *models.Order) OrderResponse {
	return OrderResponse{Order: *order, OrderName: order.OrderName(), TotalAmount: order.TotalAmount()}
}

// CancelOrderRequest is the optional body of a cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// RegisterRoutes registers the order routes; all of them need authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Delete("/:id", h.HandleCancelOrder)
}

// HandleGetOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetOrderHistory(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err, "Could not retrieve orders")
	}
	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	return c.JSON(resp)
}

// HandleGetOrderByID retrieves one of the caller's orders.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderDetails(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not retrieve order")
	}
	return c.JSON(newOrderResponse(order))
}

// HandleCreateOrder creates a PENDING order and returns the checkout details.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	checkout, err := h.service.CreateOrder(c.UserContext(), middleware.IdentityFrom(c), req)
	if err != nil {
		return respondError(c, err, "Could not create order")
	}
	return c.Status(fiber.StatusCreated).JSON(checkout)
}

// HandleCancelOrder cancels a paid order and refunds it.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req CancelOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	ctx, cancel := gatewayContext(c, h.timeout)
	defer cancel()

	order, err := h.service.CancelOrder(ctx, middleware.IdentityFrom(c), c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, err, "Could not cancel order")
	}
	return c.JSON(newOrderResponse(order))
}
