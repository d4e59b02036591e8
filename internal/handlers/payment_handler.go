package handlers

import (
	"context"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles payment confirmation callbacks from the client.
type PaymentHandler struct {
	service *services.OrderService
	timeout time.Duration
}

// NewPaymentHandler creates a PaymentHandler. Gateway calls made on behalf of
// a request are abandoned after timeout; zero means no limit.
func NewPaymentHandler(service *services.OrderService, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{service: service, timeout: timeout}
}

func (h *PaymentHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	paymentRoutes := router.Group("/payments", auth)
	paymentRoutes.Post("/confirm", h.HandleConfirm)
	paymentRoutes.Get("/reconciliations", middleware.RequireRole(models.RoleAdmin), h.HandleListReconciliations)
}

// HandleConfirm verifies the amount and confirms the payment with the provider.
func (h *PaymentHandler) HandleConfirm(c *fiber.Ctx) error {
	var req payment.Verification
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := gatewayContext(c, h.timeout)
	defer cancel()

	confirmation, err := h.service.ConfirmPayment(ctx, req)
	if err != nil {
		return respondError(c, err, "Payment confirmation failed")
	}
	return c.JSON(confirmation)
}

// HandleListReconciliations lists charges and refunds awaiting manual settlement.
func (h *PaymentHandler) HandleListReconciliations(c *fiber.Ctx) error {
	recs, err := h.service.ListOpenReconciliations(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err, "Could not retrieve reconciliations")
	}
	return c.JSON(recs)
}

// gatewayContext bounds the request context by timeout for handlers that call
// the payment gateway. A zero timeout leaves it unbounded.
func gatewayContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), timeout)
}
