package handlers

import (
	"time"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Services bundles what the REST handlers depend on.
type Services struct {
	Auth           *services.AuthService
	Products       *services.ProductService
	Carts          *services.CartService
	Orders         *services.OrderService
	PaymentTimeout time.Duration
}

// SetupRoutes registers every API route on router.
func SetupRoutes(router fiber.Router, s Services) {
	auth := middleware.AuthRequired(s.Auth)

	NewAuthHandler(s.Auth).RegisterRoutes(router)
	NewProductHandler(s.Products).RegisterRoutes(router, auth)
	NewCartHandler(s.Carts).RegisterRoutes(router, auth)
	NewOrderHandler(s.Orders, s.PaymentTimeout).RegisterRoutes(router, auth)
	NewPaymentHandler(s.Orders, s.PaymentTimeout).RegisterRoutes(router, auth)
}
