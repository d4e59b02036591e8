package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// RegisterRoutes registers the cart routes; all of them need authentication.
func (h *CartHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	cartRoutes := router.Group("/cart", auth)
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
}

// HandleGetCart returns the caller's cart priced at current catalog prices.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, err, "Could not retrieve cart")
	}
	return c.JSON(cart)
}

// HandleAddItem adds a product to the cart and returns the updated cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req services.AddCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	cart, err := h.service.AddItem(c.UserContext(), middleware.IdentityFrom(c), req)
	if err != nil {
		return respondError(c, err, "Could not add item to cart")
	}
	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.service.RemoveItem(c.UserContext(), middleware.IdentityFrom(c), c.Params("id")); err != nil {
		return respondError(c, err, "Could not remove item from cart")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
