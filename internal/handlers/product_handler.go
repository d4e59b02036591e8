package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes registers the product routes. Reads are public; writes need
// an authenticated admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)

	adminOnly := middleware.RequireRole(models.RoleAdmin)
	productRoutes.Post("/", auth, adminOnly, h.HandleCreateProduct)
	productRoutes.Put("/:id", auth, adminOnly, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, adminOnly, h.HandleDeleteProduct)
}

// HandleGetProducts lists every product.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, err, "Could not retrieve products")
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Could not retrieve product")
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, err)
	}
	product.ID = ""

	if err := h.service.CreateProduct(c.UserContext(), middleware.IdentityFrom(c), &product); err != nil {
		return respondError(c, err, "Could not create product")
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, err)
	}
	product.ID = c.Params("id")

	if err := h.service.UpdateProduct(c.UserContext(), middleware.IdentityFrom(c), &product); err != nil {
		return respondError(c, err, "Could not update product")
	}
	updated, err := h.service.GetProductByID(c.UserContext(), product.ID)
	if err != nil {
		return respondError(c, err, "Could not retrieve product")
	}
	return c.JSON(updated)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), middleware.IdentityFrom(c), id); err != nil {
		return respondError(c, err, "Could not delete product")
	}
	return c.JSON(fiber.Map{
		"message": "Product " + id + " deleted successfully",
	})
}
