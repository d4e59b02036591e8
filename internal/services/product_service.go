package services

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct validates and stores a new product. Only admins may call it.
func (s *ProductService) CreateProduct(ctx context.Context, caller Identity, product *models.Product) error {
	if err := authorize(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := validateInput(product, "product"); err != nil {
		return err
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct validates and updates an existing product. Only admins may call it.
func (s *ProductService) UpdateProduct(ctx context.Context, caller Identity, product *models.Product) error {
	if err := authorize(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := validateInput(product, "product"); err != nil {
		return err
	}
	return s.repo.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID. Only admins may call it.
func (s *ProductService) DeleteProduct(ctx context.Context, caller Identity, id string) error {
	if err := authorize(caller, models.RoleAdmin); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
