package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("name asc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update updates the catalog fields of an existing product.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", product.ID).Updates(map[string]interface{}{
		"name":           product.Name,
		"description":    product.Description,
		"price":          product.Price,
		"stock_quantity": product.StockQuantity,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product with ID %s not found for update", product.ID)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product with ID %s not found for deletion", id)
	}
	return nil
}

// DecreaseStock removes quantity units from the product's stock.
func (r *GORMProductRepository) DecreaseStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(ctx, id, func(p *models.Product) error { return p.DecreaseStock(quantity) })
}

// IncreaseStock returns quantity units to the product's stock.
func (r *GORMProductRepository) IncreaseStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(ctx, id, func(p *models.Product) error { return p.IncreaseStock(quantity) })
}

// adjustStock locks the product row, applies the ledger change and writes it
// back. The write is also guarded on the previously read stock value so it
// stays safe when called outside a transaction.
func (r *GORMProductRepository) adjustStock(ctx context.Context, id string, apply func(*models.Product) error) error {
	var product models.Product
	if err := r.db.WithContext(ctx).Clauses(forUpdate).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("product with ID %s not found", id)
		}
		return fmt.Errorf("failed to lock product %s: %w", id, err)
	}

	previous := product.StockQuantity
	if err := apply(&product); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock_quantity = ?", id, previous).
		Update("stock_quantity", product.StockQuantity)
	if res.Error != nil {
		return fmt.Errorf("failed to update stock for product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindConflict, "stock of product %s changed concurrently", id)
	}
	return nil
}
