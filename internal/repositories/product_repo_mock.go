package repositories

import (
	"context"
	"sort"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	store *MockStore
}

// GetAll returns all products ordered by name.
func (r *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var productList []models.Product
	err := r.store.view(func(d *memoryData) error {
		productList = make([]models.Product, 0, len(d.products))
		for _, p := range d.products {
			productList = append(productList, p)
		}
		return nil
	})
	sort.Slice(productList, func(i, j int) bool { return productList[i].Name < productList[j].Name })
	return productList, err
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.store.view(func(d *memoryData) error {
		p, ok := d.products[id]
		if !ok {
			return apperr.NotFound("product with ID %s not found", id)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := r.store.now()
	product.CreatedAt, product.UpdatedAt = now, now
	return r.store.view(func(d *memoryData) error {
		d.products[product.ID] = *product
		return nil
	})
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.store.view(func(d *memoryData) error {
		existing, ok := d.products[product.ID]
		if !ok {
			return apperr.NotFound("product with ID %s not found for update", product.ID)
		}
		existing.Name = product.Name
		existing.Description = product.Description
		existing.Price = product.Price
		existing.StockQuantity = product.StockQuantity
		existing.UpdatedAt = r.store.now()
		d.products[product.ID] = existing
		return nil
	})
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(ctx context.Context, id string) error {
	return r.store.view(func(d *memoryData) error {
		if _, ok := d.products[id]; !ok {
			return apperr.NotFound("product with ID %s not found for deletion", id)
		}
		delete(d.products, id)
		return nil
	})
}

// DecreaseStock removes quantity units from the product's stock.
func (r *MockProductRepository) DecreaseStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(id, func(p *models.Product) error { return p.DecreaseStock(quantity) })
}

// IncreaseStock returns quantity units to the product's stock.
func (r *MockProductRepository) IncreaseStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(id, func(p *models.Product) error { return p.IncreaseStock(quantity) })
}

func (r *MockProductRepository) adjustStock(id string, apply func(*models.Product) error) error {
	return r.store.view(func(d *memoryData) error {
		p, ok := d.products[id]
		if !ok {
			return apperr.NotFound("product with ID %s not found", id)
		}
		if err := apply(&p); err != nil {
			return err
		}
		p.UpdatedAt = r.store.now()
		d.products[id] = p
		return nil
	})
}
