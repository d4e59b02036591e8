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

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// GetOrCreateByUserID returns the user's cart, creating an empty one on first access.
func (r *GORMCartRepository) GetOrCreateByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where(models.Cart{UserID: userID}).
		Attrs(models.Cart{ID: uuid.New().String()}).
		FirstOrCreate(&cart).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create cart for user %s: %w", userID, err)
	}

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Order("position asc").Order("created_at asc").
		Find(&cart.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items of cart %s: %w", cart.ID, err)
	}
	return &cart, nil
}

// SaveItem inserts a new cart line or updates the quantity of an existing one.
func (r *GORMCartRepository) SaveItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
		if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
			return fmt.Errorf("failed to add item to cart %s: %w", item.CartID, err)
		}
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", item.ID, item.CartID).
		Update("quantity", item.Quantity)
	if res.Error != nil {
		return fmt.Errorf("failed to update cart item %s: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("cart item %s not found", item.ID)
	}
	return nil
}

// RemoveItem deletes a line from the cart. Lines of other carts are never touched.
func (r *GORMCartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove cart item %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("cart item %s not found in cart", itemID)
	}
	return nil
}

// Clear removes every line from the cart and keeps the cart itself.
func (r *GORMCartRepository) Clear(ctx context.Context, cartID string) error {
	err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to clear cart %s: %w", cartID, err)
	}
	return nil
}
