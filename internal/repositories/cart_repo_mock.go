package repositories

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockCartRepository is an in-memory implementation of CartRepository.
type MockCartRepository struct {
	store *MockStore
}

func (r *MockCartRepository) GetOrCreateByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.store.view(func(d *memoryData) error {
		for _, c := range d.carts {
			if c.UserID == userID {
				cart = c
				cart.Items = d.itemsOfCart(c.ID)
				return nil
			}
		}
		now := r.store.now()
		cart = models.Cart{ID: uuid.New().String(), UserID: userID, CreatedAt: now, UpdatedAt: now}
		d.carts[cart.ID] = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *MockCartRepository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.store.view(func(d *memoryData) error {
		now := r.store.now()
		if item.ID == "" {
			item.ID = uuid.New().String()
			item.CreatedAt = now
		} else if existing, ok := d.cartItems[item.ID]; !ok || existing.CartID != item.CartID {
			return apperr.NotFound("cart item %s not found", item.ID)
		}
		item.UpdatedAt = now
		d.cartItems[item.ID] = *item
		return nil
	})
}

func (r *MockCartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	return r.store.view(func(d *memoryData) error {
		item, ok := d.cartItems[itemID]
		if !ok || item.CartID != cartID {
			return apperr.NotFound("cart item %s not found in cart", itemID)
		}
		delete(d.cartItems, itemID)
		return nil
	})
}

func (r *MockCartRepository) Clear(ctx context.Context, cartID string) error {
	return r.store.view(func(d *memoryData) error {
		for id, item := range d.cartItems {
			if item.CartID == cartID {
				delete(d.cartItems, id)
			}
		}
		return nil
	})
}
