package services

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// AddCartItemRequest adds quantity units of a product to the caller's cart.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// CartLine is a cart item priced at the product's current catalog price.
type CartLine struct {
	models.CartItem
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Subtotal    int64  `json:"subtotal"`
}

// CartView is a cart with line subtotals and their total. Prices are read
// from the catalog on every call, so the total can change before checkout.
// A line whose product left the catalog is priced at zero.
type CartView struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Items      []CartLine `json:"items"`
	TotalPrice int64      `json:"total_price"`
}

// CartService manages the caller's cart. Every user has exactly one cart,
// created on first access.
type CartService struct {
	store repositories.Store
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store) *CartService {
	return &CartService{store: store}
}

// GetCart returns the caller's cart with its lines in insertion order.
func (s *CartService) GetCart(ctx context.Context, caller Identity) (*CartView, error) {
	if err := authorize(caller); err != nil {
		return nil, err
	}
	var view *CartView
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		cart, err := tx.Carts().GetOrCreateByUserID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		view, err = priceCart(ctx, tx.Products(), cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// AddItem adds a product to the cart. A product already in the cart has its
// quantity increased instead of getting a second line.
func (s *CartService) AddItem(ctx context.Context, caller Identity, req AddCartItemRequest) (*CartView, error) {
	if err := authorize(caller); err != nil {
		return nil, err
	}
	if err := validateInput(req, "cart item"); err != nil {
		return nil, err
	}

	var view *CartView
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		c, err := tx.Carts().GetOrCreateByUserID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if _, err := tx.Products().GetByID(ctx, req.ProductID); err != nil {
			return err
		}

		if line := c.FindItemByProduct(req.ProductID); line != nil {
			line.Quantity += req.Quantity
			if err := tx.Carts().SaveItem(ctx, line); err != nil {
				return err
			}
		} else {
			line := &models.CartItem{
				CartID:    c.ID,
				ProductID: req.ProductID,
				Quantity:  req.Quantity,
				Position:  nextPosition(c.Items),
			}
			if err := tx.Carts().SaveItem(ctx, line); err != nil {
				return err
			}
		}

		cart, err := tx.Carts().GetOrCreateByUserID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		view, err = priceCart(ctx, tx.Products(), cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem deletes a line from the caller's cart. Lines of other carts are
// reported as not found.
func (s *CartService) RemoveItem(ctx context.Context, caller Identity, itemID string) error {
	if err := authorize(caller); err != nil {
		return err
	}
	return s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		cart, err := tx.Carts().GetOrCreateByUserID(ctx, caller.UserID)
		if err != nil {
			return err
		}
		return tx.Carts().RemoveItem(ctx, cart.ID, itemID)
	})
}

func nextPosition(items []models.CartItem) int {
	next := 0
	for _, item := range items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next
}

func priceCart(ctx context.Context, products repositories.ProductRepository, cart *models.Cart) (*CartView, error) {
	view := &CartView{ID: cart.ID, UserID: cart.UserID, Items: make([]CartLine, 0, len(cart.Items))}
	for _, item := range cart.Items {
		line := CartLine{CartItem: item}
		product, err := products.GetByID(ctx, item.ProductID)
		switch {
		case err == nil:
			line.ProductName = product.Name
			line.UnitPrice = product.Price
			line.Subtotal = product.Price * int64(item.Quantity)
		case !apperr.Is(err, apperr.KindNotFound):
			return nil, err
		}
		view.TotalPrice += line.Subtotal
		view.Items = append(view.Items, line)
	}
	return view, nil
}
