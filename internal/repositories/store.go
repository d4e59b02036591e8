package repositories

import (
	"context"
	"time"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access.
// DecreaseStock and IncreaseStock serialize on the product row.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	DecreaseStock(ctx context.Context, id string, quantity int) error
	IncreaseStock(ctx context.Context, id string, quantity int) error
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// CartRepository defines the interface for cart data access. Returned carts
// carry their items in insertion order.
type CartRepository interface {
	GetOrCreateByUserID(ctx context.Context, userID string) (*models.Cart, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
	Clear(ctx context.Context, cartID string) error
}

// OrderRepository defines the interface for order data access. Orders are
// never deleted; only their state columns change after creation.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByPgOrderID(ctx context.Context, pgOrderID string) (*models.Order, error)
	LockByID(ctx context.Context, id string) (*models.Order, error)
	LockByPgOrderID(ctx context.Context, pgOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateState(ctx context.Context, order *models.Order) error
	// ClaimCancellation atomically marks a PAID order as being canceled at
	// now. A claim older than staleBefore is treated as abandoned. It fails
	// with a state conflict when the order is not PAID, is already claimed or
	// has an open refund reconciliation.
	ClaimCancellation(ctx context.Context, id string, now, staleBefore time.Time) error
	// ReleaseCancellation drops the claim so the cancellation can be retried.
	ReleaseCancellation(ctx context.Context, id string) error
}

// ReconciliationRepository stores payments that need manual settlement.
type ReconciliationRepository interface {
	Create(ctx context.Context, rec *models.PaymentReconciliation) error
	ListOpen(ctx context.Context) ([]models.PaymentReconciliation, error)
}

// Store is the unit of work. Repositories obtained from the Store passed to a
// WithinTransaction callback share one transaction, which commits when the
// callback returns nil and rolls back otherwise.
type Store interface {
	Products() ProductRepository
	Users() UserRepository
	Carts() CartRepository
	Orders() OrderRepository
	Reconciliations() ReconciliationRepository
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}
