package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
)

// memoryData holds one table per entity. Orders and carts are stored without
// their items; items live in their own tables keyed by id.
type memoryData struct {
	products        map[string]models.Product
	users           map[string]models.User
	carts           map[string]models.Cart
	cartItems       map[string]models.CartItem
	orders          map[string]models.Order
	orderItems      map[string]models.OrderItem
	reconciliations map[string]models.PaymentReconciliation
}

func newMemoryData() *memoryData {
	return &memoryData{
		products:        make(map[string]models.Product),
		users:           make(map[string]models.User),
		carts:           make(map[string]models.Cart),
		cartItems:       make(map[string]models.CartItem),
		orders:          make(map[string]models.Order),
		orderItems:      make(map[string]models.OrderItem),
		reconciliations: make(map[string]models.PaymentReconciliation),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		products:        cloneMap(d.products),
		users:           cloneMap(d.users),
		carts:           cloneMap(d.carts),
		cartItems:       cloneMap(d.cartItems),
		orders:          cloneMap(d.orders),
		orderItems:      cloneMap(d.orderItems),
		reconciliations: cloneMap(d.reconciliations),
	}
}

func (d *memoryData) itemsOfOrder(orderID string) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range d.orderItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].LineNo < items[j].LineNo })
	return items
}

func (d *memoryData) itemsOfCart(cartID string) []models.CartItem {
	var items []models.CartItem
	for _, item := range d.cartItems {
		if item.CartID == cartID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items
}

type memoryState struct {
	mu   sync.Mutex
	data *memoryData
}

// MockStore is an in-memory implementation of Store. Transactions run one at
// a time against a private copy of the data that replaces the shared copy
// only when the callback succeeds.
type MockStore struct {
	state *memoryState
	tx    *memoryData
	now   func() time.Time
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		state: &memoryState{data: newMemoryData()},
		now:   time.Now,
	}
}

// view runs fn against the transaction copy, or against the shared data under the lock.
func (s *MockStore) view(fn func(d *memoryData) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn(s.state.data)
}

func (s *MockStore) Products() ProductRepository { return &MockProductRepository{store: s} }

func (s *MockStore) Users() UserRepository { return &MockUserRepository{store: s} }

func (s *MockStore) Carts() CartRepository { return &MockCartRepository{store: s} }

func (s *MockStore) Orders() OrderRepository { return &MockOrderRepository{store: s} }

func (s *MockStore) Reconciliations() ReconciliationRepository {
	return &MockReconciliationRepository{store: s}
}

// WithinTransaction runs fn with exclusive access to a copy of the data.
func (s *MockStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	working := s.state.data.clone()
	if err := fn(&MockStore{state: s.state, tx: working, now: s.now}); err != nil {
		return err
	}
	s.state.data = working
	return nil
}
