package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate row-locks the selected rows until the surrounding transaction ends.
// SQLite ignores it and serializes writers on its own.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// GormStore is a GORM implementation of Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Products() ProductRepository { return NewGORMProductRepository(s.db) }

func (s *GormStore) Users() UserRepository { return NewGORMUserRepository(s.db) }

func (s *GormStore) Carts() CartRepository { return NewGORMCartRepository(s.db) }

func (s *GormStore) Orders() OrderRepository { return NewGORMOrderRepository(s.db) }

func (s *GormStore) Reconciliations() ReconciliationRepository {
	return NewGORMReconciliationRepository(s.db)
}

// WithinTransaction runs fn inside a database transaction.
func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
