package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const adminUsername = "admin"

var demoProducts = []models.Product{
	{Name: "Laptop", Description: "High performance laptop", Price: 1200000, StockQuantity: 10},
	{Name: "Keyboard", Description: "Mechanical keyboard", Price: 75000, StockQuantity: 25},
	{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: 25000, StockQuantity: 50},
}

// seedData populates an empty catalog with demo products and makes sure the
// admin account exists. Running it again changes nothing.
func seedData(ctx context.Context, store repositories.Store, adminPassword string, log *zap.Logger) error {
	return store.WithinTransaction(ctx, func(tx repositories.Store) error {
		if err := seedProducts(ctx, tx.Products(), log); err != nil {
			return err
		}
		return seedAdmin(ctx, tx.Users(), adminPassword, log)
	})
}

func seedProducts(ctx context.Context, repo repositories.ProductRepository, log *zap.Logger) error {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Debug("catalog already populated, skipping product seed", zap.Int("products", len(existing)))
		return nil
	}

	for _, p := range demoProducts {
		product := p
		if err := repo.Create(ctx, &product); err != nil {
			return fmt.Errorf("error seeding product %s: %w", product.Name, err)
		}
		log.Info("seeded product", zap.String("product_id", product.ID), zap.String("name", product.Name))
	}
	return nil
}

func seedAdmin(ctx context.Context, repo repositories.UserRepository, password string, log *zap.Logger) error {
	_, err := repo.GetByUsername(ctx, adminUsername)
	if err == nil {
		return nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &models.User{
		Username: adminUsername,
		Email:    "admin@storefront.local",
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("error seeding admin account: %w", err)
	}
	log.Info("seeded admin account", zap.String("user_id", admin.ID))
	return nil
}
