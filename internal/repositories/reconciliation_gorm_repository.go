package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMReconciliationRepository is a GORM implementation of ReconciliationRepository.
type GORMReconciliationRepository struct {
	db *gorm.DB
}

// NewGORMReconciliationRepository creates a new instance of GORMReconciliationRepository.
func NewGORMReconciliationRepository(db *gorm.DB) *GORMReconciliationRepository {
	return &GORMReconciliationRepository{db: db}
}

func (r *GORMReconciliationRepository) Create(ctx context.Context, rec *models.PaymentReconciliation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record payment reconciliation for order %s: %w", rec.OrderID, err)
	}
	return nil
}

func (r *GORMReconciliationRepository) ListOpen(ctx context.Context) ([]models.PaymentReconciliation, error) {
	var recs []models.PaymentReconciliation
	if err := r.db.WithContext(ctx).Where("resolved_at IS NULL").Order("created_at asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment reconciliations: %w", err)
	}
	return recs, nil
}
