package repositories

import (
	"context"
	"sort"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockReconciliationRepository is an in-memory implementation of ReconciliationRepository.
type MockReconciliationRepository struct {
	store *MockStore
}

func (r *MockReconciliationRepository) Create(ctx context.Context, rec *models.PaymentReconciliation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = r.store.now()
	return r.store.view(func(d *memoryData) error {
		d.reconciliations[rec.ID] = *rec
		return nil
	})
}

func (r *MockReconciliationRepository) ListOpen(ctx context.Context) ([]models.PaymentReconciliation, error) {
	var recs []models.PaymentReconciliation
	err := r.store.view(func(d *memoryData) error {
		for _, rec := range d.reconciliations {
			if rec.ResolvedAt == nil {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return recs, err
}
