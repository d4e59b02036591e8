package models_test

import (
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestProduct_StockLedger(t *testing.T) {
	p := &models.Product{ID: "prod-1", Price: 1000, StockQuantity: 5}

	assert.NoError(t, p.DecreaseStock(3))
	assert.Equal(t, 2, p.StockQuantity)

	err := p.DecreaseStock(3)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientStock))
	assert.Equal(t, 2, p.StockQuantity, "a rejected decrease leaves stock untouched")

	assert.NoError(t, p.DecreaseStock(2))
	assert.Equal(t, 0, p.StockQuantity)

	assert.NoError(t, p.IncreaseStock(5))
	assert.Equal(t, 5, p.StockQuantity)

	assert.True(t, apperr.Is(p.DecreaseStock(0), apperr.KindValidation))
	assert.True(t, apperr.Is(p.IncreaseStock(-1), apperr.KindValidation))
}
