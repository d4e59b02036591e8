package models

import (
	"time"

	"storefront/internal/apperr"

	"gorm.io/gorm"
)

// Product represents a product in the store. Price is in the smallest currency unit.
type Product struct {
	ID            string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string         `json:"name" gorm:"type:varchar(100);not null" validate:"required,min=3,max=100"`
	Description   string         `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	Price         int64          `json:"price" gorm:"not null" validate:"required,gt=0"`
	StockQuantity int            `json:"stock_quantity" gorm:"not null;default:0" validate:"gte=0"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// DecreaseStock removes quantity units from stock. Stock never goes below zero.
func (p *Product) DecreaseStock(quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1, got %d", quantity)
	}
	if quantity > p.StockQuantity {
		return apperr.New(apperr.KindInsufficientStock,
			"insufficient stock for product %s (requested: %d, available: %d)", p.ID, quantity, p.StockQuantity)
	}
	p.StockQuantity -= quantity
	return nil
}

// IncreaseStock returns quantity units to stock.
func (p *Product) IncreaseStock(quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1, got %d", quantity)
	}
	p.StockQuantity += quantity
	return nil
}
