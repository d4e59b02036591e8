package models

import "time"

// Cart belongs to exactly one user and is created on first access.
type Cart struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"user_id" gorm:"uniqueIndex;type:varchar(36);not null"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is a line in a cart. Position keeps insertion order stable.
type CartItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CartID    string    `json:"cart_id" gorm:"index;type:varchar(36);not null"`
	ProductID string    `json:"product_id" gorm:"type:varchar(36);not null"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	Position  int       `json:"-" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindItemByProduct returns the line holding productID, if any.
func (c *Cart) FindItemByProduct(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
