package models

import "time"

// Reconciliation operations name the gateway call whose effect was not recorded.
const (
	ReconcileConfirm = "confirm"
	ReconcileCancel  = "cancel"
)

// PaymentReconciliation flags a gateway charge or refund that went through
// while the matching order update failed. An operator settles it by hand.
type PaymentReconciliation struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string     `json:"order_id" gorm:"index;type:varchar(36);not null"`
	PgOrderID  string     `json:"pg_order_id" gorm:"type:varchar(64);not null"`
	Operation  string     `json:"operation" gorm:"type:varchar(16);not null;default:confirm"`
	PaymentKey string     `json:"payment_key" gorm:"type:varchar(200)"`
	Amount     int64      `json:"amount" gorm:"not null"`
	Reason     string     `json:"reason" gorm:"type:varchar(500)"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
