// Package payment adapts external payment providers behind a common Gateway.
package payment

import (
	"context"
	"fmt"

	"storefront/internal/config"

	"go.uber.org/zap"
)

// Payment statuses reported by the providers.
const (
	StatusDone     = "DONE"
	StatusCanceled = "CANCELED"
)

// Verification is what the client sends after the provider's checkout
// widget completes. OrderID is the order's PgOrderID.
type Verification struct {
	Provider   string `json:"provider" validate:"required"`
	PaymentKey string `json:"paymentKey" validate:"required"`
	OrderID    string `json:"orderId" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
}

// Confirmation is the provider's answer to a confirm or cancel request.
type Confirmation struct {
	Status      string `json:"status"`
	OrderID     string `json:"orderId"`
	TotalAmount int64  `json:"totalAmount"`
}

// Gateway confirms and cancels payments with an external provider. Calls may
// be slow and are not idempotent; callers must not retry them blindly.
type Gateway interface {
	Confirm(ctx context.Context, v Verification) (*Confirmation, error)
	Cancel(ctx context.Context, paymentKey, reason string) (*Confirmation, error)
}

// NewGateway builds the gateway selected by cfg.Provider.
func NewGateway(cfg config.PaymentConfig, logger *zap.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "toss":
		return NewTossGateway(cfg.TossBaseURL, cfg.TossSecretKey, logger), nil
	case "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
	}
}
