package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"storefront/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const defaultTossTimeout = 30 * time.Second

// TossGateway talks to the Toss Payments REST API. Requests authenticate with
// HTTP Basic auth, the secret key as user name and an empty password.
type TossGateway struct {
	baseURL   string
	secretKey string
	logger    *zap.Logger
}

// NewTossGateway creates a TossGateway for the given API base URL.
func NewTossGateway(baseURL, secretKey string, logger *zap.Logger) *TossGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TossGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		logger:    logger,
	}
}

// tossError is the error body returned by the provider.
type tossError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Confirm approves a payment the customer authorized in the checkout widget.
func (g *TossGateway) Confirm(ctx context.Context, v Verification) (*Confirmation, error) {
	body := map[string]any{
		"paymentKey": v.PaymentKey,
		"orderId":    v.OrderID,
		"amount":     v.Amount,
	}
	return g.post(ctx, "/v1/payments/confirm", body)
}

// Cancel refunds a confirmed payment in full.
func (g *TossGateway) Cancel(ctx context.Context, paymentKey, reason string) (*Confirmation, error) {
	path := "/v1/payments/" + url.PathEscape(paymentKey) + "/cancel"
	return g.post(ctx, path, map[string]any{"cancelReason": reason})
}

func (g *TossGateway) post(ctx context.Context, path string, body any) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, err, "payment request %s not sent", path)
	}

	agent := fiber.Post(g.baseURL + path)
	agent.BasicAuth(g.secretKey, "")
	agent.JSON(body)
	agent.Timeout(requestTimeout(ctx))
	if err := agent.Parse(); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, err, "failed to build payment request %s", path)
	}

	status, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		g.logger.Warn("payment gateway request failed", zap.String("path", path), zap.Errors("errors", errs))
		return nil, apperr.Wrap(apperr.KindGateway, errors.Join(errs...), "payment request %s failed", path)
	}

	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		var te tossError
		_ = json.Unmarshal(resp, &te)
		g.logger.Warn("payment gateway rejected request",
			zap.String("path", path),
			zap.Int("status", status),
			zap.String("code", te.Code),
		)
		if te.Message == "" {
			te.Message = fmt.Sprintf("status %d", status)
		}
		return nil, apperr.New(apperr.KindGateway, "payment provider rejected request: %s", te.Message)
	}

	var confirmation Confirmation
	if err := json.Unmarshal(resp, &confirmation); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, err, "invalid payment provider response")
	}
	return &confirmation, nil
}

// requestTimeout bounds the HTTP call by the context deadline, if any.
func requestTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultTossTimeout
	}
	if left := time.Until(deadline); left > 0 {
		return left
	}
	return time.Millisecond
}
