package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/apperr"
)

// MockGateway is an in-process Gateway for development and tests. It
// approves every request unless an error is configured, and counts calls.
type MockGateway struct {
	mu         sync.Mutex
	confirmErr error
	cancelErr  error
	delay      time.Duration

	confirmCalls atomic.Int64
	cancelCalls  atomic.Int64
}

// NewMockGateway returns a gateway that approves everything immediately.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// FailConfirm makes subsequent Confirm calls return err.
func (g *MockGateway) FailConfirm(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmErr = err
}

// FailCancel makes subsequent Cancel calls return err.
func (g *MockGateway) FailCancel(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelErr = err
}

// SetDelay makes every call take at least d, or until its context ends.
func (g *MockGateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// ConfirmCalls reports how many times Confirm was called, failed calls included.
func (g *MockGateway) ConfirmCalls() int { return int(g.confirmCalls.Load()) }

// CancelCalls reports how many refunds were requested, failed calls included.
func (g *MockGateway) CancelCalls() int { return int(g.cancelCalls.Load()) }

func (g *MockGateway) Confirm(ctx context.Context, v Verification) (*Confirmation, error) {
	g.confirmCalls.Add(1)
	g.mu.Lock()
	err, delay := g.confirmErr, g.delay
	g.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &Confirmation{Status: StatusDone, OrderID: v.OrderID, TotalAmount: v.Amount}, nil
}

func (g *MockGateway) Cancel(ctx context.Context, paymentKey, reason string) (*Confirmation, error) {
	g.cancelCalls.Add(1)
	g.mu.Lock()
	err, delay := g.cancelErr, g.delay
	g.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &Confirmation{Status: StatusCanceled}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return apperr.Wrap(apperr.KindGateway, ctx.Err(), "payment gateway call interrupted")
	}
}
