package payment

import (
	"context"

	"storefront/internal/apperr"
)

// Outcome is the result of an asynchronous gateway call.
type Outcome struct {
	Confirmation *Confirmation
	Err          error
}

// Go runs call on its own goroutine and delivers the single Outcome on the
// returned channel. The channel is buffered so the goroutine never blocks
// after its caller has stopped waiting.
func Go(ctx context.Context, call func(ctx context.Context) (*Confirmation, error)) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		c, err := call(ctx)
		ch <- Outcome{Confirmation: c, Err: err}
	}()
	return ch
}

// Await waits for the Outcome on ch or for ctx to end, whichever is first.
// An expired context is reported as a gateway error wrapping ctx.Err().
func Await(ctx context.Context, ch <-chan Outcome) (*Confirmation, error) {
	select {
	case out := <-ch:
		return out.Confirmation, out.Err
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindGateway, ctx.Err(), "payment gateway did not answer in time")
	}
}
