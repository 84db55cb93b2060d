package parsing

import (
	"context"
	"errors"
	"time"
)

// Dispatcher resolves the parser for a format tag and runs it under a slot
// cap and deadline. Parsers are slow, independently-failing externals; the
// dispatcher must never be invoked while holding a ledger transaction.
type Dispatcher struct {
	registry *Registry
	slots    chan struct{}
	timeout  time.Duration
}

// NewDispatcher bounds concurrent parser invocations to workers slots and
// applies timeout per call. Zero values fall back to sane defaults.
func NewDispatcher(registry *Registry, workers int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Dispatcher{
		registry: registry,
		slots:    make(chan struct{}, workers),
		timeout:  timeout,
	}
}

// Parse runs the registered parser for formatTag on data. Slot acquisition
// honours ctx; a per-call deadline converts slow parsers into retryable
// failures instead of wedging a worker forever.
func (d *Dispatcher) Parse(ctx context.Context, data []byte, formatTag string) (*NormalizedImport, error) {
	parser, err := d.registry.Lookup(formatTag)
	if err != nil {
		return nil, err
	}

	select {
	case d.slots <- struct{}{}:
		defer func() { <-d.slots }()
	case <-ctx.Done():
		return nil, Retryable(ctx.Err(), "waiting for parser slot")
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	imp, err := parser.Parse(callCtx, data)
	if err != nil {
		return nil, classify(callCtx, err)
	}
	if err := imp.Validate(); err != nil {
		return nil, err
	}
	return imp, nil
}

func classify(ctx context.Context, err error) error {
	if AsError(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Retryable(err, "parser timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Retryable(err, "parser canceled")
	}
	return Fatal(err, "parser failed")
}
