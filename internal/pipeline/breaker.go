package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

// Breaker wraps a backend in a circuit breaker so that a flapping
// endpoint is skipped outright instead of eating the full retry budget
// on every invocation. Off by default: wrap explicitly when wanted,
// since an open breaker short-circuits the bounded attempt sequence.
type Breaker struct {
	inner backend.Backend
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner backend.Backend) *Breaker {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Breaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) Invoke(ctx context.Context, req *backend.CompletionRequest) (*backend.CompletionResult, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Invoke(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &backend.Error{
				Kind:    backend.KindConnection,
				Backend: b.inner.Name(),
				Message: "circuit breaker open",
				Err:     err,
			}
		}
		return nil, err
	}
	return result.(*backend.CompletionResult), nil
}

func (b *Breaker) Name() string {
	return b.inner.Name()
}

var _ backend.Backend = (*Breaker)(nil)
