package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

// Config controls the retry and fallback behavior of a Client. The zero
// value is not usable; call Normalize or build it from config.Load.
type Config struct {
	MaxRetries        int  // primary attempts, >= 1
	FallbackEnabled   bool // user opted in to fallback
	FallbackAvailable bool // fallback credentials are configured
	BackoffBase       int  // seconds; delay before attempt i+1 is base**(i+1)
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		FallbackEnabled: true,
		BackoffBase:     2,
	}
}

// Normalize clamps out-of-range values to the defaults.
func (c Config) Normalize() Config {
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.BackoffBase < 1 {
		c.BackoffBase = 2
	}
	return c
}

// Client issues a completion against a primary backend with bounded
// retries, then degrades to a single fallback attempt. Invocations are
// independent; a Client is safe for concurrent use.
type Client struct {
	primary  backend.Backend
	fallback backend.Backend
	cfg      Config
	sleeper  Sleeper
	onEvent  EventFunc
	tracer   trace.Tracer
}

type Option func(*Client)

// WithSleeper overrides the backoff delay, letting tests assert the
// schedule without waiting it out.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

func WithEventFunc(fn EventFunc) Option {
	return func(c *Client) { c.onEvent = fn }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New builds a Client. fallback may be nil; Config.FallbackAvailable is
// forced false in that case.
func New(primary backend.Backend, fallback backend.Backend, cfg Config, opts ...Option) *Client {
	cfg = cfg.Normalize()
	if fallback == nil {
		cfg.FallbackAvailable = false
	}
	c := &Client{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		sleeper:  DefaultSleeper,
		onEvent:  LogEvents,
		tracer:   otel.Tracer("pipeline"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete runs the full retry + fallback flow for one request. It
// returns a result if and only if the primary succeeded within the
// retry budget or the fallback succeeded; otherwise the error is a
// classified *backend.Error.
func (c *Client) Complete(ctx context.Context, req *backend.CompletionRequest) (*backend.CompletionResult, error) {
	requestID := uuid.New().String()

	ctx, span := c.tracer.Start(ctx, "pipeline.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("model", req.Model),
		attribute.Int("max_retries", c.cfg.MaxRetries),
	)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		res, err := c.primary.Invoke(ctx, req)
		if err == nil {
			res.Source = backend.SourcePrimary
			c.emit(span, Event{
				RequestID: requestID,
				Backend:   c.primary.Name(),
				Attempt:   attempt + 1,
				Success:   true,
			})
			return res, nil
		}

		lastErr = err
		var delay time.Duration
		if attempt < c.cfg.MaxRetries-1 {
			delay = c.backoff(attempt)
		}
		c.emit(span, Event{
			RequestID: requestID,
			Backend:   c.primary.Name(),
			Attempt:   attempt + 1,
			Kind:      backend.KindOf(err),
			Err:       err,
			Backoff:   delay,
		})

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if delay > 0 {
			if err := c.sleeper.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	// Fallback explicitly disabled: the caller opted out, so the last
	// primary failure is the story. Enabled but unconfigured is its own
	// kind so callers can point at the missing credential.
	if !c.cfg.FallbackEnabled {
		c.emit(span, Event{RequestID: requestID, Backend: c.primary.Name(), Kind: backend.KindOf(lastErr), Err: lastErr})
		return nil, lastErr
	}
	if !c.cfg.FallbackAvailable {
		err := &backend.Error{
			Kind:    backend.KindFallbackUnavailable,
			Backend: c.primary.Name(),
			Message: "retries exhausted and no fallback credential configured",
			Err:     lastErr,
		}
		c.emit(span, Event{RequestID: requestID, Backend: c.primary.Name(), Kind: err.Kind, Err: err})
		return nil, err
	}

	res, err := c.fallback.Invoke(ctx, req)
	if err != nil {
		c.emit(span, Event{
			RequestID: requestID,
			Backend:   c.fallback.Name(),
			Attempt:   1,
			Kind:      backend.KindOf(err),
			Err:       err,
		})
		return nil, err
	}
	res.Source = backend.SourceFallback
	c.emit(span, Event{
		RequestID: requestID,
		Backend:   c.fallback.Name(),
		Attempt:   1,
		Success:   true,
	})
	return res, nil
}

// backoff returns the delay inserted after attempt (0-indexed):
// base**(attempt+1) seconds, so 2, 4, 8, ... with the default base.
func (c *Client) backoff(attempt int) time.Duration {
	secs := 1
	for i := 0; i <= attempt; i++ {
		secs *= c.cfg.BackoffBase
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) emit(span trace.Span, ev Event) {
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.String("backend", ev.Backend),
		attribute.Int("attempt", ev.Attempt),
		attribute.String("classification", string(ev.Kind)),
		attribute.Bool("success", ev.Success),
		attribute.Int64("backoff_ms", ev.Backoff.Milliseconds()),
	))
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}
