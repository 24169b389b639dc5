package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

// Event is the progress record emitted once per backend attempt and
// once for a terminal fallback decision.
type Event struct {
	RequestID string
	Backend   string
	Attempt   int // 1-based; 0 for terminal decisions with no call
	Kind      backend.Kind
	Err       error
	Backoff   time.Duration // delay before the next attempt, 0 if none
	Success   bool
}

type EventFunc func(Event)

// LogEvents is the default EventFunc; it writes one line per attempt to
// the standard logger.
func LogEvents(ev Event) {
	switch {
	case ev.Success:
		log.Printf("[%s] %s attempt %d: ok", ev.RequestID, ev.Backend, ev.Attempt)
	case ev.Backoff > 0:
		log.Printf("[%s] %s attempt %d: %s: %v (retrying in %s)", ev.RequestID, ev.Backend, ev.Attempt, ev.Kind, ev.Err, ev.Backoff)
	default:
		log.Printf("[%s] %s attempt %d: %s: %v", ev.RequestID, ev.Backend, ev.Attempt, ev.Kind, ev.Err)
	}
}

// Sleeper waits out a backoff delay. Implementations must return early
// with ctx.Err() when the context is canceled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultSleeper waits on a real timer.
var DefaultSleeper Sleeper = timerSleeper{}
