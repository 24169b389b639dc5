package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter is a client-side token budget: a thin wrapper around
// github.com/vnmchuo/ratelimiter that throttles how many completion
// tokens this client may request per minute.
type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, defaultTPM int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(defaultTPM)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func clientKey(clientID string) string {
	return fmt.Sprintf("ratelimit:client:%s", clientID)
}

// Allow reserves tokens against the per-client budget before a request
// is dispatched.
func (l *Limiter) Allow(ctx context.Context, clientID string, tokens int) (bool, error) {
	res, err := l.store.AllowN(ctx, clientKey(clientID), tokens)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// Status reports the current window without consuming budget; llmcall
// exposes it as the -quota readout.
func (l *Limiter) Status(ctx context.Context, clientID string) (*extratelimit.Result, error) {
	return l.store.Status(ctx, clientKey(clientID))
}
