package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

// Cache stores completion results in redis keyed by the request
// contents, so identical prompts skip the backend entirely.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// entry wraps a result for redis round-tripping.
type entry struct {
	Result backend.CompletionResult `json:"result"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (e *entry) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (e *entry) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// Key derives the cache key for a request. Tool-calling requests are
// deliberately not cacheable: tool results depend on editor state.
func Key(req *backend.CompletionRequest) (string, bool) {
	if req.UseVSCodeTools || len(req.Tools) > 0 {
		return "", false
	}
	canonical, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	h := sha256.Sum256(canonical)
	return fmt.Sprintf("completion:%s", hex.EncodeToString(h[:])), true
}

// Get returns a cached result, or nil on miss. Redis errors are logged
// and treated as misses.
func (c *Cache) Get(ctx context.Context, req *backend.CompletionRequest) *backend.CompletionResult {
	key, ok := Key(req)
	if !ok {
		return nil
	}
	var e entry
	err := c.rdb.Get(ctx, key).Scan(&e)
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Printf("cache: redis error: %v", err)
		return nil
	}
	return &e.Result
}

// Put stores a result. Best-effort: failures are logged, never
// surfaced.
func (c *Cache) Put(ctx context.Context, req *backend.CompletionRequest, res *backend.CompletionResult) {
	key, ok := Key(req)
	if !ok {
		return
	}
	if err := c.rdb.Set(ctx, key, &entry{Result: *res}, c.ttl).Err(); err != nil {
		log.Printf("cache: redis error: %v", err)
	}
}
