package usage

import (
	"context"
	"time"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

// Record is one completed (or failed-over) completion's accounting.
type Record struct {
	ID           string
	RequestID    string
	Backend      string
	Model        string
	Source       backend.Source
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	CreatedAt    time.Time
}

type Store interface {
	Log(ctx context.Context, rec *Record) error
	List(ctx context.Context, from, to time.Time) ([]*Record, error)
	TotalTokens(ctx context.Context, from, to time.Time) (int64, error)
}
