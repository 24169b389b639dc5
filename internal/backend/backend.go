package backend

import (
	"context"
	"encoding/json"
)

// Source identifies which backend produced a completion.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  float64 // 0..2
	MaxTokens    int

	// Tool-calling fields forwarded to the proxy unmodified when set.
	Tools          []json.RawMessage
	UseVSCodeTools bool
	ToolExecution  string // "auto" or "none"
	MaxToolRounds  int
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type CompletionResult struct {
	ID     string
	Text   string
	Model  string
	Usage  *Usage
	Source Source
}

// Backend is a single chat-completion endpoint. Invoke errors are always
// classified *Error values.
type Backend interface {
	Invoke(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)
	Name() string
}
