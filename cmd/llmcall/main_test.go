package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

func TestHintFor(t *testing.T) {
	cases := []struct {
		kind backend.Kind
		want string
	}{
		{backend.KindFallbackUnavailable, "set ANTHROPIC_API_KEY and VSCODE_LLM_FALLBACK=true to enable fallback"},
		{backend.KindConnection, "is the proxy running? check VSCODE_LLM_ENDPOINT, or try again later"},
		{backend.KindContentFiltered, "the prompt or response was blocked by content policy"},
		{backend.KindProtocol, ""},
		{backend.KindEmptyResponse, ""},
	}
	for _, c := range cases {
		err := &backend.Error{Kind: c.kind, Backend: "vscode", Message: "boom"}
		if got := hintFor(err); got != c.want {
			t.Errorf("hintFor(%s) = %q, want %q", c.kind, got, c.want)
		}
	}

	if got := hintFor(errors.New("plain")); got != "" {
		t.Errorf("Expected no hint for non-backend error, got %q", got)
	}

	wrapped := fmt.Errorf("completion: %w", &backend.Error{Kind: backend.KindConnection})
	if got := hintFor(wrapped); got == "" {
		t.Error("Expected hint to survive wrapping")
	}
}

// run must return errors to main instead of exiting so deferred
// cleanups (tracer flush, connection closes) get to execute.
func TestRun_MissingPromptReturnsError(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")

	err := run(options{})
	if !errors.Is(err, errUsage) {
		t.Fatalf("Expected errUsage, got %v", err)
	}
}
