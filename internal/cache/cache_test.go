package cache

import (
	"encoding/json"
	"testing"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

func TestKey_Deterministic(t *testing.T) {
	req := &backend.CompletionRequest{Prompt: "hi", SystemPrompt: "be brief", Model: "claude-3-5-sonnet", Temperature: 0.7, MaxTokens: 100}

	k1, ok1 := Key(req)
	k2, ok2 := Key(req)
	if !ok1 || !ok2 {
		t.Fatal("Expected request to be cacheable")
	}
	if k1 != k2 {
		t.Errorf("Expected stable key, got %s vs %s", k1, k2)
	}

	other := *req
	other.Prompt = "bye"
	k3, _ := Key(&other)
	if k3 == k1 {
		t.Error("Expected different prompts to produce different keys")
	}
}

func TestKey_ToolRequestsNotCacheable(t *testing.T) {
	if _, ok := Key(&backend.CompletionRequest{Prompt: "hi", UseVSCodeTools: true}); ok {
		t.Error("Expected vscode-tools request to be uncacheable")
	}
	if _, ok := Key(&backend.CompletionRequest{Prompt: "hi", Tools: []json.RawMessage{json.RawMessage(`{}`)}}); ok {
		t.Error("Expected request with tools to be uncacheable")
	}
}

func TestEntry_RoundTrip(t *testing.T) {
	e := &entry{Result: backend.CompletionResult{
		ID:     "chatcmpl-1",
		Text:   "hello",
		Model:  "claude-3-5-sonnet",
		Usage:  &backend.Usage{InputTokens: 3, OutputTokens: 5},
		Source: backend.SourcePrimary,
	}}

	data, err := e.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	var decoded entry
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if decoded.Result.Text != "hello" || decoded.Result.Usage.OutputTokens != 5 {
		t.Errorf("Round trip lost data: %+v", decoded.Result)
	}
}
