package vscode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

const defaultModel = "claude-3-5-sonnet"

// Provider calls an OpenAI-compatible chat-completions endpoint, the
// VS Code LLM proxy in production.
type Provider struct {
	endpoint   string
	client     *http.Client
	classifier backend.Classifier
}

type Option func(*Provider)

// WithClassifier overrides content-filter detection on error bodies.
func WithClassifier(cl backend.Classifier) Option {
	return func(p *Provider) { p.classifier = cl }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

func New(endpoint string, opts ...Option) *Provider {
	p := &Provider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []chatMessage     `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Tools       []json.RawMessage `json:"tools,omitempty"`

	// Proxy extensions, forwarded untouched.
	UseVSCodeTools bool   `json:"use_vscode_tools,omitempty"`
	ToolExecution  string `json:"tool_execution,omitempty"`
	MaxToolRounds  int    `json:"max_tool_rounds,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (p *Provider) Invoke(ctx context.Context, req *backend.CompletionRequest) (*backend.CompletionResult, error) {
	body, err := json.Marshal(p.mapRequest(req))
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindProtocol, Backend: p.Name(), Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindConnection, Backend: p.Name(), Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindConnection, Backend: p.Name(), Message: "connection error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, backend.ClassifyStatus(p.Name(), p.classifier, resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &backend.Error{Kind: backend.KindProtocol, Backend: p.Name(), Message: "decode response", Err: err}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &backend.Error{Kind: backend.KindEmptyResponse, Backend: p.Name(), Message: "no choices in response"}
	}
	content := chatResp.Choices[0].Message.Content
	if content == "" {
		return nil, &backend.Error{Kind: backend.KindEmptyResponse, Backend: p.Name(), Message: "empty content in response"}
	}

	return &backend.CompletionResult{
		ID:    chatResp.ID,
		Text:  content,
		Model: chatResp.Model,
		Usage: &backend.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		},
	}, nil
}

func (p *Provider) mapRequest(req *backend.CompletionRequest) chatRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	return chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		Tools:          req.Tools,
		UseVSCodeTools: req.UseVSCodeTools,
		ToolExecution:  req.ToolExecution,
		MaxToolRounds:  req.MaxToolRounds,
	}
}

func (p *Provider) Name() string {
	return "vscode"
}

var _ backend.Backend = (*Provider)(nil)
