package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gratajik/vscode-llm-client/internal/backend"
)

const defaultModel = "claude-sonnet-4-20250514"

// Provider calls the Anthropic Messages API directly. Used as the
// fallback backend when the VS Code proxy is unreachable.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	client     *http.Client
	classifier backend.Classifier
}

type Option func(*Provider)

func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithModel overrides the backend-specific model. The pipeline never
// forwards the primary's model identifier here.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

func WithClassifier(cl backend.Classifier) Option {
	return func(p *Provider) { p.classifier = cl }
}

func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		model:   defaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   messagesUsage  `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (p *Provider) Invoke(ctx context.Context, req *backend.CompletionRequest) (*backend.CompletionResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	body, err := json.Marshal(messagesRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      req.SystemPrompt,
		Temperature: req.Temperature,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindProtocol, Backend: p.Name(), Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindConnection, Backend: p.Name(), Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindConnection, Backend: p.Name(), Message: "connection error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, backend.ClassifyStatus(p.Name(), p.classifier, resp.StatusCode, string(respBody))
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, &backend.Error{Kind: backend.KindProtocol, Backend: p.Name(), Message: "decode response", Err: err}
	}

	var text string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, &backend.Error{Kind: backend.KindEmptyResponse, Backend: p.Name(), Message: "no text content in response"}
	}

	return &backend.CompletionResult{
		ID:    msgResp.ID,
		Text:  text,
		Model: msgResp.Model,
		Usage: &backend.Usage{
			InputTokens:  msgResp.Usage.InputTokens,
			OutputTokens: msgResp.Usage.OutputTokens,
		},
	}, nil
}

func (p *Provider) Name() string {
	return "anthropic"
}

var _ backend.Backend = (*Provider)(nil)
