package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Tool describes one tool registered with the VS Code proxy. Tools come
// from VS Code built-ins, installed extensions, and connected MCP
// servers.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type listResponse struct {
	Tools []Tool `json:"tools"`
}

// ListOptions filter the tool listing. Both filters are applied
// server-side; Name accepts wildcards like "get_*".
type ListOptions struct {
	Tags string // comma-separated
	Name string
}

type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient builds a tool-listing client. endpoint may be either the
// proxy base URL or a full chat-completions endpoint; anything from
// "/v1/" on is stripped.
func NewClient(endpoint string) *Client {
	return &Client{
		baseURL: BaseURL(endpoint),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL reduces a chat-completions endpoint to the proxy base URL.
func BaseURL(endpoint string) string {
	if i := strings.Index(endpoint, "/v1/"); i >= 0 {
		return endpoint[:i]
	}
	return strings.TrimSuffix(endpoint, "/")
}

func (c *Client) List(ctx context.Context, opts ListOptions) ([]Tool, error) {
	params := url.Values{}
	if opts.Tags != "" {
		params.Set("tags", opts.Tags)
	}
	if opts.Name != "" {
		params.Set("name", opts.Name)
	}

	endpoint := c.baseURL + "/v1/tools"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("list tools: api error (status %d): %s", resp.StatusCode, string(body))
	}

	var listResp listResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("list tools: decode response: %w", err)
	}
	return listResp.Tools, nil
}
