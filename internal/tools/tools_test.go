package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:8080/v1/chat/completions", "http://127.0.0.1:8080"},
		{"http://127.0.0.1:8080/v1/tools", "http://127.0.0.1:8080"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080"},
	}
	for _, c := range cases {
		if got := BaseURL(c.in); got != c.want {
			t.Errorf("BaseURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tools" {
			t.Errorf("Expected /v1/tools, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tags"); got != "vscode,editor" {
			t.Errorf("Expected tags filter forwarded, got %q", got)
		}
		if got := r.URL.Query().Get("name"); got != "get_*" {
			t.Errorf("Expected name filter forwarded, got %q", got)
		}

		json.NewEncoder(w).Encode(listResponse{Tools: []Tool{
			{Name: "get_open_editors", Description: "List files open in the editor", Tags: []string{"vscode", "editor"}},
		}})
	}))
	defer server.Close()

	c := NewClient(server.URL + "/v1/chat/completions")
	tools, err := c.List(context.Background(), ListOptions{Tags: "vscode,editor", Name: "get_*"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "get_open_editors" {
		t.Errorf("Unexpected tools: %+v", tools)
	}
}

func TestList_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.List(context.Background(), ListOptions{}); err == nil {
		t.Fatal("Expected error on non-200")
	}
}
