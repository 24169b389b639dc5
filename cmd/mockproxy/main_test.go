package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func postCompletion(t *testing.T, s *server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleCompletions(w, req)
	return w
}

func TestHandleCompletions_Echo(t *testing.T) {
	s := &server{}
	w := postCompletion(t, s, `{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"hi there"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "echo: hi there" {
		t.Errorf("Unexpected response: %s", w.Body.String())
	}
}

func TestHandleCompletions_FailFirstThenSucceed(t *testing.T) {
	s := &server{failFirst: 2, failMode: "503"}
	body := `{"messages":[{"role":"user","content":"hi"}]}`

	for i := 0; i < 2; i++ {
		if w := postCompletion(t, s, body); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("Request %d: expected 503, got %d", i+1, w.Code)
		}
	}
	if w := postCompletion(t, s, body); w.Code != http.StatusOK {
		t.Errorf("Expected success after injected faults, got %d", w.Code)
	}
}

func TestInjectFault_Modes(t *testing.T) {
	cases := []struct {
		mode       string
		wantStatus int
		wantBody   string
	}{
		{"503", http.StatusServiceUnavailable, "service unavailable"},
		{"filtered", http.StatusBadRequest, "filtered"},
		{"empty-choices", http.StatusOK, `"choices":[]`},
		{"empty-content", http.StatusOK, `"content":""`},
	}
	for _, c := range cases {
		s := &server{failFirst: 1, failMode: c.mode}
		w := postCompletion(t, s, `{"messages":[{"role":"user","content":"hi"}]}`)
		if w.Code != c.wantStatus {
			t.Errorf("mode %s: expected %d, got %d", c.mode, c.wantStatus, w.Code)
		}
		if !strings.Contains(w.Body.String(), c.wantBody) {
			t.Errorf("mode %s: expected body containing %q, got %s", c.mode, c.wantBody, w.Body.String())
		}
	}
}

// The hang fault exists to make the client's 120s request timeout
// fire; the server must not reset the connection before that.
func TestHangOutlastsClientTimeout(t *testing.T) {
	clientTimeout := 120 * time.Second
	if hangDuration <= clientTimeout {
		t.Errorf("hangDuration %s must exceed the client request timeout %s", hangDuration, clientTimeout)
	}
	if hangDuration >= serverWriteTimeout {
		t.Errorf("hangDuration %s must stay inside the server write timeout %s", hangDuration, serverWriteTimeout)
	}
}

func TestHandleTools_Filters(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/tools?tags=vscode&name=get_*", nil)
	w := httptest.NewRecorder()
	handleTools(w, req)

	var resp struct {
		Tools []toolInfo `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Tools) != 1 || resp.Tools[0].Name != "get_open_editors" {
		t.Errorf("Unexpected tools: %+v", resp.Tools)
	}
}

func TestMatchWildcard(t *testing.T) {
	cases := []struct {
		name, pattern string
		want          bool
	}{
		{"get_weather", "get_*", true},
		{"get_weather", "get_weather", true},
		{"search_workspace", "get_*", false},
		{"get_weather", "weather", false},
	}
	for _, c := range cases {
		if got := matchWildcard(c.name, c.pattern); got != c.want {
			t.Errorf("matchWildcard(%q, %q) = %v, want %v", c.name, c.pattern, got, c.want)
		}
	}
}
