// mockproxy emulates the VS Code LLM proxy for development and testing.
// It serves OpenAI-compatible chat completions plus the /v1/tools
// listing, with optional fault injection to exercise the client's retry
// and fallback paths.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	// hangDuration must exceed the client's 120s request timeout so the
	// client's own timeout fires, and stay inside serverWriteTimeout so
	// the server doesn't reset the connection first.
	hangDuration       = 150 * time.Second
	serverWriteTimeout = 5 * time.Minute
)

type server struct {
	failFirst int64
	failMode  string
	seen      atomic.Int64
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid request body"})
		return
	}

	if n := s.seen.Add(1); n <= s.failFirst {
		s.injectFault(w, n)
		return
	}

	var lastUser string
	for _, m := range req.Messages {
		if m.Role == "user" {
			lastUser = m.Content
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     uuid.New().String(),
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []interface{}{
			map[string]interface{}{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": fmt.Sprintf("echo: %s", lastUser),
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     len(lastUser) / 4,
			"completion_tokens": len(lastUser)/4 + 2,
			"total_tokens":      len(lastUser) / 2,
		},
	})
}

func (s *server) injectFault(w http.ResponseWriter, n int64) {
	log.Printf("injecting fault %q (request %d of %d)", s.failMode, n, s.failFirst)
	switch s.failMode {
	case "filtered":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "response was filtered by content policy"})
	case "empty-choices":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	case "empty-content":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": ""},
					"finish_reason": "stop",
				},
			},
		})
	case "hang":
		time.Sleep(hangDuration)
	default: // 503
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "service unavailable"})
	}
}

type toolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

var mockTools = []toolInfo{
	{Name: "get_weather", Description: "Get current weather for a city", Tags: []string{"demo"}},
	{Name: "get_open_editors", Description: "List files open in the editor", Tags: []string{"vscode", "editor"}},
	{Name: "search_workspace", Description: "Search files in the workspace", Tags: []string{"vscode"}},
}

func handleTools(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query().Get("tags")
	name := r.URL.Query().Get("name")

	var filtered []toolInfo
	for _, t := range mockTools {
		if tags != "" && !hasAnyTag(t.Tags, strings.Split(tags, ",")) {
			continue
		}
		if name != "" && !matchWildcard(t.Name, name) {
			continue
		}
		filtered = append(filtered, t)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"tools": filtered})
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == strings.TrimSpace(w) {
				return true
			}
		}
	}
	return false
}

// matchWildcard supports trailing-star patterns like "get_*".
func matchWildcard(name, pattern string) bool {
	if p, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, p)
	}
	return name == pattern
}

func main() {
	var (
		port      = flag.String("port", "8080", "listen port")
		failFirst = flag.Int64("fail-first", 0, "fail this many completion requests before succeeding")
		failMode  = flag.String("fail-mode", "503", "fault to inject: 503, filtered, empty-choices, empty-content, hang")
	)
	flag.Parse()

	srvState := &server{failFirst: *failFirst, failMode: *failMode}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"mockproxy"}`))
	})
	r.Post("/v1/chat/completions", srvState.handleCompletions)
	r.Get("/v1/tools", handleTools)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("mockproxy starting on port %s (fail-first=%d mode=%s)", *port, *failFirst, *failMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
