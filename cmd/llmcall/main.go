package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gratajik/vscode-llm-client/config"
	"github.com/gratajik/vscode-llm-client/internal/backend"
	"github.com/gratajik/vscode-llm-client/internal/backend/anthropic"
	"github.com/gratajik/vscode-llm-client/internal/backend/vscode"
	"github.com/gratajik/vscode-llm-client/internal/cache"
	"github.com/gratajik/vscode-llm-client/internal/pipeline"
	"github.com/gratajik/vscode-llm-client/internal/telemetry"
	"github.com/gratajik/vscode-llm-client/internal/tools"
	"github.com/gratajik/vscode-llm-client/internal/usage"
	"github.com/gratajik/vscode-llm-client/pkg/ratelimit"
)

var errUsage = errors.New("missing -prompt")

type options struct {
	prompt       string
	systemPrompt string
	model        string
	temperature  float64
	maxTokens    int
	useTools     bool
	toolExec     string
	toolRounds   int
	breaker      bool
	listTools    bool
	toolTags     string
	toolName     string
	showUsage    bool
	usageDays    int
	showQuota    bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.prompt, "prompt", "", "user prompt (required unless a report mode is chosen)")
	flag.StringVar(&o.systemPrompt, "system", "You are a helpful assistant.", "system prompt")
	flag.StringVar(&o.model, "model", "claude-3-5-sonnet", "model to request from the proxy")
	flag.Float64Var(&o.temperature, "temperature", 0.7, "sampling temperature (0-2)")
	flag.IntVar(&o.maxTokens, "max-tokens", 1000, "maximum tokens to generate")
	flag.BoolVar(&o.useTools, "vscode-tools", false, "include VS Code registered tools")
	flag.StringVar(&o.toolExec, "tool-execution", "", "tool execution mode: auto or none")
	flag.IntVar(&o.toolRounds, "max-tool-rounds", 0, "maximum tool execution iterations")
	flag.BoolVar(&o.breaker, "breaker", false, "wrap the primary backend in a circuit breaker")
	flag.BoolVar(&o.listTools, "tools", false, "list available proxy tools and exit")
	flag.StringVar(&o.toolTags, "tags", "", "comma-separated tag filter for -tools")
	flag.StringVar(&o.toolName, "name", "", "name pattern filter for -tools (wildcards ok)")
	flag.BoolVar(&o.showUsage, "usage", false, "print recorded usage and exit (needs POSTGRES_DSN)")
	flag.IntVar(&o.usageDays, "usage-days", 30, "how many days of usage to report with -usage")
	flag.BoolVar(&o.showQuota, "quota", false, "print the token budget status and exit (needs REDIS_ADDR)")
	flag.Parse()
	return o
}

// main only parses flags and maps run's error to an exit code; all
// resources live in run so their defers execute before the process
// exits.
func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		if hint := hintFor(err); hint != "" {
			log.Printf("hint: %s", hint)
		}
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Tool listing mode
	if opts.listTools {
		toolClient := tools.NewClient(cfg.Endpoint)
		available, err := toolClient.List(ctx, tools.ListOptions{Tags: opts.toolTags, Name: opts.toolName})
		if err != nil {
			return fmt.Errorf("failed to list tools: %w", err)
		}
		fmt.Printf("%d tools available\n", len(available))
		for _, t := range available {
			fmt.Printf("  %-40s %s\n", t.Name, t.Description)
		}
		return nil
	}

	// 3. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("vscode-llm-client", cfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer shutdownTracer()

	// 4. Optional redis: completion cache + client-side rate limit
	var (
		completionCache *cache.Cache
		limiter         *ratelimit.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		completionCache = cache.New(rdb, cfg.CacheTTL)
		limiter = ratelimit.NewLimiter(rdb, cfg.RateLimitTPM)
	}

	// 5. Optional postgres: usage recording
	var usageStore usage.Store
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pool.Close()
		usageStore = usage.NewPostgresStore(pool)
	}

	// 6. Report modes
	if opts.showUsage {
		if usageStore == nil {
			return errors.New("-usage needs POSTGRES_DSN set")
		}
		return reportUsage(ctx, usageStore, opts.usageDays)
	}
	if opts.showQuota {
		if limiter == nil {
			return errors.New("-quota needs REDIS_ADDR set")
		}
		status, err := limiter.Status(ctx, "llmcall")
		if err != nil {
			return fmt.Errorf("failed to read token budget: %w", err)
		}
		fmt.Printf("token budget: %+v\n", status)
		return nil
	}

	if opts.prompt == "" {
		return errUsage
	}

	// 7. Build backends
	var primary backend.Backend = vscode.New(cfg.Endpoint, vscode.WithTimeout(cfg.RequestTimeout))
	if opts.breaker {
		primary = pipeline.NewBreaker(primary)
	}

	var fallback backend.Backend
	if cfg.FallbackAvailable() {
		fbOpts := []anthropic.Option{anthropic.WithTimeout(cfg.RequestTimeout)}
		if cfg.AnthropicModel != "" {
			fbOpts = append(fbOpts, anthropic.WithModel(cfg.AnthropicModel))
		}
		fallback = anthropic.New(cfg.AnthropicAPIKey, fbOpts...)
	}

	// 8. Build pipeline
	client := pipeline.New(primary, fallback, pipeline.Config{
		MaxRetries:        cfg.MaxRetries,
		FallbackEnabled:   cfg.FallbackEnabled,
		FallbackAvailable: cfg.FallbackAvailable(),
		BackoffBase:       cfg.BackoffBase,
	})

	req := &backend.CompletionRequest{
		Prompt:         opts.prompt,
		SystemPrompt:   opts.systemPrompt,
		Model:          opts.model,
		Temperature:    opts.temperature,
		MaxTokens:      opts.maxTokens,
		UseVSCodeTools: opts.useTools,
		ToolExecution:  opts.toolExec,
		MaxToolRounds:  opts.toolRounds,
	}

	// 9. Cache check
	if completionCache != nil {
		if res := completionCache.Get(ctx, req); res != nil {
			printResult(res, true)
			return nil
		}
	}

	// 10. Self-throttle before dispatch
	if limiter != nil {
		allowed, err := limiter.Allow(ctx, "llmcall", opts.maxTokens)
		if err != nil {
			log.Printf("rate limiter unavailable: %v", err)
		} else if !allowed {
			return errors.New("token budget exhausted, try again in a minute")
		}
	}

	// 11. Run the pipeline
	start := time.Now()
	res, err := client.Complete(ctx, req)
	if err != nil {
		return err
	}

	printResult(res, false)

	if completionCache != nil {
		completionCache.Put(ctx, req, res)
	}
	if usageStore != nil {
		servedBy := primary.Name()
		if res.Source == backend.SourceFallback && fallback != nil {
			servedBy = fallback.Name()
		}
		rec := &usage.Record{
			RequestID: uuid.New().String(),
			Backend:   servedBy,
			Model:     res.Model,
			Source:    res.Source,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if res.Usage != nil {
			rec.InputTokens = res.Usage.InputTokens
			rec.OutputTokens = res.Usage.OutputTokens
		}
		// Best-effort, bounded: a one-shot process has nowhere to park
		// an async write, so block briefly and shrug off failures.
		logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := usageStore.Log(logCtx, rec); err != nil {
			log.Printf("failed to record usage: %v", err)
		}
	}
	return nil
}

func reportUsage(ctx context.Context, store usage.Store, days int) error {
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	records, err := store.List(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to query usage: %w", err)
	}
	total, err := store.TotalTokens(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to total usage: %w", err)
	}

	fmt.Printf("%d completions, %d tokens in the last %d days\n", len(records), total, days)
	for _, r := range records {
		fmt.Printf("  %s  %-9s %-28s in=%-6d out=%-6d %dms\n",
			r.CreatedAt.Format(time.RFC3339), r.Source, r.Model,
			r.InputTokens, r.OutputTokens, r.LatencyMs)
	}
	return nil
}

func printResult(res *backend.CompletionResult, cached bool) {
	fmt.Println(res.Text)
	source := string(res.Source)
	if cached {
		source = "cache"
	}
	if res.Usage != nil {
		fmt.Fprintf(os.Stderr, "[%s] tokens in=%d out=%d model=%s\n",
			source, res.Usage.InputTokens, res.Usage.OutputTokens, res.Model)
	} else {
		fmt.Fprintf(os.Stderr, "[%s] model=%s\n", source, res.Model)
	}
}

// hintFor maps a terminal failure to a next step the user can take.
func hintFor(err error) string {
	switch backend.KindOf(err) {
	case backend.KindFallbackUnavailable:
		return "set ANTHROPIC_API_KEY and VSCODE_LLM_FALLBACK=true to enable fallback"
	case backend.KindConnection:
		return "is the proxy running? check VSCODE_LLM_ENDPOINT, or try again later"
	case backend.KindContentFiltered:
		return "the prompt or response was blocked by content policy"
	}
	return ""
}
