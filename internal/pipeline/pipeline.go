// Package pipeline sequences the fixed code-generation prompts and writes
// their output to files. It is the glue around the client; all failure
// handling lives in the llm package's two retry tiers.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avreyes/deepgen/internal/config"
	"github.com/avreyes/deepgen/internal/llm"
	"github.com/avreyes/deepgen/internal/ratelimit"
	"github.com/avreyes/deepgen/internal/tokens"
)

const (
	searchParamsFile = "search_params.json"
	limiterScope     = "pipeline"

	// Response tokens reserved on top of the prompt estimate when charging
	// the token budget.
	responseReserve = 1000
)

// Runner executes the pipeline tasks in order through one client. The
// configuration can be swapped while a run is in flight; each task reads the
// current one when it starts.
type Runner struct {
	client  *llm.Client
	limiter *ratelimit.Limiter // nil when Redis is not configured
	counter *tokens.Counter
	logger  zerolog.Logger

	mu  sync.RWMutex
	cfg *config.Config
}

// NewRunner creates a pipeline runner. limiter may be nil.
func NewRunner(client *llm.Client, limiter *ratelimit.Limiter, cfg *config.Config, logger zerolog.Logger) *Runner {
	return &Runner{
		client:  client,
		limiter: limiter,
		counter: tokens.NewCounter(),
		logger:  logger,
		cfg:     cfg,
	}
}

// UpdateConfig swaps in a freshly loaded configuration. Retry, pause, limit
// and output settings take effect from the next task onward; the in-flight
// task keeps the settings it started with.
func (r *Runner) UpdateConfig(cfg *config.Config) error {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()

	r.logger.Info().Msg("Pipeline configuration updated")
	return nil
}

func (r *Runner) config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Run executes every task, writes each result next to the search parameter
// file, and returns the first fatal error. A failed task aborts the run;
// partial output from earlier tasks is left in place.
func (r *Runner) Run(ctx context.Context) error {
	for i, task := range Tasks() {
		if i > 0 {
			// Fixed pause between tasks, separate from any retry backoff
			if err := sleepCtx(ctx, r.config().Pipeline.Pause()); err != nil {
				return err
			}
		}

		if err := r.runTask(ctx, task); err != nil {
			return err
		}
	}

	if err := r.writeSearchParams(); err != nil {
		return err
	}

	records := r.client.History()
	totalTokens := 0
	for _, rec := range records {
		totalTokens += rec.TokensUsed
	}
	r.logger.Info().
		Int("calls", len(records)).
		Int("total_tokens", totalTokens).
		Msg("Pipeline finished")

	return nil
}

func (r *Runner) runTask(ctx context.Context, task Task) error {
	cfg := r.config()
	r.logger.Info().Str("task", task.Name).Msg("Generating")

	retrier := llm.NewRetrier(r.logger)
	retrier.BaseDelay = cfg.Retry.BaseDelay()

	messages := task.Messages()
	if err := r.checkBudgets(ctx, cfg, messages); err != nil {
		return err
	}

	content, err := retrier.Call(ctx, r.client, messages, task.Name, cfg.Retry.MaxAttempts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Pipeline.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(cfg.Pipeline.OutputDir, task.OutputFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", task.OutputFile, err)
	}

	r.logger.Info().
		Str("task", task.Name).
		Str("file", path).
		Msg("Generated and saved")
	return nil
}

// checkBudgets consults the shared Redis limits when configured. A denied
// request budget waits for the reset instead of failing the run.
func (r *Runner) checkBudgets(ctx context.Context, cfg *config.Config, messages []llm.Message) error {
	if r.limiter == nil {
		return nil
	}

	for {
		result, err := r.limiter.CheckRequest(ctx, limiterScope, cfg.Limits)
		if err != nil {
			return err
		}
		if result.Allowed {
			break
		}
		r.logger.Warn().
			Str("limit", result.LimitType).
			Int("seconds", result.SecondsToReset).
			Msg("Request budget exhausted, waiting for reset")
		if err := sleepCtx(ctx, time.Duration(result.SecondsToReset)*time.Second); err != nil {
			return err
		}
	}

	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	estimate, err := r.counter.CountMessages(contents)
	if err != nil {
		estimate = 0
	}

	tokenResult, err := r.limiter.CheckTokens(ctx, limiterScope, cfg.Limits, estimate+responseReserve)
	if err != nil {
		return err
	}
	if !tokenResult.Allowed {
		return fmt.Errorf("token budget exhausted: %d tokens remaining, resets in %ds",
			tokenResult.TokensRemaining, tokenResult.SecondsToReset)
	}

	return nil
}

func (r *Runner) writeSearchParams() error {
	cfg := r.config()
	data, err := json.MarshalIndent(cfg.Pipeline.Search, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal search parameters: %w", err)
	}

	if err := os.MkdirAll(cfg.Pipeline.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(cfg.Pipeline.OutputDir, searchParamsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write search parameters: %w", err)
	}

	r.logger.Info().Str("file", path).Msg("Search parameters saved")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
