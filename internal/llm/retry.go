package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default knobs for the application-tier retry loop. The base delay grows
// linearly with the attempt index, unlike the transport's exponential policy:
// this tier protects against semantically unusable responses, not network
// weather, and the two schedules stay independent.
const (
	DefaultRetryBaseDelay = 5 * time.Second
)

// Retrier wraps Client.Chat with a second, caller-facing retry loop. A
// transport failure, a malformed body and an empty completion are all
// retryable here; only an exhausted attempt budget is fatal. Retrier holds no
// per-call state, so one value may serve concurrent calls.
type Retrier struct {
	Model       string
	Temperature float64
	BaseDelay   time.Duration
	Logger      zerolog.Logger
}

// NewRetrier returns a Retrier with the defaults the generation pipeline
// uses: the reasoner model at low temperature.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return &Retrier{
		Model:       ModelReasoner,
		Temperature: 0.2,
		BaseDelay:   DefaultRetryBaseDelay,
		Logger:      logger,
	}
}

// Call issues the conversation through the client until it yields non-empty
// content or maxAttempts is spent. description names the operation in logs
// and in the final error.
func (r *Retrier) Call(ctx context.Context, client *Client, messages []Message, description string, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.BaseDelay * time.Duration(attempt+1)
			r.Logger.Info().
				Str("operation", description).
				Dur("delay", delay).
				Msg("Waiting before retry")
			if err := sleepCtx(ctx, delay); err != nil {
				return "", err
			}
		}

		r.Logger.Info().
			Str("operation", description).
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Msg("Calling API")

		resp, err := client.Chat(ctx, messages, r.Model, r.Temperature, nil)
		if err != nil {
			lastErr = err
			r.Logger.Error().
				Err(err).
				Str("operation", description).
				Int("attempt", attempt+1).
				Msg("Attempt failed")
			continue
		}

		content := resp.Content()
		if strings.TrimSpace(content) == "" {
			lastErr = &EmptyContentError{Model: r.Model}
			r.Logger.Error().
				Str("operation", description).
				Int("attempt", attempt+1).
				Msg("API returned empty content")
			continue
		}

		return content, nil
	}

	return "", &ExhaustedRetriesError{
		Description: description,
		Attempts:    maxAttempts,
		Err:         lastErr,
	}
}

// CallWithRetry runs one orchestrated call with the default retrier
// settings, logging through the client's logger.
func CallWithRetry(ctx context.Context, client *Client, messages []Message, description string, maxAttempts int) (string, error) {
	r := NewRetrier(client.logger)
	return r.Call(ctx, client, messages, description, maxAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
