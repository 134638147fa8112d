package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avreyes/deepgen/internal/config"
	"github.com/avreyes/deepgen/internal/tokens"
)

const codeGenSystemPrompt = "You are a helpful programming assistant. " +
	"Generate only Python code based on the given description. " +
	"Include comments and error handling."

// Client talks to the DeepSeek chat completions API. One client owns one
// pooled HTTP session and one append-only call history; both are safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	counter    *tokens.Counter
	history    *history
	logger     zerolog.Logger
}

// NewClient creates a new DeepSeek client. The API key comes from the
// explicit config value or, when that is empty, from the configured
// environment variable.
func NewClient(cfg config.APIConfig, logger zerolog.Logger) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	if apiKey == "" {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("API key must be provided or set in %s", cfg.APIKeyEnv),
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: newRetryTransport(cfg, logger),
		},
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		counter: tokens.NewCounter(),
		history: &history{},
		logger:  logger,
	}, nil
}

// Chat sends a chat completion request and records the exchange in the call
// history. opts are merged verbatim into the request body, except for the
// reserved fields model/messages/temperature/stream, which always win.
// Temperature is passed through unvalidated.
func (c *Client) Chat(ctx context.Context, messages []Message, model string, temperature float64, opts map[string]any) (*ChatResponse, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}
	if model != ModelChat && model != ModelReasoner {
		return nil, fmt.Errorf("unsupported model: %s", model)
	}

	req := ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		Extra:       opts,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if estimate, cerr := c.counter.CountMessages(messagesText(messages)); cerr == nil {
		c.logger.Debug().
			Str("model", model).
			Int("estimated_prompt_tokens", estimate).
			Msg("Sending chat completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var terr *TransportError
		if !errors.As(err, &terr) {
			terr = &TransportError{Attempts: 1, Err: err}
		}
		c.logger.Error().Err(terr).Msg("API call failed")
		return nil, terr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		terr := &TransportError{Status: resp.StatusCode, Attempts: 1}
		var errResp ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			terr.Message = errResp.Error.Message
		} else {
			terr.Message = string(respBody)
		}
		c.logger.Error().Int("status", resp.StatusCode).Msg("API returned error status")
		return nil, terr
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &MalformedResponseError{Reason: "body is not valid JSON", Err: err}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &MalformedResponseError{Reason: "response has no choices"}
	}
	if chatResp.Choices[0].Message.Content == nil {
		return nil, &MalformedResponseError{Reason: "first choice has no message content"}
	}

	rec := CallRecord{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Model:      model,
		Messages:   messages,
		Duration:   time.Since(start),
		Status:     resp.StatusCode,
		TokensUsed: chatResp.Usage.TotalTokens,
	}
	c.history.append(rec)

	c.logger.Info().
		Str("model", model).
		Int("tokens_used", rec.TokensUsed).
		Dur("duration", rec.Duration).
		Msg("Chat completion succeeded")

	return &chatResp, nil
}

// GenerateCode asks the reasoner model for code matching the prompt. It is a
// fixed specialization of Chat with a low temperature for determinism.
func (c *Client) GenerateCode(ctx context.Context, prompt string) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: codeGenSystemPrompt},
		{Role: RoleUser, Content: "Generate Python code for the following task:\n\n" + prompt},
	}

	resp, err := c.Chat(ctx, messages, ModelReasoner, 0.2, nil)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// History returns a point-in-time snapshot of the call history, oldest
// first. Mutating the returned slice does not affect the store.
func (c *Client) History() []CallRecord {
	return c.history.snapshot()
}

func messagesText(messages []Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}
