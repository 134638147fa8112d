// Package ratelimit enforces request and token budgets in Redis so that
// several pipeline processes sharing one API key stay under the provider's
// limits together. It is optional; without Redis the client relies on the
// transport's 429 handling alone.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/avreyes/deepgen/internal/config"
	"github.com/avreyes/deepgen/internal/storage"
)

const requestLimitScript = `
local minute = tonumber(redis.call('GET', KEYS[1]) or "0")
local hour = tonumber(redis.call('GET', KEYS[2]) or "0")
local minute_limit = tonumber(ARGV[1])
local hour_limit = tonumber(ARGV[2])

if minute_limit > 0 and minute >= minute_limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, ttl > 0 and ttl or 60}
end

if hour_limit > 0 and hour >= hour_limit then
    local ttl = redis.call('TTL', KEYS[2])
    return {-2, ttl > 0 and ttl or 3600}
end

if minute == 0 then
    redis.call('SET', KEYS[1], 1, 'EX', tonumber(ARGV[3]))
else
    redis.call('INCR', KEYS[1])
end

if hour == 0 then
    redis.call('SET', KEYS[2], 1, 'EX', tonumber(ARGV[4]))
else
    redis.call('INCR', KEYS[2])
end

return {1, 0}
`

const tokenBudgetScript = `
local limit = tonumber(ARGV[1])

if limit == 0 then
    return {1, 0, 0, 0}
end

local used = tonumber(redis.call('GET', KEYS[1]) or "0")
local to_add = tonumber(ARGV[3])

if used + to_add > limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, used, limit - used, ttl > 0 and ttl or tonumber(ARGV[2])}
end

if used == 0 then
    redis.call('SET', KEYS[1], to_add, 'EX', tonumber(ARGV[2]))
else
    redis.call('INCRBY', KEYS[1], to_add)
end

used = used + to_add
local remaining = limit - used

return {1, used, remaining, 0}
`

// Limiter checks request and token budgets atomically via Lua scripts.
type Limiter struct {
	client           *storage.Client
	requestScriptSHA string
	tokenScriptSHA   string
}

// NewLimiter creates a new limiter and preloads its scripts.
func NewLimiter(client *storage.Client) (*Limiter, error) {
	ctx := context.Background()

	requestSHA, err := client.Redis().ScriptLoad(ctx, requestLimitScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load request limit script: %w", err)
	}

	tokenSHA, err := client.Redis().ScriptLoad(ctx, tokenBudgetScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load token budget script: %w", err)
	}

	return &Limiter{
		client:           client,
		requestScriptSHA: requestSHA,
		tokenScriptSHA:   tokenSHA,
	}, nil
}

// RequestResult holds the result of a request limit check
type RequestResult struct {
	Allowed        bool
	SecondsToReset int
	LimitType      string // "minute" or "hour"
}

// CheckRequest checks and increments the per-minute and per-hour request
// counters for scope. Zero limits mean unlimited.
func (l *Limiter) CheckRequest(ctx context.Context, scope string, limits config.LimitsConfig) (*RequestResult, error) {
	minuteKey := l.client.Keys().RateLimitMinute(scope)
	hourKey := l.client.Keys().RateLimitHour(scope)

	result, err := l.client.Redis().EvalSha(ctx, l.requestScriptSHA, []string{minuteKey, hourKey},
		limits.RequestsPerMinute,
		limits.RequestsPerHour,
		60,   // minute TTL
		3600, // hour TTL
	).Result()

	if err != nil {
		return nil, fmt.Errorf("request limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected request limit result format")
	}

	status, _ := values[0].(int64)
	seconds, _ := values[1].(int64)

	switch status {
	case 1:
		return &RequestResult{Allowed: true}, nil
	case -1:
		return &RequestResult{
			Allowed:        false,
			SecondsToReset: int(seconds),
			LimitType:      "minute",
		}, nil
	case -2:
		return &RequestResult{
			Allowed:        false,
			SecondsToReset: int(seconds),
			LimitType:      "hour",
		}, nil
	default:
		return nil, fmt.Errorf("unknown request limit status: %d", status)
	}
}

// TokenResult holds the result of a token budget check
type TokenResult struct {
	Allowed         bool
	TokensUsed      int
	TokensRemaining int
	SecondsToReset  int
}

// CheckTokens charges tokensToAdd against the scope's budget for the current
// period. A zero tokens_per_period limit disables the check.
func (l *Limiter) CheckTokens(ctx context.Context, scope string, limits config.LimitsConfig, tokensToAdd int) (*TokenResult, error) {
	if limits.TokensPerPeriod == 0 {
		return &TokenResult{Allowed: true}, nil
	}

	// Budget periods are aligned to wall-clock boundaries so every process
	// computes the same key.
	now := time.Now()
	periodSeconds := int64(limits.PeriodHours * 3600)
	periodStart := (now.Unix() / periodSeconds) * periodSeconds

	key := l.client.Keys().TokenBudget(scope, periodStart)

	result, err := l.client.Redis().EvalSha(ctx, l.tokenScriptSHA, []string{key},
		limits.TokensPerPeriod,
		periodSeconds,
		tokensToAdd,
	).Result()

	if err != nil {
		return nil, fmt.Errorf("token budget check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected token budget result format")
	}

	status, _ := values[0].(int64)
	used, _ := values[1].(int64)
	remaining, _ := values[2].(int64)
	seconds, _ := values[3].(int64)

	if status == 1 {
		return &TokenResult{
			Allowed:         true,
			TokensUsed:      int(used),
			TokensRemaining: int(remaining),
		}, nil
	}

	return &TokenResult{
		Allowed:         false,
		TokensUsed:      int(used),
		TokensRemaining: int(remaining),
		SecondsToReset:  int(seconds),
	}, nil
}
