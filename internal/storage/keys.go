package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming. scope identifies the
// budget owner, typically the pipeline name or an embedding service's tenant.
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// RateLimitMinute returns the key for per-minute request limiting
func (k *Keys) RateLimitMinute(scope string) string {
	return fmt.Sprintf("%sratelimit:%s:minute", k.prefix, scope)
}

// RateLimitHour returns the key for per-hour request limiting
func (k *Keys) RateLimitHour(scope string) string {
	return fmt.Sprintf("%sratelimit:%s:hour", k.prefix, scope)
}

// TokenBudget returns the key for token usage tracking within a period
func (k *Keys) TokenBudget(scope string, periodStart int64) string {
	return fmt.Sprintf("%stokens:%s:%d", k.prefix, scope, periodStart)
}
