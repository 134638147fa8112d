package llm

import (
	"sync"
	"time"
)

// CallRecord is the audit entry for one completed request/response exchange.
// Records are immutable once appended.
type CallRecord struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Model      string        `json:"model"`
	Messages   []Message     `json:"messages"`
	Duration   time.Duration `json:"duration"`
	Status     int           `json:"status"`
	TokensUsed int           `json:"tokens_used"`
}

// history is the append-only call record store. It lives as long as the
// client instance and is never truncated or reordered.
type history struct {
	mu      sync.Mutex
	records []CallRecord
}

func (h *history) append(rec CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
}

// snapshot returns a deep copy so callers cannot mutate stored records.
func (h *history) snapshot() []CallRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CallRecord, len(h.records))
	for i, rec := range h.records {
		msgs := make([]Message, len(rec.Messages))
		copy(msgs, rec.Messages)
		rec.Messages = msgs
		out[i] = rec
	}
	return out
}

func (h *history) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
