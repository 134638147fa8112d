// Package tokens estimates prompt token counts before a request is sent.
// Estimates feed pre-flight logging and the optional token budget; the
// authoritative count is whatever the API reports back in usage.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead approximates the framing tokens the chat format adds per
// message, plus reply priming.
const (
	messageOverhead = 4
	replyPriming    = 3
)

// Counter estimates token counts for prompts. Encoders are cached per
// encoding name; the zero-value fallback is a chars/4 estimate.
type Counter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewCounter creates a new token counter.
func NewCounter() *Counter {
	return &Counter{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the estimated number of tokens in text. DeepSeek does not
// publish a tiktoken vocabulary, so cl100k_base is used as a close
// approximation for every supported model.
func (c *Counter) Count(text string) (int, error) {
	encoder, err := c.encoder("cl100k_base")
	if err != nil {
		return estimate(text), nil
	}
	return len(encoder.Encode(text, nil, nil)), nil
}

// CountMessages estimates the token cost of a whole conversation, including
// per-message framing overhead.
func (c *Counter) CountMessages(contents []string) (int, error) {
	total := replyPriming
	for _, content := range contents {
		n, err := c.Count(content)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
	}
	return total, nil
}

func (c *Counter) encoder(encoding string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[encoding]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	c.encoders[encoding] = enc
	return enc, nil
}

// estimate is the rough fallback when no encoder is available: one token per
// four characters.
func estimate(text string) int {
	return (len(text) + 3) / 4
}
