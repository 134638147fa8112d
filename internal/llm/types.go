package llm

import "encoding/json"

// Supported DeepSeek model identifiers
const (
	ModelChat     = "deepseek-chat"
	ModelReasoner = "deepseek-reasoner"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// reservedKeys are request fields that caller-supplied options may never
// overwrite. Colliding option keys are dropped.
var reservedKeys = map[string]struct{}{
	"model":       {},
	"messages":    {},
	"temperature": {},
	"stream":      {},
}

// ChatRequest represents a chat completion request. Extra holds open-ended
// options merged verbatim into the JSON body, minus the reserved keys.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	Stream      bool
	Extra       map[string]any
}

// MarshalJSON flattens the request into a single JSON object. Fixed fields
// are written last so they always win over Extra.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		body[k] = v
	}
	body["model"] = r.Model
	body["messages"] = r.Messages
	body["temperature"] = r.Temperature
	body["stream"] = r.Stream
	return json.Marshal(body)
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Content returns the generated text of the first choice, or "" if the
// response carries no usable content.
func (r *ChatResponse) Content() string {
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == nil {
		return ""
	}
	return *r.Choices[0].Message.Content
}

// Choice represents a completion choice
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message inside a choice. Content is a
// pointer so a missing field can be told apart from an empty string.
type ResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an API error envelope
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
