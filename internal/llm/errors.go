package llm

import "fmt"

// ConfigurationError indicates an unusable client configuration, such as a
// missing API key. It is fatal at construction time and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// TransportError indicates a network failure or an HTTP status that could not
// be resolved by transport-tier retries. Status is 0 when the failure happened
// below the HTTP layer.
type TransportError struct {
	Status   int
	Attempts int
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("API error (%d) after %d attempts", e.Status, e.Attempts)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError indicates that the HTTP exchange succeeded but the
// body does not have the expected completion shape.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// EmptyContentError indicates a well-formed response whose generated text is
// empty or whitespace only. Only the retry orchestrator raises it.
type EmptyContentError struct {
	Model string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("model %s returned empty content", e.Model)
}

// ExhaustedRetriesError is the single fatal outcome of the retry
// orchestrator. It carries the last underlying error for diagnosis.
type ExhaustedRetriesError struct {
	Description string
	Attempts    int
	Err         error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Description, e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }
