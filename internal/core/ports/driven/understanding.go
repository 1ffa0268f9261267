package driven

import (
	"context"
	"encoding/json"
)

// UnderstandingService produces schema-constrained structured output
// from a prompt. Every pipeline stage that needs text understanding
// (chunking, concept extraction, enrichment, mapping) goes through this
// port; raw JSON never travels deeper than the calling service, which
// unmarshals and validates it immediately.
//
// Implementations may include:
//   - OpenAI chat completions with JSON-schema response format
//   - Any compatible inference server exposing the same contract
type UnderstandingService interface {
	// Complete sends a prompt and returns the raw JSON document the
	// model produced for the requested schema. Errors wrap
	// domain.ErrRateLimited, domain.ErrServerError or
	// domain.ErrMalformedResponse so callers can pick a retry policy.
	Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest describes one structured-output call.
type CompletionRequest struct {
	// System is the system prompt, optional.
	System string

	// Prompt is the user prompt.
	Prompt string

	// SchemaName labels the response schema for the provider.
	SchemaName string

	// Schema is the JSON schema the response must validate against.
	Schema json.RawMessage

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
