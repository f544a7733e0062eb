// Package llm defines the text-generation contract the answer path depends
// on, plus its Groq-backed implementation.
package llm

import "context"

// GenerateOptions shapes one generation call.
type GenerateOptions struct {
	// Model overrides the client's configured model when non-empty.
	Model string

	// SystemPrompt is sent as the system message ahead of the prompt.
	SystemPrompt string

	// Temperature controls sampling randomness. The answer path keeps it
	// low so answers stay factual and reproducible.
	Temperature float32

	// MaxTokens caps the response length. Zero defers to the provider.
	MaxTokens int
}

// StreamChunk is one fragment of a streamed response. The final chunk has
// Done set; a chunk carrying a non-nil Error terminates the stream early.
type StreamChunk struct {
	Token string
	Done  bool
	Error error
}

// LLM generates text from a prompt. Implementations honor context
// cancellation on both calls.
type LLM interface {
	// Generate blocks until the full response is available.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream returns a channel of response fragments. The channel
	// is closed after the Done chunk or an error chunk.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)
}
