package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.3-70b-versatile"
)

// GroqConfig holds configuration for the Groq LLM client.
type GroqConfig struct {
	// APIKey is the Groq API key.
	APIKey string

	// BaseURL overrides the API endpoint (default: https://api.groq.com/openai/v1).
	// Any OpenAI-compatible endpoint works here.
	BaseURL string

	// Model is the default model when GenerateOptions does not name one.
	Model string
}

// GroqClient implements the LLM interface against Groq's OpenAI-compatible
// chat completions API.
type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient creates a new Groq LLM client with the given configuration.
func NewGroqClient(cfg GroqConfig) (*GroqClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultGroqModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL

	return &GroqClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (c *GroqClient) buildRequest(prompt string, opts GenerateOptions) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

// Generate sends a prompt to the LLM and returns the complete response.
func (c *GroqClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(prompt, opts))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// GenerateStream sends a prompt to the LLM and streams response chunks
// over the returned channel.
func (c *GroqClient) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(prompt, opts))
	if err != nil {
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- StreamChunk{Done: true}
				return
			}
			if err != nil {
				chunks <- StreamChunk{Error: fmt.Errorf("stream receive failed: %w", err), Done: true}
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}

			select {
			case chunks <- StreamChunk{Token: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				chunks <- StreamChunk{Error: ctx.Err(), Done: true}
				return
			}
		}
	}()

	return chunks, nil
}

// Ensure GroqClient implements LLM interface.
var _ LLM = (*GroqClient)(nil)
