package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ncifuentes/crimrag/internal/llm"
)

// LLMScorer scores query-document pairs with an LLM. The model sees the
// query and every document together in one call and returns structured
// relevance scores, so one search costs one extra completion instead of
// one per document.
type LLMScorer struct {
	llmClient llm.LLM
	model     string
}

// LLMScorerOption is a functional option for configuring LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithModel sets the model to use for scoring.
func WithModel(model string) LLMScorerOption {
	return func(s *LLMScorer) {
		s.model = model
	}
}

// NewLLMScorer creates a new LLM-based relevance scorer.
func NewLLMScorer(llmClient llm.LLM, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{
		llmClient: llmClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// relevanceScore represents the structured output from the LLM.
type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason,omitempty"`
}

type scoreResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// Score asks the LLM to rate every document's relevance to the query on a
// 0.0-1.0 scale. Documents the model omits from its answer get a neutral 0.5.
func (s *LLMScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	prompt := s.buildScoringPrompt(query, texts)

	opts := llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0.0, // Deterministic scoring
		MaxTokens:   1024,
	}

	response, err := s.llmClient.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("llm scoring failed: %w", err)
	}

	scores, err := s.parseScoreResponse(response, len(texts))
	if err != nil {
		return nil, fmt.Errorf("failed to parse scoring response: %w", err)
	}

	return scores, nil
}

// buildScoringPrompt constructs the prompt for LLM relevance scoring.
func (s *LLMScorer) buildScoringPrompt(query string, texts []string) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system. Score each document's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("Documents to score:\n")
	for i, text := range texts {
		// Truncate content to avoid token limits. Cut on a rune boundary
		// so accented characters are never split mid-sequence.
		if runes := []rune(text); len(runes) > 500 {
			text = string(runes[:500]) + "..."
		}
		sb.WriteString(fmt.Sprintf("[Doc %d]: %s\n\n", i, text))
	}

	sb.WriteString(`Score each document from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}, ...]}

Be strict: irrelevant documents should score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

// parseScoreResponse extracts scores from the LLM response.
func (s *LLMScorer) parseScoreResponse(response string, numTexts int) ([]float64, error) {
	response = strings.TrimSpace(response)

	// Extract JSON from markdown code blocks if present
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	response = strings.TrimSpace(response)

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("invalid score JSON: %w", err)
	}

	// Default score for documents the model skipped
	scores := make([]float64, numTexts)
	for i := range scores {
		scores[i] = 0.5
	}

	for _, sc := range parsed.Scores {
		if sc.DocIndex >= 0 && sc.DocIndex < numTexts {
			score := sc.Score
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
			scores[sc.DocIndex] = score
		}
	}

	return scores, nil
}

// Ensure LLMScorer implements Scorer interface.
var _ Scorer = (*LLMScorer)(nil)
