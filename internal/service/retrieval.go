package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ncifuentes/crimrag/internal/llm"
	"github.com/ncifuentes/crimrag/internal/memory"
	"github.com/ncifuentes/crimrag/internal/repository"
	"github.com/ncifuentes/crimrag/internal/reranker"
	"github.com/ncifuentes/crimrag/internal/retriever"
)

// RetrievalService answers questions over the corpus: retrieve, optionally
// re-score, build the prompt, and generate.
type RetrievalService struct {
	retriever *retriever.Retriever
	reranker  *reranker.Reranker
	llmClient llm.LLM
	memory    *memory.Store
	logRepo   repository.QueryLogRepository
	logger    *slog.Logger

	temperature float32
	maxTokens   int
}

// RetrievalServiceOption is a functional option for configuring RetrievalService.
type RetrievalServiceOption func(*RetrievalService)

// WithReranker sets the cross-encoder reranker.
func WithReranker(r *reranker.Reranker) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.reranker = r
	}
}

// WithQueryLog sets the audit log repository. Without it queries are served
// but not recorded.
func WithQueryLog(repo repository.QueryLogRepository) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.logRepo = repo
	}
}

// WithMemory sets the conversation store for multi-turn sessions.
func WithMemory(store *memory.Store) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.memory = store
	}
}

// NewRetrievalService creates a RetrievalService.
func NewRetrievalService(ret *retriever.Retriever, llmClient llm.LLM, logger *slog.Logger, opts ...RetrievalServiceOption) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RetrievalService{
		retriever: ret,
		llmClient: llmClient,
		memory:    memory.DefaultStore(),
		logger:    logger,
		// Low temperature keeps answers factual and reproducible.
		temperature: 0.3,
		maxTokens:   2048,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RetrieveRequest selects and ranks passages without generation.
type RetrieveRequest struct {
	Query      string
	Partitions []string
	K          int
	Filter     map[string]string
	UseMMR     bool
	Rerank     bool
	SessionID  string
}

// Retrieve runs the ranking pipeline and returns the ordered candidates.
func (s *RetrievalService) Retrieve(ctx context.Context, req RetrieveRequest) ([]retriever.Candidate, error) {
	started := time.Now()

	candidates, err := s.retriever.Retrieve(ctx, req.Query, retriever.Options{
		Partitions: req.Partitions,
		K:          req.K,
		Filter:     req.Filter,
		UseMMR:     req.UseMMR,
	})
	if err != nil {
		return nil, err
	}

	reranked := false
	if req.Rerank && s.reranker != nil && s.reranker.Enabled() {
		candidates = s.reranker.Rerank(ctx, req.Query, candidates, req.K)
		reranked = true
	}

	s.audit(ctx, req, candidates, reranked, false, time.Since(started))
	return candidates, nil
}

// AskRequest is one question against the corpus.
type AskRequest struct {
	Query      string
	SessionID  string
	Partitions []string
	K          int
	Filter     map[string]string
	UseMMR     bool
	Rerank     bool
}

// Source describes one passage that supported an answer.
type Source struct {
	ID          string
	Text        string
	Partition   string
	Reliability string
	Distance    float64
	Metadata    map[string]string
}

// Answer is the generated response plus its supporting passages.
type Answer struct {
	Text             string
	Sources          []Source
	Grounded         bool
	RetrievalTimeMS  int64
	GenerationTimeMS int64
}

// Ask retrieves context for the question, builds the prompt with any session
// history, and generates an answer. A question with no retrievable context
// still gets an answer, flagged as ungrounded.
func (s *RetrievalService) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	started := time.Now()

	candidates, err := s.retriever.Retrieve(ctx, req.Query, retriever.Options{
		Partitions: req.Partitions,
		K:          req.K,
		Filter:     req.Filter,
		UseMMR:     req.UseMMR,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	reranked := false
	if req.Rerank && s.reranker != nil && s.reranker.Enabled() {
		candidates = s.reranker.Rerank(ctx, req.Query, candidates, req.K)
		reranked = true
	}
	retrievalTime := time.Since(started)

	var history []memory.Exchange
	if req.SessionID != "" && s.memory != nil {
		history = s.memory.RecentHistory(req.SessionID, 5)
	}

	prompt := buildAnswerPrompt(candidates, req.Query, history)

	generationStart := time.Now()
	text, err := s.llmClient.Generate(ctx, prompt, llm.GenerateOptions{
		SystemPrompt: analystSystemPrompt,
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	generationTime := time.Since(generationStart)

	if req.SessionID != "" && s.memory != nil {
		s.memory.AddExchange(req.SessionID, req.Query, text)
	}

	sources := make([]Source, len(candidates))
	for i, c := range candidates {
		sources[i] = Source{
			ID:          c.ID,
			Text:        c.Text,
			Partition:   c.Partition,
			Reliability: c.Metadata[retriever.MetadataReliabilityKey],
			Distance:    c.Distance,
			Metadata:    c.Metadata,
		}
	}

	answer := &Answer{
		Text:             text,
		Sources:          sources,
		Grounded:         isGrounded(text, len(sources)),
		RetrievalTimeMS:  retrievalTime.Milliseconds(),
		GenerationTimeMS: generationTime.Milliseconds(),
	}

	s.audit(ctx, RetrieveRequest{
		Query:      req.Query,
		Partitions: req.Partitions,
		K:          req.K,
		UseMMR:     req.UseMMR,
		SessionID:  req.SessionID,
	}, candidates, reranked, true, time.Since(started))

	return answer, nil
}

// audit appends one query log record. Logging failures are reported but
// never fail the query.
func (s *RetrievalService) audit(ctx context.Context, req RetrieveRequest, candidates []retriever.Candidate, reranked, answered bool, took time.Duration) {
	if s.logRepo == nil {
		return
	}

	k := req.K
	if k <= 0 {
		k = s.retriever.Policy().DefaultK
	}

	entry := &repository.QueryLog{
		ID:          uuid.New(),
		SessionID:   req.SessionID,
		Query:       req.Query,
		Partitions:  req.Partitions,
		K:           k,
		UsedMMR:     req.UseMMR,
		Reranked:    reranked,
		ResultCount: len(candidates),
		Answered:    answered,
		DurationMS:  took.Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write query log", slog.String("error", err.Error()))
	}
}

// Close releases the session store.
func (s *RetrievalService) Close() {
	if s.memory != nil {
		s.memory.Close()
	}
}
