package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ncifuentes/crimrag/internal/auth"
	"github.com/ncifuentes/crimrag/internal/config"
	"github.com/ncifuentes/crimrag/internal/repository"
	"github.com/ncifuentes/crimrag/internal/retriever"
	"github.com/ncifuentes/crimrag/internal/service"
)

type handlers struct {
	ingest    *service.IngestService
	retrieval *service.RetrievalService
	jwt       *auth.JWTManager
	corpus    *config.Corpus
	logger    *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type queryRequest struct {
	Query      string            `json:"query"`
	SessionID  string            `json:"session_id,omitempty"`
	Partitions []string          `json:"partitions,omitempty"`
	K          int               `json:"k,omitempty"`
	Filter     map[string]string `json:"filter,omitempty"`
	UseMMR     bool              `json:"use_mmr,omitempty"`
	Rerank     bool              `json:"rerank,omitempty"`
}

type sourceResponse struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Partition   string            `json:"partition"`
	Reliability string            `json:"reliability,omitempty"`
	Distance    float64           `json:"distance"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type queryResponse struct {
	Answer           string           `json:"answer"`
	Grounded         bool             `json:"grounded"`
	Sources          []sourceResponse `json:"sources"`
	RetrievalTimeMS  int64            `json:"retrieval_time_ms"`
	GenerationTimeMS int64            `json:"generation_time_ms"`
}

// query answers a question with retrieval-augmented generation.
func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.retrieval.Ask(r.Context(), service.AskRequest{
		Query:      req.Query,
		SessionID:  req.SessionID,
		Partitions: req.Partitions,
		K:          req.K,
		Filter:     req.Filter,
		UseMMR:     req.UseMMR,
		Rerank:     req.Rerank,
	})
	if err != nil {
		h.logger.Error("query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	sources := make([]sourceResponse, len(answer.Sources))
	for i, s := range answer.Sources {
		sources[i] = sourceResponse{
			ID:          s.ID,
			Text:        s.Text,
			Partition:   s.Partition,
			Reliability: s.Reliability,
			Distance:    s.Distance,
			Metadata:    s.Metadata,
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:           answer.Text,
		Grounded:         answer.Grounded,
		Sources:          sources,
		RetrievalTimeMS:  answer.RetrievalTimeMS,
		GenerationTimeMS: answer.GenerationTimeMS,
	})
}

type retrieveResponse struct {
	Candidates []candidateResponse `json:"candidates"`
}

type candidateResponse struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Partition   string            `json:"partition"`
	Distance    float64           `json:"distance"`
	RerankScore *float64          `json:"rerank_score,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// retrieve runs the ranking pipeline without generation.
func (h *handlers) retrieve(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	candidates, err := h.retrieval.Retrieve(r.Context(), service.RetrieveRequest{
		Query:      req.Query,
		Partitions: req.Partitions,
		K:          req.K,
		Filter:     req.Filter,
		UseMMR:     req.UseMMR,
		Rerank:     req.Rerank,
		SessionID:  req.SessionID,
	})
	if err != nil {
		h.logger.Error("retrieve failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "retrieval failed")
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Candidates: toCandidateResponses(candidates)})
}

func toCandidateResponses(candidates []retriever.Candidate) []candidateResponse {
	out := make([]candidateResponse, len(candidates))
	for i, c := range candidates {
		resp := candidateResponse{
			ID:        c.ID,
			Text:      c.Text,
			Partition: c.Partition,
			Distance:  c.Distance,
			Metadata:  c.Metadata,
		}
		if c.Reranked {
			score := c.RerankScore
			resp.RerankScore = &score
		}
		out[i] = resp
	}
	return out
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// createSession mints a session token for multi-turn conversations.
func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	if h.jwt == nil {
		writeError(w, http.StatusNotImplemented, "sessions are not configured")
		return
	}

	token, sessionID, err := h.jwt.NewSession()
	if err != nil {
		h.logger.Error("failed to mint session token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sessionID, Token: token})
}

type ingestRequest struct {
	Content   string            `json:"content"`
	Source    string            `json:"source,omitempty"`
	Title     string            `json:"title,omitempty"`
	Partition string            `json:"partition"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id,omitempty"`
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// ingestDocument accepts raw text for ingestion.
func (h *handlers) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Partition == "" {
		writeError(w, http.StatusBadRequest, "partition is required")
		return
	}

	result, err := h.ingest.Ingest(r.Context(), service.IngestRequest{
		Content:   req.Content,
		Source:    req.Source,
		Title:     req.Title,
		Partition: req.Partition,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}

	resp := ingestResponse{
		DocumentID: result.DocumentID.String(),
		Status:     result.Status,
		Duplicate:  result.Duplicate,
	}
	if result.JobID != uuid.Nil {
		resp.JobID = result.JobID.String()
	}
	writeJSON(w, status, resp)
}

type documentResponse struct {
	ID           string            `json:"id"`
	Source       string            `json:"source"`
	Title        string            `json:"title"`
	Partition    string            `json:"partition"`
	Reliability  string            `json:"reliability,omitempty"`
	ChunkCount   int               `json:"chunk_count"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toDocumentResponse(doc *repository.Document) documentResponse {
	return documentResponse{
		ID:           doc.ID.String(),
		Source:       doc.Source,
		Title:        doc.Title,
		Partition:    doc.Partition,
		Reliability:  doc.Reliability,
		ChunkCount:   doc.ChunkCount,
		Status:       doc.Status,
		ErrorMessage: doc.ErrorMessage,
		Metadata:     doc.Metadata,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

type documentListResponse struct {
	Documents []documentResponse `json:"documents"`
	Total     int                `json:"total"`
}

// listDocuments lists document records with optional filters.
func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, total, err := h.ingest.ListDocuments(r.Context(), q.Get("partition"), q.Get("status"), limit, offset)
	if err != nil {
		h.logger.Error("failed to list documents", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	resp := documentListResponse{
		Documents: make([]documentResponse, len(docs)),
		Total:     total,
	}
	for i, doc := range docs {
		resp.Documents[i] = toDocumentResponse(doc)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getDocument returns one document record.
func (h *handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.ingest.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("failed to get document", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// deleteDocument removes a document and its vectors.
func (h *handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.ingest.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("failed to delete document", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type jobResponse struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id,omitempty"`
	Source       string     `json:"source"`
	Partition    string     `json:"partition"`
	Status       string     `json:"status"`
	ChunksTotal  int        `json:"chunks_total"`
	ChunksStored int        `json:"chunks_stored"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// getJob returns one ingest job for progress polling.
func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.ingest.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	resp := jobResponse{
		ID:           job.ID.String(),
		Source:       job.Source,
		Partition:    job.Partition,
		Status:       job.Status,
		ChunksTotal:  job.ChunksTotal,
		ChunksStored: job.ChunksStored,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	if job.DocumentID != nil {
		resp.DocumentID = job.DocumentID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type partitionResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
}

// listPartitions returns the corpus partitions in priority order.
func (h *handlers) listPartitions(w http.ResponseWriter, r *http.Request) {
	names := h.corpus.PriorityOrder()

	partitions := make([]partitionResponse, 0, len(names))
	for _, name := range names {
		for _, p := range h.corpus.Partitions {
			if p.Name == name {
				partitions = append(partitions, partitionResponse{
					Name:        p.Name,
					Description: p.Description,
					Priority:    p.Priority,
				})
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"partitions": partitions})
}
