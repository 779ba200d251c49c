package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/chatlog"
	"github.com/opsmind-ai/opsmind/internal/embedding"
	"github.com/opsmind-ai/opsmind/internal/extract"
	"github.com/opsmind-ai/opsmind/internal/ingest"
	"github.com/opsmind-ai/opsmind/internal/llm"
	"github.com/opsmind-ai/opsmind/internal/models"
	"github.com/opsmind-ai/opsmind/internal/storage"
	"github.com/opsmind-ai/opsmind/internal/store"
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	source := filepath.Base(header.Filename)
	if source == "." || source == "/" || source == "" {
		s.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if !ingest.IsSupported(source) {
		s.respondError(w, http.StatusBadRequest, "unsupported file type")
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "read upload failed")
		return
	}

	res, err := s.ingestor.IngestBytes(r.Context(), source, content)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("source", source), zap.Error(err))
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	sources, err := s.chunks.ListSources(r.Context())
	if err != nil {
		s.logger.Error("list sources failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	removed, err := s.chunks.Delete(r.Context(), source)
	if err != nil {
		s.logger.Error("delete failed", zap.String("source", source), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if removed == 0 {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"source": source, "removed": removed})
}

type askRequest struct {
	Question string `json:"question"`
	Session  string `json:"session,omitempty"`
	K        int    `json:"k,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	s.answerAndRespond(w, r, req.Question, req.Session, req.K)
}

type chatRequest struct {
	Session   string            `json:"session"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Citations []models.Citation `json:"citations,omitempty"`
}

// handleChat appends a message to a session without running the answer
// pipeline. Clients that drive the pipeline themselves use this to record
// turns; /ask with a session records both sides automatically.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Session == "" {
		s.respondError(w, http.StatusBadRequest, "session is required")
		return
	}
	msg := &models.Message{
		Role:      req.Role,
		Content:   req.Content,
		Citations: req.Citations,
		Timestamp: time.Now().UTC(),
	}
	if err := s.chat.Append(r.Context(), req.Session, msg); err != nil {
		if errors.Is(err, chatlog.ErrInvalidMessage) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("chat append failed", zap.String("session", req.Session), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"session": req.Session, "status": "recorded"})
}

// answerAndRespond runs the question through the pipeline and, when a session
// is given, records the exchange. Logging failures do not fail the request;
// the answer already exists and must reach the caller.
func (s *Server) answerAndRespond(w http.ResponseWriter, r *http.Request, question, session string, k int) {
	ans, err := s.synth.AnswerK(r.Context(), question, k)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if session != "" {
		now := time.Now().UTC()
		userMsg := &models.Message{Role: models.RoleUser, Content: question, Timestamp: now}
		if err := s.chat.Append(r.Context(), session, userMsg); err != nil {
			s.logger.Warn("record user message failed", zap.String("session", session), zap.Error(err))
		}
		assistantMsg := &models.Message{
			Role:      models.RoleAssistant,
			Content:   ans.Text,
			Citations: ans.Citations,
			Timestamp: time.Now().UTC(),
		}
		if err := s.chat.Append(r.Context(), session, assistantMsg); err != nil {
			s.logger.Warn("record assistant message failed", zap.String("session", session), zap.Error(err))
		}
	}
	resp := map[string]any{"answer": ans.Text, "citations": ans.Citations}
	if session != "" {
		resp["session"] = session
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type searchResult struct {
	Source     string  `json:"source"`
	Page       int     `json:"page,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}
	retrieved, err := s.retriever.Retrieve(r.Context(), q, k)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	results := make([]searchResult, len(retrieved))
	for i, rc := range retrieved {
		results[i] = searchResult{
			Source:     rc.Chunk.Source,
			Page:       rc.Chunk.Page,
			ChunkIndex: rc.Chunk.ChunkIndex,
			Score:      rc.Score,
			Text:       rc.Chunk.Text,
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"query": q, "results": results})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	messages, err := s.chat.History(r.Context(), session)
	if err != nil {
		s.logger.Error("chat history failed", zap.String("session", session), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"session": session, "messages": messages})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	if err := s.chat.Clear(r.Context(), session); err != nil {
		s.logger.Error("chat clear failed", zap.String("session", session), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"session": session, "status": "cleared"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chunkCount, err := s.chunks.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sourceCount, err := s.chunks.CountSources(ctx)
	if err != nil {
		s.logger.Error("status: count sources failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"chunks":            chunkCount,
		"documents":         sourceCount,
		"vector_index_size": s.chunks.IndexSize(),
		"config": map[string]any{
			"embedding_provider":   s.cfg.Embedding.Provider,
			"embedding_dimensions": s.chunks.Dimensions(),
			"chunk_size":           s.cfg.Ingest.ChunkSize,
			"chunk_overlap":        s.cfg.Ingest.ChunkOverlap,
			"top_k":                s.cfg.Retrieval.TopK,
			"database_path":        s.cfg.Storage.DatabasePath,
			"vector_index_path":    s.cfg.Storage.VectorIndexPath,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DatabasePath, s.cfg.Storage.VectorIndexPath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps pipeline errors to HTTP status codes. Backend outages are
// 503 so callers can tell them from bad requests.
func (s *Server) statusFor(err error) int {
	switch {
	case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, llm.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, extract.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDimensionMismatch), errors.Is(err, store.ErrUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
