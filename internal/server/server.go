// Package server provides the HTTP API for OpsMind.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/answer"
	"github.com/opsmind-ai/opsmind/internal/chatlog"
	"github.com/opsmind-ai/opsmind/internal/config"
	"github.com/opsmind-ai/opsmind/internal/ingest"
	"github.com/opsmind-ai/opsmind/internal/models"
	"github.com/opsmind-ai/opsmind/internal/store"
)

// maxUploadBytes bounds document upload size.
const maxUploadBytes = 64 << 20

// Retriever answers evidence queries for the search endpoint.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]*models.RetrievedChunk, error)
}

// Server is the HTTP server for the OpsMind API.
type Server struct {
	synth     *answer.Synthesizer
	retriever Retriever
	ingestor  *ingest.Ingestor
	chunks    *store.ChunkStore
	chat      *chatlog.Log
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	synth *answer.Synthesizer,
	ret Retriever,
	ingestor *ingest.Ingestor,
	chunks *store.ChunkStore,
	chat *chatlog.Log,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		synth:     synth,
		retriever: ret,
		ingestor:  ingestor,
		chunks:    chunks,
		chat:      chat,
		cfg:       cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleUploadDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Delete("/api/v1/documents/{source}", s.handleDeleteDocument)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/chat", s.handleChat)
	r.Get("/api/v1/chat/{session}", s.handleChatHistory)
	r.Delete("/api/v1/chat/{session}", s.handleChatClear)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
