// Package main is the OpsMind CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/answer"
	"github.com/opsmind-ai/opsmind/internal/chatlog"
	"github.com/opsmind-ai/opsmind/internal/chunker"
	"github.com/opsmind-ai/opsmind/internal/config"
	"github.com/opsmind-ai/opsmind/internal/embedding"
	"github.com/opsmind-ai/opsmind/internal/extract"
	"github.com/opsmind-ai/opsmind/internal/ingest"
	"github.com/opsmind-ai/opsmind/internal/llm"
	"github.com/opsmind-ai/opsmind/internal/models"
	"github.com/opsmind-ai/opsmind/internal/retriever"
	"github.com/opsmind-ai/opsmind/internal/server"
	"github.com/opsmind-ai/opsmind/internal/storage"
	"github.com/opsmind-ai/opsmind/internal/store"
	"github.com/opsmind-ai/opsmind/internal/vector"
	"github.com/opsmind-ai/opsmind/internal/watcher"
	"github.com/opsmind-ai/opsmind/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/opsmind/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so "opsmind server" from the
// project dir uses the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("opsmind version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		ingestor := components.Ingestor
		watchSvc = watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := ingestor.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if _, err := ingestor.Remove(context.Background(), filepath.Base(path)); err != nil {
					logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := watchSvc.Start(); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Synthesizer,
		components.Retriever,
		components.Ingestor,
		components.Chunks,
		components.Chat,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Chunks.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "recurse into subdirectories when ingesting a directory")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: opsmind ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, logger := mustLoad(*configPath)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		results, err := components.Ingestor.IngestDirectory(ctx, path, *recursive)
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		total := 0
		for _, r := range results {
			fmt.Printf("%s: %d chunk(s)\n", r.Source, r.Chunks)
			total += r.Chunks
		}
		fmt.Printf("Ingested %d file(s), %d chunk(s) from %s\n", len(results), total, path)
	} else {
		res, err := components.Ingestor.IngestFile(ctx, path)
		if err != nil {
			fmt.Printf("Ingesting failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s: %d chunk(s), %d page(s)\n", res.Source, res.Chunks, res.Pages)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Chunks.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Printf("Warning: vector index save failed: %v\n", err)
		}
	}
}

// questionFromArgs joins positional args so multi-word questions work with or
// without shell quoting.
func questionFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the question to the front so
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runAsk() {
	askArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = answer directly without a running server)`)
	session := fs.String("session", "", "conversation session key; records the exchange")
	k := fs.Int("k", 0, "number of chunks to retrieve (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	question := questionFromArgs(fs.Args())
	if question == "" {
		fmt.Println("Usage: opsmind ask [flags] <question>")
		os.Exit(1)
	}

	var ans *models.Answer
	if *serverURL != "" {
		res, err := askViaHTTP(*serverURL, question, *session, *k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		ans = res
	} else {
		cfg, logger := mustLoad(*configPath)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		ans, err = components.Synthesizer.AnswerK(context.Background(), question, *k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ans)
	case "text":
		fmt.Println(ans.Text)
		if len(ans.Citations) > 0 {
			fmt.Println("\nSources:")
			for _, c := range ans.Citations {
				if c.Page > 0 {
					fmt.Printf("  %s (page %d, chunk %d)\n", c.Source, c.Page, c.ChunkIndex)
				} else {
					fmt.Printf("  %s (chunk %d)\n", c.Source, c.ChunkIndex)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, question, session string, k int) (*models.Answer, error) {
	payload := map[string]any{"question": question}
	if session != "" {
		payload["session"] = session
	}
	if k > 0 {
		payload["k"] = k
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var ans models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ans, nil
}

func runSearch() {
	searchArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	k := fs.Int("k", 0, "number of results (0 = configured default)")
	_ = fs.Parse(searchArgs)

	query := questionFromArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: opsmind search [flags] <query>")
		os.Exit(1)
	}

	u := *serverURL + "/api/v1/search?q=" + url.QueryEscape(query)
	if *k > 0 {
		u += fmt.Sprintf("&k=%d", *k)
	}
	resp, err := http.Get(u)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Search failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Results []struct {
			Source     string  `json:"source"`
			Page       int     `json:"page"`
			ChunkIndex int     `json:"chunk_index"`
			Score      float64 `json:"score"`
			Text       string  `json:"text"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	for i, r := range out.Results {
		fmt.Printf("%d. %s (page %d, chunk %d, score %.4f)\n", i+1, r.Source, r.Page, r.ChunkIndex, r.Score)
		fmt.Printf("   %s\n", utils.Truncate(strings.ReplaceAll(r.Text, "\n", " "), 160))
	}
	if len(out.Results) == 0 {
		fmt.Println("No results.")
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: opsmind delete [flags] <source>")
		os.Exit(1)
	}
	source := fs.Arg(0)

	req, err := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+url.PathEscape(source), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", source)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Documents       int64          `json:"documents"`
	Chunks          int64          `json:"chunks"`
	VectorIndexSize int            `json:"vector_index_size"`
	DiskUsageBytes  *int64         `json:"disk_usage_bytes,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = read storage directly)`)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := mustLoad(*configPath)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		chunkCount, err := components.Chunks.CountChunks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		sourceCount, err := components.Chunks.CountSources(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count sources failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Documents:       sourceCount,
			Chunks:          chunkCount,
			VectorIndexSize: components.Chunks.IndexSize(),
		}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.VectorIndexPath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:          %d\n", status.Documents)
		fmt.Printf("chunks:             %d\n", status.Chunks)
		fmt.Printf("vector_index_size:  %d\n", status.VectorIndexSize)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// mustLoad loads config and builds the logger, exiting on failure.
func mustLoad(configPath string) (*config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedding   *embedding.Service
	VectorIndex vector.Index
	Chunks      *store.ChunkStore
	Ingestor    *ingest.Ingestor
	Retriever   *retriever.Retriever
	Synthesizer *answer.Synthesizer
	Chat        *chatlog.Log
}

func (c *Components) Close() {
	if c.Embedding != nil {
		_ = c.Embedding.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newEmbedderOpener returns the lazy constructor for the configured embedding
// backend. The backend is opened on first use; model load can take seconds.
func newEmbedderOpener(cfg *config.Config, logger *zap.Logger) func() (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "onnx":
		return func() (embedding.Embedder, error) {
			return embedding.NewONNXEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens)
		}
	case "mock":
		return func() (embedding.Embedder, error) {
			logger.Warn("using mock embedder; answers will not be semantically grounded")
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
		}
	default:
		return func() (embedding.Embedder, error) {
			return embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Embedding.Timeout()), nil
		}
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	idx, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := idx.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped, rebuilding from storage",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	embedSvc := embedding.NewService(
		newEmbedderOpener(cfg, logger),
		cfg.Embedding.Dimensions,
		cfg.Embedding.CacheSize,
		logger,
	)

	chunks := store.New(st, idx, cfg.Embedding.Dimensions, logger)
	if err := chunks.Init(context.Background()); err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize chunk store: %w", err)
	}

	ch, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		_ = idx.Close()
		_ = st.Close()
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	ingestor := ingest.New(extract.NewExtractor(), ch, embedSvc, chunks, logger)
	ret := retriever.New(embedSvc, chunks, logger)
	generator := llm.NewOllamaGenerator(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout())
	synth := answer.New(ret, generator, cfg.Retrieval.TopK, cfg.Retrieval.PreviewLen, logger)

	return &Components{
		Storage:     st,
		Embedding:   embedSvc,
		VectorIndex: idx,
		Chunks:      chunks,
		Ingestor:    ingestor,
		Retriever:   ret,
		Synthesizer: synth,
		Chat:        chatlog.New(st),
	}, nil
}

func printUsage() {
	fmt.Println(`opsmind - local document question answering

Usage:
  opsmind server [flags]            Start the HTTP server
  opsmind ingest [flags] <path>     Ingest a document file or directory
  opsmind ask [flags] <question>    Ask a question over ingested documents
  opsmind search [flags] <query>    Show the chunks a question would retrieve
  opsmind delete [flags] <source>   Delete a document by source name
  opsmind status [flags]            Show store and index status
  opsmind version                   Show version
  opsmind help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/opsmind/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to answer directly.
  --session string   Conversation session key; records the exchange
  --k int            Number of chunks to retrieve (0 = configured default)
  --output string    Output format: text or json (default: text)

Examples:
  opsmind server
  opsmind ingest ./docs
  opsmind ask "What is the refund policy?"
  opsmind ask --session alice "And for digital goods?"
  opsmind search "refund policy"
  opsmind delete handbook.pdf
  opsmind status --output json`)
}
