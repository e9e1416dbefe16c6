package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantheonai/enginuity/internal/answer"
	"github.com/pantheonai/enginuity/internal/config"
	"github.com/pantheonai/enginuity/internal/embedding"
	"github.com/pantheonai/enginuity/internal/feedback"
	"github.com/pantheonai/enginuity/internal/generation"
	"github.com/pantheonai/enginuity/internal/ingest"
	"github.com/pantheonai/enginuity/internal/retrieval"
	"github.com/pantheonai/enginuity/internal/splitter"
	"github.com/pantheonai/enginuity/internal/storage"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "enginuity",
	Short:         "Document knowledge base with semantic search and grounded answering",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after startup checks pass.
type app struct {
	cfg         config.Config
	store       *storage.Store
	chunks      *retrieval.SQLiteStore
	embedder    *embedding.Client
	retriever   *retrieval.Retriever
	pipeline    *ingest.Pipeline
	synthesizer *answer.Synthesizer
	recorder    *feedback.Recorder
}

// newApp loads configuration, opens storage and verifies the embedding
// dimension end to end. Any failure here is fatal: a dimension disagreement
// must surface at startup, not on the first ingest.
func newApp(ctx context.Context, probeEmbedder bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogging(cfg.Log.Level)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	if err := store.EnsureDimension(cfg.Embedding.Dim); err != nil {
		store.Close()
		return nil, fmt.Errorf("store was created with a different embedding dimension: %w", err)
	}

	embedder := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	if probeEmbedder {
		if err := embedder.CheckDimension(ctx, cfg.Embedding.Dim); err != nil {
			store.Close()
			return nil, fmt.Errorf("embedding model check failed: %w", err)
		}
	}

	chunks := retrieval.NewSQLiteStore(store.DB(), cfg.Embedding.Dim)
	split, err := splitter.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("chunking config: %w", err)
	}

	generator := generation.NewClient(cfg.Generation.BaseURL, cfg.Generation.APIKey)

	pipe := ingest.New(store, chunks, embedder, split, slog.Default())
	pipe.MinTokens = cfg.Chunking.MinTokens

	a := &app{
		cfg:         cfg,
		store:       store,
		chunks:      chunks,
		embedder:    embedder,
		retriever:   retrieval.NewRetriever(embedder, chunks),
		pipeline:    pipe,
		synthesizer: answer.NewSynthesizer(generator, cfg.Tiers(), slog.Default()),
		recorder:    feedback.NewRecorder(store, slog.Default()),
	}
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func initLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
