package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/ai/gemini"
	"github.com/spigell/resume-query/internal/candidate"
	"github.com/spigell/resume-query/internal/document"
	"github.com/spigell/resume-query/internal/extraction"
	"github.com/spigell/resume-query/internal/index"
	"github.com/spigell/resume-query/internal/ingest"
	"github.com/spigell/resume-query/internal/logger"
	"github.com/spigell/resume-query/internal/secrets"
)

const apiKeyEnv = "GEMINI_API_KEY"

// The Gemini adapters bound every attempt with ai.timeout, so their callers
// add no outer bound that would also cover retries and rate-limit waits.
const callerTimeout time.Duration = 0

// services holds the capabilities shared by the commands.
type services struct {
	config   *Config
	logger   *zap.Logger
	text     *gemini.Generator
	json     *gemini.Generator
	embedder *gemini.Embedder
}

// bootstrap builds the logger and config every command starts from. The
// returned context is cancelled on interrupt.
func bootstrap() (context.Context, context.CancelFunc, *Config, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.AI == nil || config.AI.Gemini == nil {
		logger.Fatal("ai.gemini configuration is required")
	}

	logger.Debug("starting", zap.String("app", app), zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx, stop, config, logger
}

func newServices(ctx context.Context, config *Config, log *zap.Logger) (*services, error) {
	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	cfg := config.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   apiKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s, GEMINI_API_KEY_FILE or ai.gemini.api-key-file)", err, apiKeyEnv)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	text, err := gemini.NewGenerator(client, gemini.Options{
		Model:             cfg.Model,
		MaxRetries:        cfg.MaxRetries,
		Timeout:           config.AI.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	embedder, err := gemini.NewEmbedder(client, gemini.Options{
		Model:             cfg.EmbeddingModel,
		MaxRetries:        cfg.MaxRetries,
		Timeout:           config.AI.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	log.Info("ai provider configured",
		zap.String("provider", gemini.Provider),
		zap.String("model", text.Model()),
		zap.String("embedding_model", embedder.Model()),
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	return &services{
		config:   config,
		logger:   log,
		text:     text,
		json:     text.WithJSONResponse(),
		embedder: embedder,
	}, nil
}

// ingest runs batch ingestion over the configured input directory.
func (s *services) ingest(ctx context.Context) (*ingest.Result, error) {
	extractor, err := document.NewPDFExtractor(ctx, s.logger)
	if err != nil {
		return nil, err
	}

	workers := 1
	if s.config.Ingest != nil {
		workers = s.config.Ingest.Workers
	}

	adapter := extraction.NewAdapter(s.json, callerTimeout, s.logger)
	pipeline := ingest.New(extractor, adapter, ingest.Options{Workers: workers}, s.logger)

	return pipeline.Run(ctx, s.config.InputDir, s.config.Records)
}

// rebuildIndex replaces the persisted index with one built from records and
// returns the open store.
func (s *services) rebuildIndex(ctx context.Context, records []candidate.Record) (*index.SQLiteStore, error) {
	store, err := index.Create(ctx, s.config.IndexPath, s.logger)
	if err != nil {
		return nil, err
	}

	opts := index.Options{Timeout: callerTimeout}
	if s.config.Index != nil {
		opts.ChunkSize = s.config.Index.ChunkSize
		opts.ChunkOverlap = s.config.Index.ChunkOverlap
		opts.BatchSize = s.config.Index.BatchSize
	}

	n, err := index.NewIndexer(s.embedder, store, opts, s.logger).Build(ctx, records)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build index: %w", err)
	}

	s.logger.Info("index built", zap.String("path", store.Path()), zap.Int("chunks", n))
	return store, nil
}

// loadRecords reads the records file, running ingestion when it is missing
// or empty and ingestOnDemand is set.
func (s *services) loadRecords(ctx context.Context, ingestOnDemand bool) ([]candidate.Record, error) {
	records, err := candidate.Load(s.config.Records)
	if err == nil && len(records) > 0 {
		return records, nil
	}

	missing := err == nil || errors.Is(err, os.ErrNotExist) || errors.Is(err, candidate.ErrEmptyCollection)
	if !ingestOnDemand || !missing {
		return records, err
	}

	s.logger.Info("candidate records not found; ingesting resumes",
		zap.String("records", s.config.Records),
		zap.String("input_dir", s.config.InputDir),
	)

	result, err := s.ingest(ctx)
	if err != nil {
		return nil, err
	}

	return result.Records, nil
}
