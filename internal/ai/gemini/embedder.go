package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/logger"
)

const (
	defaultEmbeddingModel = "text-embedding-004"
	// Gemini accepts at most 100 contents per embed request.
	maxEmbedBatch = 100
)

type embedModel interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder turns text into vectors with a Gemini embedding model.
type Embedder struct {
	models    embedModel
	model     string
	batchSize int
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *zap.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

// NewEmbedder builds an Embedder on top of an existing client.
func NewEmbedder(client *genai.Client, opts Options, log *zap.Logger) (*Embedder, error) {
	if client == nil || client.Models == nil {
		return nil, errors.New("gemini client is required")
	}

	return newEmbedder(client.Models, opts, log), nil
}

func newEmbedder(models embedModel, opts Options, log *zap.Logger) *Embedder {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultEmbeddingModel
	}

	return &Embedder{
		models:    models,
		model:     model,
		batchSize: maxEmbedBatch,
		timeout:   opts.Timeout,
		limiter:   newLimiter(opts.RequestsPerMinute),
		logger:    logger.WithCommonFields(log, Provider, model),
	}
}

// EmbedStrings returns one vector per input text, in input order.
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	model := e.model
	if o := embedding.GetCommonOptions(&embedding.Options{}, opts...); o.Model != nil && strings.TrimSpace(*o.Model) != "" {
		model = strings.TrimSpace(*o.Model)
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		batch, err := e.embedBatch(ctx, model, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	e.logger.Debug("embedded texts", zap.Int("count", len(texts)))

	return vectors, nil
}

func (e *Embedder) embedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := ai.Call(ctx, "gemini embed content", e.timeout, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return e.models.EmbedContent(ctx, model, contents, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", got, len(texts))
	}

	vectors := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding at position %d", i)
		}
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}

	return vectors, nil
}

// Model returns the configured embedding model name.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}
