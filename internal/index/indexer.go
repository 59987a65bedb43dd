package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/candidate"
)

const defaultEmbedBatch = 32

// Replacer swaps the whole content of an index.
type Replacer interface {
	Replace(ctx context.Context, chunks []Chunk, vectors [][]float64) error
}

// Options configures an Indexer. Zero values select the defaults.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Timeout      time.Duration
}

// Indexer rebuilds the similarity index from the full record collection.
type Indexer struct {
	embedder embedding.Embedder
	store    Replacer
	opts     Options
	logger   *zap.Logger
}

func NewIndexer(embedder embedding.Embedder, store Replacer, opts Options, log *zap.Logger) *Indexer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEmbedBatch
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Indexer{embedder: embedder, store: store, opts: opts, logger: log}
}

// Build chunks and embeds every record and replaces the stored index with
// the result. It returns the number of chunks written.
func (ix *Indexer) Build(ctx context.Context, records []candidate.Record) (int, error) {
	chunks, err := Chunks(records, ix.opts.ChunkSize, ix.opts.ChunkOverlap)
	if err != nil {
		return 0, err
	}

	ix.logger.Info("building index",
		zap.Int("records", len(records)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", ix.opts.ChunkSize),
		zap.Int("chunk_overlap", ix.opts.ChunkOverlap),
	)

	vectors := make([][]float64, 0, len(chunks))
	for start := 0; start < len(chunks); start += ix.opts.BatchSize {
		end := min(start+ix.opts.BatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := ai.Call(ctx, "embed chunks", ix.opts.Timeout, func(ctx context.Context) ([][]float64, error) {
			return ix.embedder.EmbedStrings(ctx, texts)
		})
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(batch), len(texts))
		}

		vectors = append(vectors, batch...)
		ix.logger.Debug("embedded chunk batch", zap.Int("from", start), zap.Int("to", end))
	}

	if err := ix.store.Replace(ctx, chunks, vectors); err != nil {
		return 0, err
	}

	return len(chunks), nil
}
