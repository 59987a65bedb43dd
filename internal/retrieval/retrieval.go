// Package retrieval runs the query side of the search: the recruiter query is
// expanded into variants, chunks are retrieved per variant, deduplicated,
// compressed to their relevant spans and merged per resume.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/index"
)

const (
	DefaultVariants = 3
	DefaultTopK     = 5
)

// Searcher finds the k chunks nearest to a vector.
type Searcher interface {
	Search(ctx context.Context, vec []float64, k int) ([]index.Hit, error)
}

// Stage is one step of the retrieval pipeline.
type Stage interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, s *State) (Step, error)
}

// State is threaded through the stages.
type State struct {
	Query    string
	Variants []string
	Hits     []index.Hit
	Evidence Evidence
}

// Step describes the result of executing a stage.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Config tunes the default stage list.
type Config struct {
	// Variants is the number of alternative queries requested from the
	// model. Zero disables expansion.
	Variants int
	// TopK is the number of chunks retrieved per query variant.
	TopK int
	// Compress enables per-chunk contextual compression.
	Compress bool
	// Timeout bounds every model and embedding call.
	Timeout time.Duration
}

// Deps aggregates the capabilities used by the stages.
type Deps struct {
	Generator ai.Generator
	Embedder  embedding.Embedder
	Searcher  Searcher
	Logger    *zap.Logger
}

// Engine runs the stage list for every query.
type Engine struct {
	stages []Stage
	logger *zap.Logger
}

// NewEngine wires the default stages: expand, retrieve, dedupe, compress, merge.
func NewEngine(cfg Config, deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	stages := []Stage{
		NewExpand(deps.Generator, cfg.Variants, cfg.Timeout, log),
		NewRetrieve(deps.Embedder, deps.Searcher, topK, cfg.Timeout),
		NewDedupe(),
		NewCompress(deps.Generator, cfg.Timeout, log),
		NewMerge(),
	}

	if cfg.Variants <= 0 {
		DisableByName(stages, expandStageName, "no query variants requested")
	}
	if !cfg.Compress {
		DisableByName(stages, compressStageName, "compression disabled in configuration")
	}

	return &Engine{stages: stages, logger: log}
}

// Retrieve returns the merged evidence for query.
func (e *Engine) Retrieve(ctx context.Context, query string) (Evidence, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Evidence{}, errors.New("query must not be empty")
	}

	state := &State{Query: query, Variants: []string{query}}
	if err := Run(ctx, e.logger, e.stages, state); err != nil {
		return Evidence{}, err
	}

	return state.Evidence, nil
}

// Stages returns the configured stage list.
func (e *Engine) Stages() []Stage {
	return e.stages
}

// DisableByName marks a stage with the provided name as disabled while keeping it in the list.
func DisableByName(stages []Stage, name, reason string) {
	for _, stage := range stages {
		if stage.Name() == name {
			stage.Disable(reason)
		}
	}
}

// Run executes the enabled stages in order.
func Run(ctx context.Context, log *zap.Logger, stages []Stage, state *State) error {
	for _, stage := range stages {
		if !stage.IsEnabled() {
			log.Debug("retrieval stage disabled", zap.String("name", stage.Name()))
			continue
		}

		info, err := stage.Apply(ctx, state)
		if err != nil {
			return fmt.Errorf("%s: %w", stage.Name(), err)
		}

		log.Info("retrieval stage",
			zap.String("name", stage.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}

	return nil
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    stage.Name(),
			Enabled: stage.IsEnabled(),
		})
	}
	return statuses
}
