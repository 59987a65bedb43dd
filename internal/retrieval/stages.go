package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/index"
	"github.com/spigell/resume-query/internal/utils"
)

const (
	expandStageName   = "expand"
	retrieveStageName = "retrieve"
	dedupeStageName   = "dedupe"
	compressStageName = "compress"
	mergeStageName    = "merge"

	// NoOutput is the compressor's answer for a chunk with nothing relevant.
	NoOutput = "NO_OUTPUT"
)

var (
	//go:embed expand_prompt.md
	expandPrompt string
	//go:embed compress_prompt.md
	compressPrompt string

	listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
)

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type expandStage struct {
	toggle
	generator ai.Generator
	variants  int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewExpand asks the model for alternative phrasings of the query. The
// original query always stays first; variants are deduplicated
// case-insensitively and capped at the requested count.
func NewExpand(generator ai.Generator, variants int, timeout time.Duration, log *zap.Logger) Stage {
	return &expandStage{generator: generator, variants: variants, timeout: timeout, logger: log}
}

func (s *expandStage) Name() string { return expandStageName }

func (s *expandStage) Apply(ctx context.Context, state *State) (Step, error) {
	if s.generator == nil {
		return Step{}, errors.New("generator is required for query expansion")
	}

	prompt := strings.ReplaceAll(expandPrompt, "{{COUNT}}", strconv.Itoa(s.variants))
	prompt = strings.ReplaceAll(prompt, "{{QUERY}}", state.Query)

	raw, err := ai.Call(ctx, "expand query", s.timeout, func(ctx context.Context) (string, error) {
		return s.generator.GenerateContent(ctx, prompt)
	})
	if err != nil {
		return Step{}, err
	}

	generated := parseVariants(raw)
	state.Variants = mergeVariants(state.Query, generated, s.variants)

	if s.logger != nil {
		s.logger.Debug("query variants", zap.Strings("variants", state.Variants))
	}

	initial := len(generated) + 1
	return Step{Initial: initial, Dropped: initial - len(state.Variants), Left: len(state.Variants)}, nil
}

func (s *expandStage) Status() Status {
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.reason,
		Details: map[string]string{"variants": strconv.Itoa(s.variants)},
	}
}

func parseVariants(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func mergeVariants(query string, generated []string, limit int) []string {
	caser := cases.Fold()
	seen := map[string]bool{caser.String(query): true}
	out := []string{query}
	for _, v := range generated {
		if len(out) > limit {
			break
		}
		key := caser.String(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

type retrieveStage struct {
	toggle
	embedder embedding.Embedder
	searcher Searcher
	topK     int
	timeout  time.Duration
}

// NewRetrieve embeds every query variant and collects the top k chunks for each.
func NewRetrieve(embedder embedding.Embedder, searcher Searcher, topK int, timeout time.Duration) Stage {
	return &retrieveStage{embedder: embedder, searcher: searcher, topK: topK, timeout: timeout}
}

func (s *retrieveStage) Name() string { return retrieveStageName }

func (s *retrieveStage) Apply(ctx context.Context, state *State) (Step, error) {
	if s.embedder == nil || s.searcher == nil {
		return Step{}, errors.New("embedder and searcher are required for retrieval")
	}

	vectors, err := ai.Call(ctx, "embed query", s.timeout, func(ctx context.Context) ([][]float64, error) {
		return s.embedder.EmbedStrings(ctx, state.Variants)
	})
	if err != nil {
		return Step{}, err
	}
	if len(vectors) != len(state.Variants) {
		return Step{}, fmt.Errorf("embedder returned %d vectors for %d queries", len(vectors), len(state.Variants))
	}

	hits := make([]index.Hit, 0, len(vectors)*s.topK)
	for _, vec := range vectors {
		found, err := s.searcher.Search(ctx, vec, s.topK)
		if err != nil {
			return Step{}, err
		}
		hits = append(hits, found...)
	}
	state.Hits = hits

	requested := len(vectors) * s.topK
	return Step{Initial: requested, Dropped: requested - len(hits), Left: len(hits)}, nil
}

func (s *retrieveStage) Status() Status {
	return Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.reason,
		Details: map[string]string{"top_k": strconv.Itoa(s.topK)},
	}
}

type dedupeStage struct {
	toggle
}

// NewDedupe drops repeated chunks, keeping the first occurrence.
func NewDedupe() Stage {
	return &dedupeStage{}
}

func (s *dedupeStage) Name() string { return dedupeStageName }

func (s *dedupeStage) Apply(_ context.Context, state *State) (Step, error) {
	initial := len(state.Hits)
	seen := make(map[string]bool, initial)
	kept := make([]index.Hit, 0, initial)
	for _, h := range state.Hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		kept = append(kept, h)
	}
	state.Hits = kept

	return Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type compressStage struct {
	toggle
	generator ai.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCompress asks the model to cut every chunk down to the parts relevant
// to the query. Chunks answered with NO_OUTPUT, or with nothing, are dropped.
func NewCompress(generator ai.Generator, timeout time.Duration, log *zap.Logger) Stage {
	return &compressStage{generator: generator, timeout: timeout, logger: log}
}

func (s *compressStage) Name() string { return compressStageName }

func (s *compressStage) Apply(ctx context.Context, state *State) (Step, error) {
	if s.generator == nil {
		return Step{}, errors.New("generator is required for compression")
	}

	initial := len(state.Hits)
	kept := make([]index.Hit, 0, initial)
	for _, h := range state.Hits {
		prompt := strings.ReplaceAll(compressPrompt, "{{QUERY}}", state.Query)
		prompt = strings.ReplaceAll(prompt, "{{CONTEXT}}", h.Text)

		out, err := ai.Call(ctx, "compress chunk", s.timeout, func(ctx context.Context) (string, error) {
			return s.generator.GenerateContent(ctx, prompt)
		})
		if err != nil {
			return Step{}, fmt.Errorf("chunk %s: %w", h.ID, err)
		}

		out = strings.TrimSpace(out)
		if out == "" || out == NoOutput {
			if s.logger != nil {
				s.logger.Debug("chunk dropped by compression",
					zap.String("chunk_id", h.ID),
					zap.String("unique_id", h.UniqueID),
				)
			}
			continue
		}

		if s.logger != nil {
			s.logger.Debug("chunk compressed",
				zap.String("chunk_id", h.ID),
				zap.String("extract", utils.TruncateForLog(out, 120)),
			)
		}

		h.Text = out
		kept = append(kept, h)
	}
	state.Hits = kept

	return Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type mergeStage struct {
	toggle
}

// NewMerge groups chunks by resume in first-seen order.
func NewMerge() Stage {
	return &mergeStage{}
}

func (s *mergeStage) Name() string { return mergeStageName }

func (s *mergeStage) Apply(_ context.Context, state *State) (Step, error) {
	state.Evidence = Merge(state.Hits)
	return Step{Initial: len(state.Hits), Dropped: 0, Left: state.Evidence.Len()}, nil
}

// Merge groups hits by unique id. Resumes appear in the order their first
// chunk appears; chunks keep their relative order inside a resume.
func Merge(hits []index.Hit) Evidence {
	var ev Evidence
	pos := make(map[string]int)
	for _, h := range hits {
		id := h.UniqueID
		if id == "" {
			id = unknownUniqueID
		}

		i, ok := pos[id]
		if !ok {
			i = len(ev.Candidates)
			pos[id] = i
			ev.Candidates = append(ev.Candidates, Candidate{
				UniqueID:    id,
				Name:        h.Name,
				Designation: h.Designation,
			})
		}
		ev.Candidates[i].Parts = append(ev.Candidates[i].Parts, h.Text)
	}
	return ev
}
