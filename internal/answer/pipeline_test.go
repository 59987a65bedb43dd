package answer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/candidate"
	"github.com/spigell/resume-query/internal/index"
	"github.com/spigell/resume-query/internal/retrieval"
)

type termEmbedder struct {
	vocab []string
}

func (e termEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float64, len(e.vocab)+1)
		for i, term := range e.vocab {
			vec[i] = float64(strings.Count(lower, term))
		}
		vec[len(e.vocab)] = 0.01
		out = append(out, vec)
	}
	return out, nil
}

// relevanceCompressor keeps a chunk only when it mentions the question.
func relevanceCompressor() ai.GeneratorFunc {
	return func(_ context.Context, prompt string) (string, error) {
		question := between(prompt, "> Question: ", "\n")
		chunk := between(prompt, ">>>\n", "\n>>>")
		if strings.Contains(strings.ToLower(chunk), strings.ToLower(question)) {
			return chunk, nil
		}
		return retrieval.NoOutput, nil
	}
}

func between(s, start, end string) string {
	_, rest, _ := strings.Cut(s, start)
	out, _, _ := strings.Cut(rest, end)
	return out
}

func TestQueryPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	records := []candidate.Record{
		candidate.Normalize(candidate.Fields{
			Name:        "A",
			Designation: "Engineer",
			Skills:      []string{"Python (Django)"},
			WorkExperience: []candidate.WorkExperience{{
				CompanyName:      "Acme",
				Position:         "Engineer",
				Responsibilities: []string{"Built APIs with Django."},
			}},
		}, "r1", now),
		candidate.Normalize(candidate.Fields{
			Name:        "B",
			Designation: "Designer",
			Skills:      []string{"Figma", "Sketch"},
		}, "r2", now),
	}

	store, err := index.Create(ctx, filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	embedder := termEmbedder{vocab: []string{"django", "figma"}}
	_, err = index.NewIndexer(embedder, store, index.Options{}, nil).Build(ctx, records)
	require.NoError(t, err)

	engine := retrieval.NewEngine(retrieval.Config{TopK: 5, Compress: true}, retrieval.Deps{
		Generator: relevanceCompressor(),
		Embedder:  embedder,
		Searcher:  store,
	})

	evidence, err := engine.Retrieve(ctx, "Django")
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, evidence.UniqueIDs())
	text := evidence.Text()
	assert.Contains(t, text, "Resume ID: r1")
	assert.NotContains(t, text, "Resume ID: r2")

	var prompt string
	gen := ai.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return sampleAnswer, nil
	})

	ans, err := NewGenerator(gen, time.Second, nil).Answer(ctx, "Django", text)
	require.NoError(t, err)

	assert.Contains(t, prompt, text)
	assert.JSONEq(t, sampleAnswer, string(ans.Raw))
	assert.Equal(t, []Candidate{{
		Name:              "A",
		Designation:       "Engineer",
		UniqueID:          "r1",
		Skills:            []string{"Django"},
		ExperienceSummary: "Built APIs with Django.",
	}}, ans.Candidates)
}
