// Package answer asks the model for the final structured answer to a
// recruiter query and parses it.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Candidate is one matching resume in the answer.
type Candidate struct {
	Name              string   `json:"name"`
	Designation       string   `json:"designation"`
	UniqueID          string   `json:"unique_id"`
	Skills            []string `json:"skills"`
	ExperienceSummary string   `json:"experience_summary"`
}

// Answer is the parsed model output. Raw keeps the JSON exactly as the model
// produced it (minus markdown fences), so extra fields survive printing.
type Answer struct {
	Candidates []Candidate     `json:"candidates"`
	Raw        json.RawMessage `json:"-"`
}

// Indent returns Raw re-indented with two spaces.
func (a *Answer) Indent() (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, a.Raw, "", "  "); err != nil {
		return "", fmt.Errorf("indent answer: %w", err)
	}
	return buf.String(), nil
}

// ParseError reports model output that is not a JSON object. It is not retried.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse answer: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Generator produces structured answers from merged evidence.
type Generator struct {
	generator ai.Generator
	timeout   time.Duration
	logger    *zap.Logger
	maxLogLen int
}

func NewGenerator(generator ai.Generator, timeout time.Duration, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		generator: generator,
		timeout:   timeout,
		logger:    log,
		maxLogLen: defaultMaxLogLength,
	}
}

// Answer sends the query and evidence to the model and parses the reply.
// The model is called even when evidence is empty. Unparseable output is
// returned as a *ParseError carrying the raw text.
func (g *Generator) Answer(ctx context.Context, query, evidence string) (*Answer, error) {
	if g == nil || g.generator == nil {
		return nil, errors.New("answer generator is not initialized")
	}

	prompt := BuildPrompt(query, evidence)
	g.logger.Debug("answer request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	raw, err := ai.Call(ctx, "generate answer", g.timeout, func(ctx context.Context) (string, error) {
		return g.generator.GenerateContent(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	g.logger.Debug("answer response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, g.maxLogLen)),
	)

	return Parse(raw)
}

// BuildPrompt fills the answer prompt.
func BuildPrompt(query, evidence string) string {
	prompt := strings.ReplaceAll(promptTemplate, "{{QUERY}}", strings.TrimSpace(query))
	return strings.ReplaceAll(prompt, "{{EVIDENCE}}", evidence)
}

// Parse decodes model output into an Answer. Markdown fences are stripped.
// Output that is a JSON object is accepted even when its fields do not match
// the expected types; Candidates then holds whatever could be decoded.
func Parse(raw string) (*Answer, error) {
	cleaned := ai.StripFences(raw)

	var object map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &object); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if object == nil {
		return nil, &ParseError{Raw: raw, Err: errors.New("output is not a JSON object")}
	}

	ans := &Answer{Raw: json.RawMessage(cleaned)}
	if list, ok := object["candidates"]; ok {
		var candidates []Candidate
		if err := json.Unmarshal(list, &candidates); err == nil {
			ans.Candidates = candidates
		}
	}

	return ans, nil
}
