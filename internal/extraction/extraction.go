// Package extraction turns unstructured resume text into the raw field map
// described by the embedded extraction prompt.
package extraction

import (
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
	"github.com/spigell/resume-query/internal/logger"
	"github.com/spigell/resume-query/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	resumePlaceholder   = "{{RESUME_TEXT}}"
	defaultMaxLogLength = 200
)

// ParseError reports model output for a document that is not a JSON object.
type ParseError struct {
	Source string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse extraction output for %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Adapter wraps the single model call that extracts resume fields.
type Adapter struct {
	generator ai.Generator
	timeout   time.Duration
	logger    *zap.Logger
	maxLogLen int
}

// NewAdapter returns an Adapter; a non-positive timeout leaves calls unbounded.
func NewAdapter(generator ai.Generator, timeout time.Duration, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}

	return &Adapter{
		generator: generator,
		timeout:   timeout,
		logger:    log,
		maxLogLen: defaultMaxLogLength,
	}
}

// Extract asks the model for the fields of the resume text read from source.
// Output that does not decode to a JSON object yields a *ParseError.
func (a *Adapter) Extract(ctx context.Context, source, text string) (map[string]any, error) {
	if a == nil || a.generator == nil {
		return nil, errors.New("extraction adapter is not initialized")
	}

	prompt := BuildPrompt(text)
	log := logger.WithFields(a.logger, logger.DocumentFields(source, "")...)

	log.Debug("extraction request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := ai.Call(ctx, "extract resume fields", a.timeout, func(ctx context.Context) (string, error) {
		return a.generator.GenerateContent(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}

	log.Debug("extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	fields, err := parseFields(raw)
	if err != nil {
		return nil, &ParseError{Source: source, Raw: raw, Err: err}
	}

	return fields, nil
}

// BuildPrompt places the resume text into the extraction prompt.
func BuildPrompt(text string) string {
	return strings.ReplaceAll(promptTemplate, resumePlaceholder, strings.TrimSpace(text))
}

func parseFields(raw string) (map[string]any, error) {
	cleaned := ai.StripFences(raw)
	if cleaned == "" {
		return nil, errors.New("empty output")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("output is not a JSON object")
	}

	return fields, nil
}
