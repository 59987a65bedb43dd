package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/resume-query/internal/ai"
	"github.com/spigell/resume-query/internal/logger"
	"github.com/spigell/resume-query/internal/utils"
)

const (
	// Provider is the value logged under the ai_provider field.
	Provider = "gemini"

	defaultModel      = "gemini-2.5-pro"
	defaultMaxRetries = 3

	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
	// Quota errors asking for a longer pause than this are returned to the caller.
	maxQuotaDelay = 30 * time.Second

	logPreviewLimit = 200
)

var (
	// wait is replaced in tests.
	wait = utils.WaitFor

	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(s|sec|secs|second|seconds)\b`)
)

type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures a Generator or an Embedder.
type Options struct {
	Model             string
	MaxRetries        int
	Timeout           time.Duration
	RequestsPerMinute int
}

// NewClient creates a genai client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// Generator sends single-turn prompts to a Gemini model.
type Generator struct {
	models     contentModel
	model      string
	maxRetries int
	timeout    time.Duration
	limiter    *rate.Limiter
	config     *genai.GenerateContentConfig
	logger     *zap.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator builds a Generator on top of an existing client.
func NewGenerator(client *genai.Client, opts Options, log *zap.Logger) (*Generator, error) {
	if client == nil || client.Models == nil {
		return nil, errors.New("gemini client is required")
	}

	return newGenerator(client.Models, opts, log), nil
}

func newGenerator(models contentModel, opts Options, log *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Generator{
		models:     models,
		model:      model,
		maxRetries: retries,
		timeout:    opts.Timeout,
		limiter:    newLimiter(opts.RequestsPerMinute),
		logger:     logger.WithCommonFields(log, Provider, model),
	}
}

// WithJSONResponse returns a copy of g that asks the model for an
// application/json response body. The rate limiter is shared.
func (g *Generator) WithJSONResponse() *Generator {
	clone := *g
	clone.config = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	return &clone
}

// GenerateContent sends the prompt to Gemini and returns the joined text parts
// of the response. Transient API failures are retried with backoff.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	g.logger.Debug("sending prompt", zap.String("prompt", utils.TruncateForLog(prompt, logPreviewLimit)))

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := utils.Backoff(attempt-1, retryBaseDelay, retryMaxDelay)
			if d, ok := retryDelay(lastErr); ok && d > delay {
				delay = d
			}
			g.logger.Warn("retrying gemini request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := wait(ctx, delay); err != nil {
				return "", err
			}
		}

		output, err := g.generateOnce(ctx, prompt)
		if err == nil {
			g.logger.Debug("received response", zap.String("response", utils.TruncateForLog(output, logPreviewLimit)))
			return output, nil
		}

		lastErr = err
		if !retryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("gemini request failed after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *Generator) generateOnce(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := ai.Call(ctx, "gemini generate content", g.timeout, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	output := responseText(resp)
	if output == "" {
		g.logger.Warn("gemini returned no text", zap.String("finish_reason", finishReason(resp)))
	}

	return output, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// responseText joins the non-empty text parts of every candidate. A reply
// without text yields "" and callers decide what that means.
func responseText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

func finishReason(resp *genai.GenerateContentResponse) string {
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.FinishReason != "" {
			return string(candidate.FinishReason)
		}
	}
	return ""
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// retryable reports whether err is a transient API failure. Timeouts and
// quota errors with a long requested delay are not retried.
func retryable(err error) bool {
	if err == nil || ai.IsTimeout(err) {
		return false
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if d, ok := retryDelay(err); ok && d > maxQuotaDelay {
			return false
		}
		return true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryDelay extracts a server-requested delay such as "retry after 60 seconds".
func retryDelay(err error) (time.Duration, bool) {
	var apiErr genai.APIError
	if err == nil || !errors.As(err, &apiErr) {
		return 0, false
	}

	match := retryAfterPattern.FindStringSubmatch(apiErr.Message)
	if match == nil {
		return 0, false
	}

	seconds, parseErr := strconv.ParseFloat(match[1], 64)
	if parseErr != nil {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}
