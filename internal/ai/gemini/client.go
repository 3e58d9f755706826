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
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-pro"

	// Quota errors asking to wait longer than this are not worth retrying
	// inside a single completion call.
	maxQuotaDelay = 30 * time.Second

	// defaultCallTimeout bounds a single API call when no timeout is
	// configured.
	defaultCallTimeout = time.Minute
)

var sleep = time.Sleep

// contentCaller is the slice of the genai client used by the Generator,
// abstracted for test injection.
type contentCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client behind the Completer contract,
// retrying transient API failures with exponential backoff.
type Generator struct {
	caller     contentCaller
	model      string
	maxRetries int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
// maxRetries bounds the total number of attempts per completion; timeout
// bounds each individual API call, zero meaning the one minute default.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, timeout time.Duration, logger *zap.Logger) (*Generator, error) {
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

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries <= 0 {
		maxRetries = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		caller:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Complete sends the prompt to Gemini and returns the concatenated textual
// response. Transient failures (5xx, short quota delays, a call hitting the
// per-call timeout) are retried up to the configured attempt ceiling.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.caller == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	timeout := g.timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			sleep(time.Second << (attempt - 1))
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		// The timeout bounds one attempt, not the whole retry loop: a
		// hung call becomes DeadlineExceeded and takes the retry path.
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := g.caller.GenerateContent(attemptCtx, g.model, genai.Text(prompt), nil)
		cancel()
		if err != nil {
			if !retryable(err) {
				return "", fmt.Errorf("generate content: %w", err)
			}
			lastErr = err
			g.logger.Warn("transient gemini failure",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", g.maxRetries),
				zap.Error(err),
			)
			continue
		}

		output := collectText(resp)
		if output == "" {
			return "", errors.New("gemini api returned empty response")
		}
		return output, nil
	}

	return "", fmt.Errorf("generate content after %d attempts: %w", g.maxRetries, lastErr)
}

func collectText(resp *genai.GenerateContentResponse) string {
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

var retryAfterPattern = regexp.MustCompile(`retry after (\d+)`)

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.Code >= http.StatusInternalServerError {
		return true
	}

	if apiErr.Code == http.StatusTooManyRequests {
		return quotaDelay(apiErr.Message) <= maxQuotaDelay
	}

	return false
}

func quotaDelay(message string) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(strings.ToLower(message))
	if len(match) != 2 {
		return 0
	}
	seconds, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
