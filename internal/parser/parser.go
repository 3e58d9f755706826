// Package parser converts free-form resume and job description text into
// validated structured records through a language-model backend, with a
// corrective retry loop and a deterministic heuristic fallback.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/ai"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/model"
	"github.com/talentsift/talentsift/internal/schema"
)

//go:embed resume_prompt.md
var resumePrompt string

//go:embed job_prompt.md
var jobPrompt string

const (
	defaultMaxRetries   = 2
	responsePreviewSize = 200
)

// Config tunes the parser's retry behaviour.
type Config struct {
	// MaxRetries is the number of corrective re-prompts after the first
	// attempt. The default of 2 yields 3 attempts total.
	MaxRetries int `mapstructure:"max-retries"`
}

// ParseFailure is the terminal error for a single document: the model output
// never validated and the heuristic fallback could not populate the
// identity-bearing fields. It is fatal for the document, not for a batch.
type ParseFailure struct {
	Kind       model.Kind
	Attempts   int
	Violations []schema.FieldViolation
	Err        error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
	}
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fmt.Sprintf("parse %s: unrecoverable after %d attempts, invalid fields: %s",
		e.Kind, e.Attempts, strings.Join(fields, ", "))
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// Parser drives the extract-validate-retry loop for one document at a time.
// It is safe for concurrent use across independent documents.
type Parser struct {
	completer  ai.Completer
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// New creates a Parser backed by the given language-model completer.
func New(completer ai.Completer, cfg Config, log *zap.Logger) *Parser {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{
		completer:  completer,
		maxRetries: maxRetries,
		logger:     log,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// ParseDocument dispatches to the kind-specific parser. The returned value
// is *model.Candidate or *model.JobDescription.
func (p *Parser) ParseDocument(ctx context.Context, text string, kind model.Kind) (any, error) {
	switch kind {
	case model.KindCandidate:
		return p.ParseCandidate(ctx, text)
	case model.KindJobDescription:
		return p.ParseJobDescription(ctx, text)
	default:
		return nil, fmt.Errorf("unknown document kind: %q", kind)
	}
}

// ParseCandidate parses resume text into a Candidate. After the retry
// ceiling it falls back to heuristic extraction of the identity-bearing
// fields and marks the record degraded; a record that still lacks identity
// fields is a ParseFailure.
func (p *Parser) ParseCandidate(ctx context.Context, text string) (*model.Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ParseFailure{Kind: model.KindCandidate, Err: errors.New("empty document")}
	}

	prompt := buildPrompt(resumePrompt, text)
	var lastViolations []schema.FieldViolation
	attempts := 0

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		payload, retryViolations, err := p.completeAndDecode(ctx, model.KindCandidate, prompt, attempts)
		if err != nil {
			return nil, err
		}
		if retryViolations != nil {
			lastViolations = retryViolations
			prompt = correctivePrompt(resumePrompt, text, retryViolations)
			continue
		}

		candidate, err := schema.DecodeCandidate(payload)
		if err != nil {
			var failure *schema.ValidationFailure
			if !errors.As(err, &failure) {
				return nil, err
			}
			lastViolations = failure.Violations
			prompt = correctivePrompt(resumePrompt, text, failure.Violations)
			p.logger.Warn("model output failed validation",
				zap.String("kind", string(model.KindCandidate)),
				zap.Int("attempt", attempts),
				zap.Strings("fields", failure.Fields()),
			)
			continue
		}

		candidate.RawAttributes = payload
		p.finalizeCandidate(candidate, false)
		return candidate, nil
	}

	p.logger.Warn("retry ceiling reached, falling back to heuristic extraction",
		zap.String("kind", string(model.KindCandidate)),
		zap.Int("attempts", attempts),
	)

	candidate := fallbackCandidate(text)
	if candidate == nil {
		return nil, &ParseFailure{Kind: model.KindCandidate, Attempts: attempts, Violations: lastViolations}
	}

	p.finalizeCandidate(candidate, true)
	return candidate, nil
}

// ParseJobDescription parses posting text into a JobDescription, following
// the same retry and fallback discipline as ParseCandidate.
func (p *Parser) ParseJobDescription(ctx context.Context, text string) (*model.JobDescription, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ParseFailure{Kind: model.KindJobDescription, Err: errors.New("empty document")}
	}

	prompt := buildPrompt(jobPrompt, text)
	var lastViolations []schema.FieldViolation
	attempts := 0

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		payload, retryViolations, err := p.completeAndDecode(ctx, model.KindJobDescription, prompt, attempts)
		if err != nil {
			return nil, err
		}
		if retryViolations != nil {
			lastViolations = retryViolations
			prompt = correctivePrompt(jobPrompt, text, retryViolations)
			continue
		}

		job, err := schema.DecodeJobDescription(payload)
		if err != nil {
			var failure *schema.ValidationFailure
			if !errors.As(err, &failure) {
				return nil, err
			}
			lastViolations = failure.Violations
			prompt = correctivePrompt(jobPrompt, text, failure.Violations)
			p.logger.Warn("model output failed validation",
				zap.String("kind", string(model.KindJobDescription)),
				zap.Int("attempt", attempts),
				zap.Strings("fields", failure.Fields()),
			)
			continue
		}

		job.RawAttributes = payload
		p.finalizeJob(job, false)
		return job, nil
	}

	p.logger.Warn("retry ceiling reached, falling back to heuristic extraction",
		zap.String("kind", string(model.KindJobDescription)),
		zap.Int("attempts", attempts),
	)

	job := fallbackJob(text)
	if job == nil {
		return nil, &ParseFailure{Kind: model.KindJobDescription, Attempts: attempts, Violations: lastViolations}
	}

	p.finalizeJob(job, true)
	return job, nil
}

// completeAndDecode runs one model round trip. A nil violations slice means
// payload is usable; a non-nil slice means the attempt failed recoverably.
func (p *Parser) completeAndDecode(ctx context.Context, kind model.Kind, prompt string, attempt int) (map[string]any, []schema.FieldViolation, error) {
	raw, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		p.logger.Warn("model completion failed",
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, []schema.FieldViolation{{Field: "response", Reason: err.Error()}}, nil
	}

	p.logger.Debug("model response",
		zap.String("kind", string(kind)),
		zap.Int("attempt", attempt),
		zap.String("preview", logger.TruncateForLog(raw, responsePreviewSize)),
	)

	var payload map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		p.logger.Warn("model response is not valid JSON",
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, []schema.FieldViolation{{Field: "response", Reason: "not a valid JSON object"}}, nil
	}

	return payload, nil, nil
}

func (p *Parser) finalizeCandidate(c *model.Candidate, degraded bool) {
	if c.ID == "" {
		c.ID = p.newID()
	}
	c.CreatedAt = p.now().UTC()
	c.Degraded = degraded

	c.Skills = NormalizeSkills(c.Skills)
	c.Certifications = NormalizeList(c.Certifications)
	c.Languages = NormalizeList(c.Languages)

	for i := range c.Experience {
		c.Experience[i].StartDate = model.CanonicalDate(c.Experience[i].StartDate)
		c.Experience[i].EndDate = model.CanonicalDate(c.Experience[i].EndDate)
	}
	for i := range c.Education {
		c.Education[i].GraduationDate = model.CanonicalDate(c.Education[i].GraduationDate)
	}
}

func (p *Parser) finalizeJob(j *model.JobDescription, degraded bool) {
	if j.ID == "" {
		j.ID = p.newID()
	}
	j.CreatedAt = p.now().UTC()
	j.Degraded = degraded

	j.Requirements.RequiredSkills = NormalizeSkills(j.Requirements.RequiredSkills)
	j.Requirements.PreferredSkills = NormalizeSkills(j.Requirements.PreferredSkills)
	j.Requirements.EducationLevel = strings.ToLower(strings.TrimSpace(j.Requirements.EducationLevel))
	j.PostingDate = model.CanonicalDate(j.PostingDate)
}

func buildPrompt(template, text string) string {
	return strings.ReplaceAll(template, "{{TEXT}}", text)
}

func correctivePrompt(template, text string, violations []schema.FieldViolation) string {
	var builder strings.Builder
	builder.WriteString(buildPrompt(template, text))
	builder.WriteString("\n\nYour previous response was rejected. Fix the following fields and return the corrected JSON object:\n")
	for _, v := range violations {
		builder.WriteString(fmt.Sprintf("- %s: %s\n", v.Field, v.Reason))
	}
	return builder.String()
}

// extractJSON strips markdown fences and surrounding prose so the largest
// JSON object in the response can be decoded.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}
