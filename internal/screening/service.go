// Package screening wires the pipeline together: document ingestion,
// scoring, shortlist decisions and interview scheduling.
package screening

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talentsift/talentsift/internal/model"
	"github.com/talentsift/talentsift/internal/parser"
	"github.com/talentsift/talentsift/internal/scheduler"
	"github.com/talentsift/talentsift/internal/shortlist"
)

const defaultIngestConcurrency = 4

// DocumentParser turns raw text into validated records.
type DocumentParser interface {
	ParseCandidate(ctx context.Context, text string) (*model.Candidate, error)
	ParseJobDescription(ctx context.Context, text string) (*model.JobDescription, error)
}

// Store is the persistence surface the service needs. Implemented by
// storage.Store.
type Store interface {
	SaveCandidate(ctx context.Context, c *model.Candidate) error
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	ListCandidates(ctx context.Context) ([]model.Candidate, error)
	SaveJob(ctx context.Context, j *model.JobDescription) error
	GetJob(ctx context.Context, id string) (*model.JobDescription, error)
	AppendShortlist(ctx context.Context, entries []model.ShortlistEntry) error
	CurrentShortlist(ctx context.Context, jobID string) ([]model.ShortlistEntry, error)
}

// Scorer computes one match score.
type Scorer interface {
	Score(candidate *model.Candidate, job *model.JobDescription) (*model.MatchScore, error)
}

// Shortlister decides a shortlist batch from a scored pool.
type Shortlister interface {
	Decide(ctx context.Context, job *model.JobDescription, scored []shortlist.Scored) (*shortlist.Result, error)
}

// InterviewScheduler delivers invitations and rejections.
type InterviewScheduler interface {
	Schedule(ctx context.Context, entries []model.ShortlistEntry) (*scheduler.Report, error)
	SendRejections(ctx context.Context, job *model.JobDescription, candidateIDs []string) (sent, failed int)
}

// Config tunes the service.
type Config struct {
	// IngestConcurrency bounds parallel document parsing. Zero means the
	// default of 4.
	IngestConcurrency int `mapstructure:"ingest-concurrency"`
}

// FileFailure records one document that could not be ingested.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchReport summarizes a directory ingestion run.
type BatchReport struct {
	Succeeded int           `json:"succeeded"`
	Degraded  int           `json:"degraded"`
	Failed    int           `json:"failed"`
	Failures  []FileFailure `json:"failures,omitempty"`
}

// Service is the application facade used by the CLI.
type Service struct {
	parser      DocumentParser
	store       Store
	scorer      Scorer
	shortlister Shortlister
	scheduler   InterviewScheduler
	logger      *zap.Logger
	concurrency int

	// extract is swappable in tests.
	extract func(path string) (string, error)
}

// New creates a Service.
func New(p DocumentParser, store Store, scorer Scorer, shortlister Shortlister, sched InterviewScheduler, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	concurrency := cfg.IngestConcurrency
	if concurrency <= 0 {
		concurrency = defaultIngestConcurrency
	}
	return &Service{
		parser:      p,
		store:       store,
		scorer:      scorer,
		shortlister: shortlister,
		scheduler:   sched,
		logger:      log,
		concurrency: concurrency,
		extract:     parser.ExtractFile,
	}
}

// ParseDocument parses raw text into the record for the given kind without
// persisting it. The returned value is *model.Candidate or
// *model.JobDescription.
func (s *Service) ParseDocument(ctx context.Context, text string, kind model.Kind) (any, error) {
	switch kind {
	case model.KindCandidate:
		return s.parser.ParseCandidate(ctx, text)
	case model.KindJobDescription:
		return s.parser.ParseJobDescription(ctx, text)
	default:
		return nil, fmt.Errorf("unknown document kind: %q", kind)
	}
}

// IngestResumeFile parses a single resume file and stores the candidate.
func (s *Service) IngestResumeFile(ctx context.Context, path string) (*model.Candidate, error) {
	text, err := s.extract(path)
	if err != nil {
		return nil, err
	}

	candidate, err := s.parser.ParseCandidate(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveCandidate(ctx, candidate); err != nil {
		return nil, fmt.Errorf("save candidate: %w", err)
	}

	s.logger.Info("candidate ingested",
		zap.String("candidate_id", candidate.ID),
		zap.String("name", candidate.Name),
		zap.Bool("degraded", candidate.Degraded),
	)
	return candidate, nil
}

// IngestJobFile parses a single job description file and stores it.
func (s *Service) IngestJobFile(ctx context.Context, path string) (*model.JobDescription, error) {
	text, err := s.extract(path)
	if err != nil {
		return nil, err
	}

	job, err := s.parser.ParseJobDescription(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	s.logger.Info("job ingested",
		zap.String("job_id", job.ID),
		zap.String("title", job.Title),
		zap.Bool("degraded", job.Degraded),
	)
	return job, nil
}

// IngestResumeDir ingests every supported file in a directory. Files are
// parsed concurrently; one bad document never aborts the batch.
func (s *Service) IngestResumeDir(ctx context.Context, dir string) (*BatchReport, error) {
	paths, err := listDocuments(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no documents found in %s", dir)
	}

	report := &BatchReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, path := range paths {
		g.Go(func() error {
			candidate, err := s.IngestResumeFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				report.Failed++
				report.Failures = append(report.Failures, FileFailure{Path: path, Error: err.Error()})
				s.logger.Warn("document rejected", zap.String("path", path), zap.Error(err))
				return nil
			}
			report.Succeeded++
			if candidate.Degraded {
				report.Degraded++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	s.logger.Info("resume batch ingested",
		zap.String("dir", dir),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("degraded", report.Degraded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Match scores one candidate against one job.
func (s *Service) Match(ctx context.Context, candidateID, jobID string) (*model.MatchScore, error) {
	candidate, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.scorer.Score(candidate, job)
}

// MatchJob scores the whole candidate pool against one job. A scoring
// inconsistency aborts the run: a half-scored pool must never feed a
// shortlist decision.
func (s *Service) MatchJob(ctx context.Context, jobID string) ([]shortlist.Scored, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]shortlist.Scored, 0, len(candidates))
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate := &candidates[i]
		score, err := s.scorer.Score(candidate, job)
		if err != nil {
			return nil, fmt.Errorf("score candidate %s: %w", candidate.ID, err)
		}
		scored = append(scored, shortlist.Scored{Candidate: candidate, Score: score})
	}

	s.logger.Info("pool scored",
		zap.String("job_id", jobID),
		zap.Int("candidates", len(scored)),
	)
	return scored, nil
}

// ShortlistJob scores the pool, decides a new batch and persists it.
func (s *Service) ShortlistJob(ctx context.Context, jobID string) (*shortlist.Result, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	scored, err := s.MatchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	result, err := s.shortlister.Decide(ctx, job, scored)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendShortlist(ctx, result.Entries); err != nil {
		return nil, fmt.Errorf("persist shortlist: %w", err)
	}
	return result, nil
}

// ScheduleInterviews sends invitations for the current shortlist batch.
func (s *Service) ScheduleInterviews(ctx context.Context, jobID string) (*scheduler.Report, error) {
	entries, err := s.store.CurrentShortlist(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.scheduler.Schedule(ctx, entries)
}

// NotifyRejections emails candidates rejected in a decided batch.
func (s *Service) NotifyRejections(ctx context.Context, jobID string, rejected []shortlist.Rejection) (sent, failed int, err error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return 0, 0, err
	}

	ids := make([]string, 0, len(rejected))
	for _, r := range rejected {
		ids = append(ids, r.CandidateID)
	}

	sent, failed = s.scheduler.SendRejections(ctx, job, ids)
	return sent, failed, nil
}

// listDocuments returns the supported files directly inside dir.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".docx", ".txt", ".md":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
