package shortlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/model"
)

// Rejection records why a candidate was left off the shortlist.
type Rejection struct {
	CandidateID string `json:"candidate_id"`
	Score       int    `json:"score"`
	Reason      string `json:"reason"`
}

// Stats summarizes a shortlist run.
type Stats struct {
	Initial     int     `json:"initial"`
	Shortlisted int     `json:"shortlisted"`
	Rejected    int     `json:"rejected"`
	MeanScore   float64 `json:"mean_score"`
}

// Result is one decided shortlist batch. Entries are ranked starting at 1
// and share the batch ID and decision time.
type Result struct {
	BatchID   string                 `json:"batch_id"`
	JobID     string                 `json:"job_id"`
	Entries   []model.ShortlistEntry `json:"entries"`
	Rejected  []Rejection            `json:"rejected"`
	Stats     Stats                  `json:"stats"`
	DecidedAt time.Time              `json:"decided_at"`
}

// Controller runs the selection pipeline and assembles the batch.
type Controller struct {
	policy  Policy
	filters []Filter
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// New creates a Controller with the standard pipeline: degraded records,
// score threshold, then top-K ordering.
func New(policy Policy, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		policy:  policy,
		filters: []Filter{NewDegraded(), NewMinScore(), NewTopK()},
		logger:  log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Decide runs the pipeline over the scored pool and returns the batch. An
// empty shortlist is a valid outcome, not an error.
func (c *Controller) Decide(ctx context.Context, job *model.JobDescription, scored []Scored) (*Result, error) {
	if job == nil {
		return nil, errors.New("shortlist: job is required")
	}
	for _, item := range scored {
		if item.Candidate == nil || item.Score == nil {
			return nil, errors.New("shortlist: every pool item needs a candidate and a score")
		}
		if item.Score.JobID != job.ID {
			return nil, fmt.Errorf("shortlist: score for job %s mixed into batch for job %s", item.Score.JobID, job.ID)
		}
	}

	result := &Result{
		BatchID:   c.newID(),
		JobID:     job.ID,
		Rejected:  []Rejection{},
		DecidedAt: c.now().UTC(),
	}
	result.Stats.Initial = len(scored)

	deps := Deps{
		Logger: c.logger,
		Policy: c.policy,
		Reject: func(item Scored, reason string) {
			result.Rejected = append(result.Rejected, Rejection{
				CandidateID: item.Candidate.ID,
				Score:       item.Score.Overall,
				Reason:      reason,
			})
		},
	}

	pool := &Pool{Items: append([]Scored(nil), scored...)}
	for _, step := range c.filters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, deps, pool)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		c.logger.Info("shortlist step",
			zap.String("job_id", job.ID),
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		pool = next
	}

	result.Entries = make([]model.ShortlistEntry, 0, pool.Len())
	for i, item := range pool.Items {
		result.Entries = append(result.Entries, model.ShortlistEntry{
			ID:          c.newID(),
			BatchID:     result.BatchID,
			JobID:       job.ID,
			CandidateID: item.Candidate.ID,
			Rank:        i + 1,
			Score:       *item.Score,
			DecisionReason: fmt.Sprintf("rank %d of %d with score %d",
				i+1, pool.Len(), item.Score.Overall),
			DecidedAt: result.DecidedAt,
		})
	}

	result.Stats.Shortlisted = len(result.Entries)
	result.Stats.Rejected = len(result.Rejected)
	if len(result.Entries) > 0 {
		total := 0
		for _, entry := range result.Entries {
			total += entry.Score.Overall
		}
		result.Stats.MeanScore = float64(total) / float64(len(result.Entries))
	}

	c.logger.Info("shortlist decided",
		zap.String("job_id", job.ID),
		zap.String("batch_id", result.BatchID),
		zap.Int("shortlisted", result.Stats.Shortlisted),
		zap.Int("rejected", result.Stats.Rejected),
	)

	return result, nil
}
