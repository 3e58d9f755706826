// Package shortlist turns scored candidates into an ordered, auditable
// shortlist batch. Selection runs as a pipeline of filters over the pool,
// each reporting how many candidates it dropped.
package shortlist

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/model"
)

const defaultTopK = 10

// Tie-break strategies for candidates with equal overall scores.
const (
	// TieBreakIngestTime prefers the earlier ingested candidate, falling
	// back to the lexically smaller ID. This is the default.
	TieBreakIngestTime = "ingest-time"
	// TieBreakCandidateID orders equal scores by candidate ID alone.
	TieBreakCandidateID = "candidate-id"
)

// Scored pairs a candidate with its computed match score.
type Scored struct {
	Candidate *model.Candidate
	Score     *model.MatchScore
}

// Pool is the working set of candidates flowing through the pipeline.
type Pool struct {
	Items []Scored
}

func (p *Pool) Len() int { return len(p.Items) }

// Policy configures the selection pipeline.
type Policy struct {
	// MinScore drops candidates whose overall score is below the threshold.
	// Zero disables the threshold.
	MinScore int `mapstructure:"min-score"`
	// TopK caps the shortlist length. Zero means the default of 10.
	TopK int `mapstructure:"top-k"`
	// ExcludeDegraded drops candidates whose records came from the
	// heuristic fallback rather than a validated model response.
	ExcludeDegraded bool `mapstructure:"exclude-degraded"`
	// TieBreak names the ordering for equal scores. Empty means
	// TieBreakIngestTime.
	TieBreak string `mapstructure:"tie-break"`
}

// Step describes the result of executing one pipeline filter.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Deps aggregates dependencies shared across pipeline filters.
type Deps struct {
	Logger *zap.Logger
	Policy Policy
	Reject func(candidate Scored, reason string)
}

// Filter is a single selection step applied to the candidate pool.
type Filter interface {
	Name() string
	Apply(ctx context.Context, deps Deps, p *Pool) (*Pool, Step, error)
}

type degradedFilter struct{}

// NewDegraded creates a filter that removes heuristically parsed candidates
// when the policy requires validated records.
func NewDegraded() Filter { return &degradedFilter{} }

func (f *degradedFilter) Name() string { return "degraded" }

func (f *degradedFilter) Apply(_ context.Context, deps Deps, p *Pool) (*Pool, Step, error) {
	initial := p.Len()
	if !deps.Policy.ExcludeDegraded {
		return p, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept := make([]Scored, 0, initial)
	for _, item := range p.Items {
		if item.Candidate.Degraded {
			deps.Reject(item, "record produced by heuristic fallback")
			continue
		}
		kept = append(kept, item)
	}
	p.Items = kept

	return p, Step{Initial: initial, Dropped: initial - p.Len(), Left: p.Len()}, nil
}

type minScoreFilter struct{}

// NewMinScore creates a filter that drops candidates below the score
// threshold.
func NewMinScore() Filter { return &minScoreFilter{} }

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, p *Pool) (*Pool, Step, error) {
	initial := p.Len()
	threshold := deps.Policy.MinScore
	if threshold <= 0 {
		return p, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept := make([]Scored, 0, initial)
	for _, item := range p.Items {
		if item.Score.Overall < threshold {
			deps.Reject(item, fmt.Sprintf("score %d below minimum %d", item.Score.Overall, threshold))
			continue
		}
		kept = append(kept, item)
	}
	p.Items = kept

	return p, Step{Initial: initial, Dropped: initial - p.Len(), Left: p.Len()}, nil
}

type topKFilter struct{}

// NewTopK creates a filter that orders the pool and caps it at the policy's
// shortlist length.
func NewTopK() Filter { return &topKFilter{} }

func (f *topKFilter) Name() string { return "top_k" }

func (f *topKFilter) Apply(_ context.Context, deps Deps, p *Pool) (*Pool, Step, error) {
	initial := p.Len()

	limit := deps.Policy.TopK
	if limit <= 0 {
		limit = defaultTopK
	}

	tie, err := tieBreaker(deps.Policy.TieBreak)
	if err != nil {
		return p, Step{}, err
	}
	sortPool(p, tie)

	if p.Len() > limit {
		for _, item := range p.Items[limit:] {
			deps.Reject(item, fmt.Sprintf("outside top %d", limit))
		}
		p.Items = p.Items[:limit]
	}

	return p, Step{Initial: initial, Dropped: initial - p.Len(), Left: p.Len()}, nil
}

// tieBreaker resolves the policy's tie-break name into an ordering applied
// to candidates with equal scores.
func tieBreaker(strategy string) (func(a, b Scored) bool, error) {
	switch strategy {
	case "", TieBreakIngestTime:
		return func(a, b Scored) bool {
			if !a.Candidate.CreatedAt.Equal(b.Candidate.CreatedAt) {
				return a.Candidate.CreatedAt.Before(b.Candidate.CreatedAt)
			}
			return a.Candidate.ID < b.Candidate.ID
		}, nil
	case TieBreakCandidateID:
		return func(a, b Scored) bool {
			return a.Candidate.ID < b.Candidate.ID
		}, nil
	default:
		return nil, fmt.Errorf("unknown tie-break strategy: %q", strategy)
	}
}

// sortPool orders by score descending so ranking is deterministic. Equal
// scores fall to the tie-break ordering.
func sortPool(p *Pool, tie func(a, b Scored) bool) {
	sort.SliceStable(p.Items, func(i, j int) bool {
		a, b := p.Items[i], p.Items[j]
		if a.Score.Overall != b.Score.Overall {
			return a.Score.Overall > b.Score.Overall
		}
		return tie(a, b)
	})
}
