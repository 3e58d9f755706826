package shortlist

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/model"
)

func scored(id string, overall int, createdAt time.Time) Scored {
	return Scored{
		Candidate: &model.Candidate{ID: id, CreatedAt: createdAt},
		Score:     &model.MatchScore{JobID: "j1", CandidateID: id, Overall: overall},
	}
}

func TestDecideOrdersAndRanks(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := New(Policy{TopK: 3}, zap.NewNop())

	pool := []Scored{
		scored("c-low", 40, base),
		scored("c-top", 95, base),
		scored("c-mid", 70, base),
	}

	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}
	if mean := result.Stats.MeanScore; mean < 68.3 || mean > 68.4 {
		t.Fatalf("mean score = %v, expected about 68.33", mean)
	}
	for i, want := range []string{"c-top", "c-mid", "c-low"} {
		entry := result.Entries[i]
		if entry.CandidateID != want {
			t.Fatalf("rank %d = %s, expected %s", i+1, entry.CandidateID, want)
		}
		if entry.Rank != i+1 {
			t.Fatalf("entry %s rank = %d, expected %d", entry.CandidateID, entry.Rank, i+1)
		}
		if entry.BatchID != result.BatchID {
			t.Fatalf("entry %s batch = %s, expected %s", entry.CandidateID, entry.BatchID, result.BatchID)
		}
		if !entry.DecidedAt.Equal(result.DecidedAt) {
			t.Fatalf("entry %s decided_at differs from batch", entry.CandidateID)
		}
	}
}

func TestDecideMinScoreThreshold(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := New(Policy{MinScore: 60, TopK: 10}, zap.NewNop())

	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{
		scored("c1", 59, base),
		scored("c2", 60, base),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entries) != 1 || result.Entries[0].CandidateID != "c2" {
		t.Fatalf("entries = %+v, expected only c2", result.Entries)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].CandidateID != "c1" {
		t.Fatalf("rejected = %+v, expected only c1", result.Rejected)
	}
	if result.Stats.Initial != 2 || result.Stats.Shortlisted != 1 || result.Stats.Rejected != 1 {
		t.Fatalf("stats = %+v", result.Stats)
	}
}

func TestDecideTopKCutsWithReasons(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := New(Policy{TopK: 2}, zap.NewNop())

	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{
		scored("c1", 90, base),
		scored("c2", 80, base),
		scored("c3", 70, base),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if len(result.Rejected) != 1 || result.Rejected[0].CandidateID != "c3" {
		t.Fatalf("rejected = %+v, expected c3", result.Rejected)
	}
	if result.Rejected[0].Reason == "" {
		t.Fatalf("rejection must carry a reason")
	}
}

func TestDecideTieBreakByIngestTime(t *testing.T) {
	early := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)
	c := New(Policy{TopK: 1}, zap.NewNop())

	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{
		scored("c-late", 80, late),
		scored("c-early", 80, early),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Entries[0].CandidateID != "c-early" {
		t.Fatalf("winner = %s, expected the earlier ingested candidate", result.Entries[0].CandidateID)
	}
}

func TestDecideTieBreakByCandidateID(t *testing.T) {
	early := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)
	c := New(Policy{TopK: 1, TieBreak: TieBreakCandidateID}, zap.NewNop())

	// The lexically smaller ID was ingested later; this strategy must pick
	// it anyway.
	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{
		scored("c-b", 80, early),
		scored("c-a", 80, late),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Entries[0].CandidateID != "c-a" {
		t.Fatalf("winner = %s, expected the smaller candidate ID", result.Entries[0].CandidateID)
	}
}

func TestDecideRejectsUnknownTieBreak(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := New(Policy{TieBreak: "coin-flip"}, zap.NewNop())

	if _, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{
		scored("c1", 80, base),
	}); err == nil {
		t.Fatalf("expected an error for an unknown tie-break strategy")
	}
}

func TestDecideExcludesDegraded(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := New(Policy{TopK: 10, ExcludeDegraded: true}, zap.NewNop())

	degraded := scored("c-degraded", 99, base)
	degraded.Candidate.Degraded = true

	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{
		degraded,
		scored("c-clean", 50, base),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entries) != 1 || result.Entries[0].CandidateID != "c-clean" {
		t.Fatalf("entries = %+v, expected only c-clean", result.Entries)
	}
}

func TestDecideRejectsForeignScores(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := New(Policy{}, zap.NewNop())

	item := scored("c1", 80, base)
	item.Score.JobID = "other-job"

	if _, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, []Scored{item}); err == nil {
		t.Fatalf("expected an error for a score computed against another job")
	}
}

func TestDecideEmptyPool(t *testing.T) {
	c := New(Policy{}, zap.NewNop())

	result, err := c.Decide(context.Background(), &model.JobDescription{ID: "j1"}, nil)
	if err != nil {
		t.Fatalf("an empty pool must not be an error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected an empty shortlist, got %+v", result.Entries)
	}
}
