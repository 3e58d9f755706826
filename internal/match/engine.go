// Package match scores candidates against job requirements. The engine is
// deterministic and side-effect free: the same candidate, job and clock
// always produce the same score.
package match

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/talentsift/talentsift/internal/model"
)

// ErrInconsistent reports a computed score outside the valid range. It means
// a bug in the engine or corrupted input, never a bad candidate.
var ErrInconsistent = errors.New("inconsistent score")

// Weights splits the overall score across the three components. They must be
// non-negative and sum to 1.
type Weights struct {
	Skills     float64 `mapstructure:"skills"`
	Experience float64 `mapstructure:"experience"`
	Education  float64 `mapstructure:"education"`
}

// DefaultWeights returns the standard 50/30/20 split.
func DefaultWeights() Weights {
	return Weights{Skills: 0.5, Experience: 0.3, Education: 0.2}
}

const (
	requiredSkillShare   = 0.8
	preferredSkillShare  = 0.2
	educationStepPenalty = 25.0
)

// degreeRank orders degree words and abbreviations. Higher is better; zero
// means the level could not be recognized. Abbreviations are matched as
// whole tokens after stripping dots, so "systems" never reads as "ms".
var degreeRank = map[string]int{
	"phd":        5,
	"doctorate":  5,
	"doctoral":   5,
	"master":     4,
	"masters":    4,
	"msc":        4,
	"ms":         4,
	"ma":         4,
	"mba":        4,
	"meng":       4,
	"bachelor":   3,
	"bachelors":  3,
	"bsc":        3,
	"bs":         3,
	"ba":         3,
	"beng":       3,
	"associate":  2,
	"associates": 2,
}

const defaultEducationRank = 3 // bachelor

// Engine computes match scores. The clock is injectable so open-ended
// experience ranges score deterministically in tests.
type Engine struct {
	weights Weights
	now     func() time.Time
}

// New creates an Engine with the given weights. Zero-valued weights fall
// back to the default split.
func New(weights Weights) (*Engine, error) {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if weights.Skills < 0 || weights.Experience < 0 || weights.Education < 0 {
		return nil, fmt.Errorf("negative weight: %+v", weights)
	}
	sum := weights.Skills + weights.Experience + weights.Education
	if math.Abs(sum-1) > 1e-9 {
		return nil, fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	return &Engine{weights: weights, now: time.Now}, nil
}

// Score computes the match between one candidate and one job. The result is
// derived data and safe to recompute at any time.
func (e *Engine) Score(candidate *model.Candidate, job *model.JobDescription) (*model.MatchScore, error) {
	if candidate == nil || job == nil {
		return nil, errors.New("score: candidate and job are required")
	}

	skills, matched, missing := e.skillsComponent(candidate, job)
	experience := e.experienceComponent(candidate, job)
	education := e.educationComponent(candidate, job)

	for name, component := range map[string]float64{
		"skills":     skills,
		"experience": experience,
		"education":  education,
	} {
		if component < 0 || component > 100 || math.IsNaN(component) {
			return nil, fmt.Errorf("%w: %s component %v for candidate %s job %s",
				ErrInconsistent, name, component, candidate.ID, job.ID)
		}
	}

	overall := int(math.Round(
		e.weights.Skills*skills +
			e.weights.Experience*experience +
			e.weights.Education*education,
	))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return &model.MatchScore{
		JobID:                 job.ID,
		CandidateID:           candidate.ID,
		Overall:               overall,
		SkillsComponent:       skills,
		ExperienceComponent:   experience,
		EducationComponent:    education,
		MatchedSkills:         matched,
		MissingRequiredSkills: missing,
	}, nil
}

// skillsComponent compares normalized skill sets. Required skills dominate;
// preferred skills blend in a smaller share only when the job lists both.
// A job with no required skills always scores full marks here: there is
// nothing the candidate can miss.
func (e *Engine) skillsComponent(candidate *model.Candidate, job *model.JobDescription) (score float64, matched, missing []string) {
	have := make(map[string]struct{}, len(candidate.Skills))
	for _, s := range candidate.Skills {
		have[normalizeSkill(s)] = struct{}{}
	}

	matched = []string{}
	missing = []string{}
	requiredHits := 0
	for _, s := range job.Requirements.RequiredSkills {
		if _, ok := have[normalizeSkill(s)]; ok {
			requiredHits++
			matched = append(matched, s)
		} else {
			missing = append(missing, s)
		}
	}

	preferredHits := 0
	for _, s := range job.Requirements.PreferredSkills {
		if _, ok := have[normalizeSkill(s)]; ok {
			preferredHits++
			matched = append(matched, s)
		}
	}

	if len(job.Requirements.RequiredSkills) == 0 {
		return 100, matched, missing
	}

	requiredScore := 100 * float64(requiredHits) / float64(len(job.Requirements.RequiredSkills))
	if len(job.Requirements.PreferredSkills) == 0 {
		return requiredScore, matched, missing
	}
	preferredScore := 100 * float64(preferredHits) / float64(len(job.Requirements.PreferredSkills))

	return requiredSkillShare*requiredScore + preferredSkillShare*preferredScore, matched, missing
}

// experienceComponent ramps linearly from zero months to the job's minimum,
// capping at 100. Overlapping engagements never double count.
func (e *Engine) experienceComponent(candidate *model.Candidate, job *model.JobDescription) float64 {
	minYears := job.Requirements.MinExperienceYears
	if minYears <= 0 {
		return 100
	}

	months := totalExperienceMonths(candidate.Experience, e.now())
	score := 100 * float64(months) / (minYears * 12)
	if score > 100 {
		score = 100
	}
	return score
}

// educationComponent penalizes each level the candidate sits below the
// requirement. Meeting or exceeding the level scores full marks.
func (e *Engine) educationComponent(candidate *model.Candidate, job *model.JobDescription) float64 {
	required := strings.TrimSpace(strings.ToLower(job.Requirements.EducationLevel))
	if required == "" {
		return 100
	}

	requiredRank, ok := lookupEducation(required)
	if !ok {
		requiredRank = defaultEducationRank
	}

	best := 0
	for _, edu := range candidate.Education {
		if rank, ok := lookupEducation(strings.ToLower(edu.Degree)); ok && rank > best {
			best = rank
		}
	}

	if best >= requiredRank {
		return 100
	}
	score := 100 - educationStepPenalty*float64(requiredRank-best)
	if score < 0 {
		score = 0
	}
	return score
}

// lookupEducation recognizes a degree level inside free-form degree text,
// e.g. "Master of Science", "Ph.D. in Physics" or "B.Sc.". Dots are removed
// first so dotted abbreviations collapse into plain tokens.
func lookupEducation(text string) (int, bool) {
	text = strings.ToLower(strings.ReplaceAll(text, ".", ""))

	best := 0
	if strings.Contains(text, "high school") {
		best = 1
	}
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if rank, ok := degreeRank[token]; ok && rank > best {
			best = rank
		}
	}

	// "Ph. D." style spacing splits an abbreviation across tokens; the
	// letters of the whole text still spell it out.
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, text)
	if rank, ok := degreeRank[letters]; ok && rank > best {
		best = rank
	}

	return best, best > 0
}

// totalExperienceMonths merges overlapping date ranges and sums their
// lengths in whole months.
func totalExperienceMonths(history []model.Experience, now time.Time) int {
	type interval struct{ start, end int }

	intervals := make([]interval, 0, len(history))
	for _, exp := range history {
		start, ok := model.ParseDate(exp.StartDate, now)
		if !ok {
			continue
		}
		end, ok := model.ParseDate(exp.EndDate, now)
		if !ok {
			continue
		}
		s := monthIndex(start)
		e := monthIndex(end)
		if e <= s {
			continue
		}
		intervals = append(intervals, interval{start: s, end: e})
	}
	if len(intervals) == 0 {
		return 0
	}

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

	total := 0
	current := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.start <= current.end {
			if iv.end > current.end {
				current.end = iv.end
			}
			continue
		}
		total += current.end - current.start
		current = iv
	}
	total += current.end - current.start
	return total
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
