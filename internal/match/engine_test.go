package match

import (
	"reflect"
	"testing"
	"time"

	"github.com/talentsift/talentsift/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := New(Weights{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine.now = func() time.Time {
		return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
	return engine
}

func TestNewRejectsBadWeights(t *testing.T) {
	if _, err := New(Weights{Skills: 0.5, Experience: 0.5, Education: 0.5}); err == nil {
		t.Fatalf("expected an error for weights not summing to 1")
	}
	if _, err := New(Weights{Skills: 1.5, Experience: -0.5, Education: 0}); err == nil {
		t.Fatalf("expected an error for a negative weight")
	}
}

func TestScoreSkillsComponent(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{
		ID:     "c1",
		Skills: []string{"go", "postgresql"},
	}
	job := &model.JobDescription{
		ID: "j1",
		Requirements: model.Requirements{
			RequiredSkills: []string{"go", "postgresql", "kubernetes"},
		},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 100.0 * 2 / 3
	if diff := score.SkillsComponent - want; diff > 0.01 || diff < -0.01 {
		t.Fatalf("skills component = %v, expected %v", score.SkillsComponent, want)
	}
	if !reflect.DeepEqual(score.MatchedSkills, []string{"go", "postgresql"}) {
		t.Fatalf("matched = %v", score.MatchedSkills)
	}
	if !reflect.DeepEqual(score.MissingRequiredSkills, []string{"kubernetes"}) {
		t.Fatalf("missing = %v", score.MissingRequiredSkills)
	}
}

func TestScorePreferredSkillsBlend(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{ID: "c1", Skills: []string{"go", "docker"}}
	job := &model.JobDescription{
		ID: "j1",
		Requirements: model.Requirements{
			RequiredSkills:  []string{"go"},
			PreferredSkills: []string{"docker", "kubernetes"},
		},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.8*100 + 0.2*50
	if score.SkillsComponent != 90 {
		t.Fatalf("skills component = %v, expected 90", score.SkillsComponent)
	}
}

func TestScoreNoRequiredSkills(t *testing.T) {
	engine := newTestEngine(t)

	score, err := engine.Score(
		&model.Candidate{ID: "c1"},
		&model.JobDescription{ID: "j1"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.SkillsComponent != 100 {
		t.Fatalf("skills component = %v, expected 100 with no requirements", score.SkillsComponent)
	}
	if score.Overall != 100 {
		t.Fatalf("overall = %d, expected 100 with no requirements at all", score.Overall)
	}
}

func TestScoreNoRequiredSkillsWithPreferred(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{ID: "c1", Skills: []string{"python"}}
	job := &model.JobDescription{
		ID: "j1",
		Requirements: model.Requirements{
			PreferredSkills: []string{"kubernetes"},
		},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No required skills means nothing can be missed; unmatched preferred
	// skills must not drag the component below full marks.
	if score.SkillsComponent != 100 {
		t.Fatalf("skills component = %v, expected 100 without required skills", score.SkillsComponent)
	}
	if score.Overall != 100 {
		t.Fatalf("overall = %d, expected 100", score.Overall)
	}
}

func TestScoreExperienceMergesOverlaps(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{
		ID: "c1",
		Experience: []model.Experience{
			{StartDate: "2020-01", EndDate: "2021-06"},
			{StartDate: "2021-01", EndDate: "2022-01"},
		},
	}
	job := &model.JobDescription{
		ID:           "j1",
		Requirements: model.Requirements{MinExperienceYears: 4},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 24 distinct months against a 48 month requirement.
	if score.ExperienceComponent != 50 {
		t.Fatalf("experience component = %v, expected 50", score.ExperienceComponent)
	}
}

func TestScoreExperienceOpenEnded(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{
		ID: "c1",
		Experience: []model.Experience{
			{StartDate: "2023-06", EndDate: "present"},
		},
	}
	job := &model.JobDescription{
		ID:           "j1",
		Requirements: model.Requirements{MinExperienceYears: 1},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 12 months as of the injected clock, exactly the minimum.
	if score.ExperienceComponent != 100 {
		t.Fatalf("experience component = %v, expected 100", score.ExperienceComponent)
	}
}

func TestScoreExperienceCapped(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{
		ID: "c1",
		Experience: []model.Experience{
			{StartDate: "2010-01", EndDate: "2020-01"},
		},
	}
	job := &model.JobDescription{
		ID:           "j1",
		Requirements: model.Requirements{MinExperienceYears: 2},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.ExperienceComponent != 100 {
		t.Fatalf("experience component = %v, expected cap at 100", score.ExperienceComponent)
	}
}

func TestScoreEducation(t *testing.T) {
	cases := []struct {
		name     string
		degree   string
		required string
		expected float64
	}{
		{name: "meets", degree: "Bachelor of Science", required: "bachelor", expected: 100},
		{name: "exceeds", degree: "Master of Engineering", required: "bachelor", expected: 100},
		{name: "one below", degree: "Bachelor of Arts", required: "master", expected: 75},
		{name: "two below", degree: "Associate Degree", required: "master", expected: 50},
		{name: "none required", degree: "", required: "", expected: 100},
		{name: "unknown required treated as bachelor", degree: "Bachelor of Science", required: "vocational", expected: 100},
		{name: "doctorate", degree: "Doctorate in Physics", required: "phd", expected: 100},
		{name: "dotted doctorate", degree: "Ph.D. in Physics", required: "phd", expected: 100},
		{name: "spaced abbreviation", degree: "Ph. D.", required: "doctorate", expected: 100},
		{name: "dotted master", degree: "M.S. Computer Science", required: "master", expected: 100},
		{name: "dotted bachelor", degree: "B.Sc. Chemistry", required: "bachelor", expected: 100},
		{name: "abbreviation not read out of words", degree: "Systems Analyst Diploma", required: "master", expected: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(t)

			candidate := &model.Candidate{ID: "c1"}
			if tc.degree != "" {
				candidate.Education = []model.Education{{Degree: tc.degree}}
			}
			job := &model.JobDescription{
				ID:           "j1",
				Requirements: model.Requirements{EducationLevel: tc.required},
			}

			score, err := engine.Score(candidate, job)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if score.EducationComponent != tc.expected {
				t.Fatalf("education component = %v, expected %v", score.EducationComponent, tc.expected)
			}
		})
	}
}

func TestScoreOverallWeighting(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{
		ID:     "c1",
		Skills: []string{"go"},
		Experience: []model.Experience{
			{StartDate: "2022-06", EndDate: "2024-06"},
		},
		Education: []model.Education{{Degree: "Bachelor of Science"}},
	}
	job := &model.JobDescription{
		ID: "j1",
		Requirements: model.Requirements{
			RequiredSkills:     []string{"go", "kubernetes"},
			MinExperienceYears: 4,
			EducationLevel:     "master",
		},
	}

	score, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.5*50 + 0.3*50 + 0.2*75 = 55
	if score.Overall != 55 {
		t.Fatalf("overall = %d, expected 55", score.Overall)
	}
}

func TestScoreDeterministic(t *testing.T) {
	engine := newTestEngine(t)

	candidate := &model.Candidate{
		ID:     "c1",
		Skills: []string{"go", "python"},
		Experience: []model.Experience{
			{StartDate: "2019-03", EndDate: "present"},
		},
	}
	job := &model.JobDescription{
		ID: "j1",
		Requirements: model.Requirements{
			RequiredSkills:     []string{"go"},
			MinExperienceYears: 3,
		},
	}

	first, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Score(candidate, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scores differ across runs:\n%+v\n%+v", first, second)
	}
}

func TestScoreNilInput(t *testing.T) {
	engine := newTestEngine(t)
	if _, err := engine.Score(nil, &model.JobDescription{}); err == nil {
		t.Fatalf("expected an error for nil candidate")
	}
	if _, err := engine.Score(&model.Candidate{}, nil); err == nil {
		t.Fatalf("expected an error for nil job")
	}
}
