package model

import (
	"time"

	"gorm.io/datatypes"
)

// Kind identifies which structured entity a raw document should become.
type Kind string

const (
	KindCandidate      Kind = "candidate"
	KindJobDescription Kind = "job_description"
)

// Experience is a single engagement on a resume. Dates are canonicalized by
// the document parser to YYYY-MM (or "present" for an open-ended role) so
// downstream consumers never re-parse free-form date text.
type Experience struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

// Education is a single entry in a candidate's education history.
type Education struct {
	Institution    string `json:"institution"`
	Degree         string `json:"degree"`
	FieldOfStudy   string `json:"field_of_study"`
	GraduationDate string `json:"graduation_date"`
}

// Candidate is a structured resume. Name and email are identity-bearing:
// a candidate without them is never admitted to the pool. Skills are
// case-normalized and deduplicated preserving first-seen order.
type Candidate struct {
	ID             string            `json:"candidate_id" gorm:"primaryKey;column:id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	Location       string            `json:"location"`
	Linkedin       string            `json:"linkedin"`
	Summary        string            `json:"summary"`
	Skills         []string          `json:"skills" gorm:"serializer:json"`
	Experience     []Experience      `json:"experience" gorm:"serializer:json"`
	Education      []Education       `json:"education" gorm:"serializer:json"`
	Certifications []string          `json:"certifications" gorm:"serializer:json"`
	Languages      []string          `json:"languages" gorm:"serializer:json"`
	Degraded       bool              `json:"degraded"`
	RawAttributes  datatypes.JSONMap `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Requirements describes what a job demands from applicants.
type Requirements struct {
	RequiredSkills     []string `json:"required_skills"`
	PreferredSkills    []string `json:"preferred_skills"`
	MinExperienceYears float64  `json:"min_experience_years"`
	EducationLevel     string   `json:"education_level"`
}

// JobDescription is a structured job posting. Title, company and location
// are identity-bearing.
type JobDescription struct {
	ID            string            `json:"job_id" gorm:"primaryKey;column:id"`
	Title         string            `json:"title"`
	Company       string            `json:"company"`
	Location      string            `json:"location"`
	PostingDate   string            `json:"posting_date"`
	Description   string            `json:"description"`
	Requirements  Requirements      `json:"requirements" gorm:"serializer:json"`
	Degraded      bool              `json:"degraded"`
	RawAttributes datatypes.JSONMap `json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
}

// MatchScore is the result of scoring one candidate against one job. It is
// derived data: recomputed on demand and never treated as a source of truth.
type MatchScore struct {
	JobID                 string   `json:"job_id"`
	CandidateID           string   `json:"candidate_id"`
	Overall               int      `json:"overall"`
	SkillsComponent       float64  `json:"skills_component"`
	ExperienceComponent   float64  `json:"experience_component"`
	EducationComponent    float64  `json:"education_component"`
	MatchedSkills         []string `json:"matched_skills"`
	MissingRequiredSkills []string `json:"missing_required_skills"`
}

// ShortlistEntry is one decided position on a shortlist. Entries are
// append-only: a later run for the same job produces a new batch that
// supersedes the previous one, old batches stay addressable for audit.
type ShortlistEntry struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	BatchID        string     `json:"batch_id" gorm:"index"`
	JobID          string     `json:"job_id" gorm:"index"`
	CandidateID    string     `json:"candidate_id"`
	Rank           int        `json:"rank"`
	Score          MatchScore `json:"score" gorm:"serializer:json"`
	DecisionReason string     `json:"decision_reason"`
	DecidedAt      time.Time  `json:"decided_at"`
}

// InviteStatus is the state of an interview invitation.
type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteSent      InviteStatus = "sent"
	InviteFailed    InviteStatus = "failed"
	InviteCancelled InviteStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s InviteStatus) Terminal() bool {
	return s == InviteSent || s == InviteFailed || s == InviteCancelled
}

// InterviewInvite tracks the single logical invitation for a
// (job, candidate) pair. The pair is the idempotency key: the unique index
// guarantees at most one row, and status transitions go through
// compare-and-set updates so concurrent schedulers cannot both send.
type InterviewInvite struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	JobID         string       `json:"job_id" gorm:"uniqueIndex:idx_invite_pair"`
	CandidateID   string       `json:"candidate_id" gorm:"uniqueIndex:idx_invite_pair"`
	Status        InviteStatus `json:"status"`
	AttemptCount  int          `json:"attempt_count"`
	LastAttemptAt *time.Time   `json:"last_attempt_at"`
	LastError     string       `json:"last_error"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
