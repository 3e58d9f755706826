// Package storage persists candidates, jobs, shortlist batches and
// interview invites in a SQLite database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talentsift/talentsift/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle. All methods are safe for concurrent use.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the SQLite database at path, creating it and migrating
// the schema when needed.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := db.AutoMigrate(
		&model.Candidate{},
		&model.JobDescription{},
		&model.ShortlistEntry{},
		&model.InterviewInvite{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Debug("database ready", zap.String("path", path))
	return &Store{db: db, logger: log}, nil
}

// SaveCandidate inserts or replaces a candidate by ID.
func (s *Store) SaveCandidate(ctx context.Context, c *model.Candidate) error {
	if c == nil || c.ID == "" {
		return errors.New("candidate with an ID is required")
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(c).Error
}

// GetCandidate fetches a candidate by ID.
func (s *Store) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	var c model.Candidate
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "candidate %s", id)
	}
	return &c, nil
}

// ListCandidates returns all candidates ordered by ingestion time.
func (s *Store) ListCandidates(ctx context.Context) ([]model.Candidate, error) {
	var out []model.Candidate
	if err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SaveJob inserts or replaces a job description by ID.
func (s *Store) SaveJob(ctx context.Context, j *model.JobDescription) error {
	if j == nil || j.ID == "" {
		return errors.New("job with an ID is required")
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(j).Error
}

// GetJob fetches a job description by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*model.JobDescription, error) {
	var j model.JobDescription
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "job %s", id)
	}
	return &j, nil
}

// ListJobs returns all job descriptions ordered by ingestion time.
func (s *Store) ListJobs(ctx context.Context) ([]model.JobDescription, error) {
	var out []model.JobDescription
	if err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AppendShortlist stores a decided batch. Batches are append-only: earlier
// batches for the same job stay addressable for audit.
func (s *Store) AppendShortlist(ctx context.Context, entries []model.ShortlistEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&entries).Error
}

// CurrentShortlist returns the most recently decided batch for a job,
// ordered by rank. No batch at all maps to ErrNotFound.
func (s *Store) CurrentShortlist(ctx context.Context, jobID string) ([]model.ShortlistEntry, error) {
	var batchID string
	err := s.db.WithContext(ctx).
		Model(&model.ShortlistEntry{}).
		Where("job_id = ?", jobID).
		Order("decided_at DESC").
		Limit(1).
		Pluck("batch_id", &batchID).Error
	if err != nil {
		return nil, err
	}
	if batchID == "" {
		return nil, fmt.Errorf("shortlist for job %s: %w", jobID, ErrNotFound)
	}

	var entries []model.ShortlistEntry
	err = s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("rank").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListShortlist returns every batch entry recorded for a job, newest batch
// first, ranked within each batch.
func (s *Store) ListShortlist(ctx context.Context, jobID string) ([]model.ShortlistEntry, error) {
	var entries []model.ShortlistEntry
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("decided_at DESC, rank").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteCandidate removes a candidate from the pool and cancels their
// pending invites. Sent invites stay as historical record.
func (s *Store) DeleteCandidate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.InterviewInvite{}).
			Where("candidate_id = ? AND status = ?", id, model.InvitePending).
			Updates(map[string]any{
				"status":     model.InviteCancelled,
				"last_error": "candidate removed from pool",
			}).Error
		if err != nil {
			return err
		}

		res := tx.Delete(&model.Candidate{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// GetInvite fetches the invite for a (job, candidate) pair.
func (s *Store) GetInvite(ctx context.Context, jobID, candidateID string) (*model.InterviewInvite, error) {
	var invite model.InterviewInvite
	err := s.db.WithContext(ctx).
		First(&invite, "job_id = ? AND candidate_id = ?", jobID, candidateID).Error
	if err != nil {
		return nil, wrapNotFound(err, "invite %s/%s", jobID, candidateID)
	}
	return &invite, nil
}

// CreateInvite inserts a pending invite. The unique pair index makes a
// second insert for the same pair fail, which callers treat as "already
// exists" and re-read.
func (s *Store) CreateInvite(ctx context.Context, invite *model.InterviewInvite) error {
	if invite == nil {
		return errors.New("invite is required")
	}
	return s.db.WithContext(ctx).Create(invite).Error
}

// UpdateInviteAttempt records one delivery attempt on an invite.
func (s *Store) UpdateInviteAttempt(ctx context.Context, id uint, attempts int, at time.Time, lastError string) error {
	return s.db.WithContext(ctx).
		Model(&model.InterviewInvite{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count":   attempts,
			"last_attempt_at": at,
			"last_error":      lastError,
		}).Error
}

// TransitionInvite moves an invite from one status to another with a
// compare-and-set update. It reports false when the invite was not in the
// expected status, which means another actor got there first.
func (s *Store) TransitionInvite(ctx context.Context, id uint, from, to model.InviteStatus, lastError string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.InterviewInvite{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"last_error": lastError,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return err
}
