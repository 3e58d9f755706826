// Package scheduler sends interview invitations for shortlisted candidates
// with at-most-once delivery per (job, candidate) pair.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/model"
	"github.com/talentsift/talentsift/internal/storage"
)

const (
	defaultMaxAttempts = 3
	defaultSlotCount   = 4
)

// InviteStore is the persistence surface the scheduler needs. Implemented
// by storage.Store.
type InviteStore interface {
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	GetJob(ctx context.Context, id string) (*model.JobDescription, error)
	GetInvite(ctx context.Context, jobID, candidateID string) (*model.InterviewInvite, error)
	CreateInvite(ctx context.Context, invite *model.InterviewInvite) error
	UpdateInviteAttempt(ctx context.Context, id uint, attempts int, at time.Time, lastError string) error
	TransitionInvite(ctx context.Context, id uint, from, to model.InviteStatus, lastError string) (bool, error)
}

// Config tunes delivery behaviour.
type Config struct {
	// MaxAttempts bounds delivery attempts per invite, transient retries
	// included. Zero means the default of 3.
	MaxAttempts int `mapstructure:"max-attempts"`
	// SlotCount is how many interview slots each invitation proposes.
	SlotCount int `mapstructure:"slot-count"`
}

// Outcome is the per-candidate result of a scheduling run.
type Outcome struct {
	JobID       string             `json:"job_id"`
	CandidateID string             `json:"candidate_id"`
	Status      model.InviteStatus `json:"status"`
	Attempts    int                `json:"attempts"`
	Skipped     bool               `json:"skipped,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Report summarizes a batch scheduling run. One candidate's failure never
// blocks the rest of the batch.
type Report struct {
	Sent     int       `json:"sent"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// Scheduler delivers invitations. The per-pair lock plus compare-and-set
// status transitions in the store guarantee that concurrent runs never send
// the same invitation twice.
type Scheduler struct {
	store       InviteStore
	sender      Sender
	logger      *zap.Logger
	maxAttempts int
	slotCount   int
	now         func() time.Time

	mu    sync.Mutex
	pairs map[string]*pairLock
}

// pairLock is a refcounted mutex for one (job, candidate) pair. The count
// lets the scheduler drop the map entry once the last holder releases it.
type pairLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Scheduler.
func New(store InviteStore, sender Sender, cfg Config, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	slotCount := cfg.SlotCount
	if slotCount <= 0 {
		slotCount = defaultSlotCount
	}
	return &Scheduler{
		store:       store,
		sender:      sender,
		logger:      log,
		maxAttempts: maxAttempts,
		slotCount:   slotCount,
		now:         time.Now,
		pairs:       make(map[string]*pairLock),
	}
}

// Schedule sends invitations for every shortlist entry. Failures are
// recorded per candidate; the returned error is reserved for aborts such as
// context cancellation.
func (s *Scheduler) Schedule(ctx context.Context, entries []model.ShortlistEntry) (*Report, error) {
	report := &Report{Outcomes: make([]Outcome, 0, len(entries))}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := s.scheduleOne(ctx, entry.JobID, entry.CandidateID)
		report.Outcomes = append(report.Outcomes, outcome)

		switch {
		case outcome.Skipped:
			report.Skipped++
		case outcome.Status == model.InviteSent:
			report.Sent++
		case outcome.Status == model.InviteFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	s.logger.Info("scheduling run finished",
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func (s *Scheduler) scheduleOne(ctx context.Context, jobID, candidateID string) Outcome {
	outcome := Outcome{JobID: jobID, CandidateID: candidateID}

	release := s.lockPair(jobID, candidateID)
	defer release()

	invite, err := s.ensureInvite(ctx, jobID, candidateID)
	if err != nil {
		outcome.Status = model.InviteFailed
		outcome.Error = err.Error()
		return outcome
	}

	if invite.Status.Terminal() {
		// Sent is the idempotent success case. Failed and cancelled
		// invites are not retried either: re-engaging a candidate is an
		// explicit human decision, not a side effect of a re-run.
		outcome.Status = invite.Status
		outcome.Attempts = invite.AttemptCount
		outcome.Skipped = true
		s.logger.Debug("invite already settled",
			zap.String("job_id", jobID),
			zap.String("candidate_id", candidateID),
			zap.String("status", string(invite.Status)),
		)
		return outcome
	}

	candidate, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return s.fail(ctx, invite, outcome, fmt.Errorf("load candidate: %w", err))
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return s.fail(ctx, invite, outcome, fmt.Errorf("load job: %w", err))
	}

	subject, body := s.composeInvitation(candidate, job)

	attempts := invite.AttemptCount
	for attempts < s.maxAttempts {
		if err := ctx.Err(); err != nil {
			outcome.Status = invite.Status
			outcome.Attempts = attempts
			outcome.Error = err.Error()
			return outcome
		}

		attempts++
		sendErr := s.sender.Send(ctx, candidate.Email, subject, body)

		errText := ""
		if sendErr != nil {
			errText = sendErr.Error()
		}
		if err := s.store.UpdateInviteAttempt(ctx, invite.ID, attempts, s.now().UTC(), errText); err != nil {
			s.logger.Warn("recording delivery attempt failed",
				zap.String("job_id", jobID),
				zap.String("candidate_id", candidateID),
				zap.Error(err),
			)
		}

		if sendErr == nil {
			won, err := s.store.TransitionInvite(ctx, invite.ID, model.InvitePending, model.InviteSent, "")
			if err != nil {
				outcome.Status = model.InviteFailed
				outcome.Attempts = attempts
				outcome.Error = err.Error()
				return outcome
			}
			if !won {
				// Another actor settled the invite while we were
				// sending. The email went out at most twice only if
				// they also sent, which the pair lock prevents within
				// this process; across processes the CAS is the record
				// of truth.
				outcome.Status = model.InviteSent
				outcome.Attempts = attempts
				outcome.Error = "lost transition race"
				return outcome
			}
			outcome.Status = model.InviteSent
			outcome.Attempts = attempts
			s.logger.Info("invitation sent",
				zap.String("job_id", jobID),
				zap.String("candidate_id", candidateID),
				zap.Int("attempts", attempts),
			)
			return outcome
		}

		var delivery *DeliveryError
		if errors.As(sendErr, &delivery) && delivery.Permanent {
			invite.AttemptCount = attempts
			return s.fail(ctx, invite, outcome, sendErr)
		}

		s.logger.Warn("delivery attempt failed",
			zap.String("job_id", jobID),
			zap.String("candidate_id", candidateID),
			zap.Int("attempt", attempts),
			zap.Error(sendErr),
		)

		if attempts < s.maxAttempts {
			if err := waitFor(ctx, backoffDelay(attempts)); err != nil {
				outcome.Status = invite.Status
				outcome.Attempts = attempts
				outcome.Error = err.Error()
				return outcome
			}
		}
	}

	invite.AttemptCount = attempts
	return s.fail(ctx, invite, outcome, fmt.Errorf("delivery attempts exhausted after %d tries", attempts))
}

// ensureInvite finds or creates the invite row for a pair. A create that
// loses a race against another process falls back to reading the winner's
// row.
func (s *Scheduler) ensureInvite(ctx context.Context, jobID, candidateID string) (*model.InterviewInvite, error) {
	invite, err := s.store.GetInvite(ctx, jobID, candidateID)
	if err == nil {
		return invite, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	fresh := &model.InterviewInvite{
		JobID:       jobID,
		CandidateID: candidateID,
		Status:      model.InvitePending,
	}
	if err := s.store.CreateInvite(ctx, fresh); err != nil {
		existing, getErr := s.store.GetInvite(ctx, jobID, candidateID)
		if getErr != nil {
			return nil, fmt.Errorf("create invite: %w", err)
		}
		return existing, nil
	}
	return fresh, nil
}

func (s *Scheduler) fail(ctx context.Context, invite *model.InterviewInvite, outcome Outcome, cause error) Outcome {
	outcome.Status = model.InviteFailed
	outcome.Attempts = invite.AttemptCount
	outcome.Error = cause.Error()

	if _, err := s.store.TransitionInvite(ctx, invite.ID, model.InvitePending, model.InviteFailed, cause.Error()); err != nil {
		s.logger.Warn("marking invite failed",
			zap.String("job_id", invite.JobID),
			zap.String("candidate_id", invite.CandidateID),
			zap.Error(err),
		)
	}

	s.logger.Warn("invitation failed",
		zap.String("job_id", invite.JobID),
		zap.String("candidate_id", invite.CandidateID),
		zap.String("reason", cause.Error()),
	)
	return outcome
}

// Cancel withdraws a pending invite. Sent, failed and cancelled invites
// cannot be cancelled.
func (s *Scheduler) Cancel(ctx context.Context, jobID, candidateID string) error {
	release := s.lockPair(jobID, candidateID)
	defer release()

	invite, err := s.store.GetInvite(ctx, jobID, candidateID)
	if err != nil {
		return err
	}

	won, err := s.store.TransitionInvite(ctx, invite.ID, model.InvitePending, model.InviteCancelled, "cancelled by operator")
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("invite for candidate %s is %s and cannot be cancelled", candidateID, invite.Status)
	}

	s.logger.Info("invitation cancelled",
		zap.String("job_id", jobID),
		zap.String("candidate_id", candidateID),
	)
	return nil
}

// SendRejections emails candidates left off the shortlist. Rejections are
// best effort: no invite record, no retries, failures only logged and
// counted.
func (s *Scheduler) SendRejections(ctx context.Context, job *model.JobDescription, candidateIDs []string) (sent, failed int) {
	for _, id := range candidateIDs {
		if ctx.Err() != nil {
			return sent, failed
		}

		candidate, err := s.store.GetCandidate(ctx, id)
		if err != nil {
			failed++
			s.logger.Warn("loading rejected candidate failed", zap.String("candidate_id", id), zap.Error(err))
			continue
		}

		values := map[string]string{
			"candidate_name": candidate.Name,
			"job_title":      job.Title,
			"company":        job.Company,
		}
		subject := renderTemplate(rejectionSubject, values)
		body := renderTemplate(rejectionBody, values)

		if err := s.sender.Send(ctx, candidate.Email, subject, body); err != nil {
			failed++
			s.logger.Warn("rejection email failed", zap.String("candidate_id", id), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, failed
}

func (s *Scheduler) composeInvitation(candidate *model.Candidate, job *model.JobDescription) (subject, body string) {
	slots := ProposeSlots(s.now(), s.slotCount)
	values := map[string]string{
		"candidate_name": candidate.Name,
		"job_title":      job.Title,
		"company":        job.Company,
		"slots":          formatSlots(slots),
	}
	return renderTemplate(invitationSubject, values), renderTemplate(invitationBody, values)
}

// lockPair serializes work on one (job, candidate) pair. The returned
// release drops the map entry once the last holder is done, so the lock
// table does not grow with every pair ever scheduled.
func (s *Scheduler) lockPair(jobID, candidateID string) (release func()) {
	key := jobID + "\x00" + candidateID

	s.mu.Lock()
	lock, ok := s.pairs[key]
	if !ok {
		lock = &pairLock{}
		s.pairs[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.pairs, key)
		}
		s.mu.Unlock()
	}
}
