package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/model"
	"github.com/talentsift/talentsift/internal/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	candidates map[string]*model.Candidate
	jobs       map[string]*model.JobDescription
	invites    map[string]*model.InterviewInvite
	nextID     uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candidates: map[string]*model.Candidate{},
		jobs:       map[string]*model.JobDescription{},
		invites:    map[string]*model.InterviewInvite{},
	}
}

func pairKey(jobID, candidateID string) string { return jobID + "/" + candidateID }

func (f *fakeStore) GetCandidate(_ context.Context, id string) (*model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) GetJob(_ context.Context, id string) (*model.JobDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, storage.ErrNotFound)
	}
	return j, nil
}

func (f *fakeStore) GetInvite(_ context.Context, jobID, candidateID string) (*model.InterviewInvite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invite, ok := f.invites[pairKey(jobID, candidateID)]
	if !ok {
		return nil, fmt.Errorf("invite: %w", storage.ErrNotFound)
	}
	copied := *invite
	return &copied, nil
}

func (f *fakeStore) CreateInvite(_ context.Context, invite *model.InterviewInvite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(invite.JobID, invite.CandidateID)
	if _, ok := f.invites[key]; ok {
		return errors.New("UNIQUE constraint failed")
	}
	f.nextID++
	invite.ID = f.nextID
	stored := *invite
	f.invites[key] = &stored
	return nil
}

func (f *fakeStore) UpdateInviteAttempt(_ context.Context, id uint, attempts int, at time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, invite := range f.invites {
		if invite.ID == id {
			invite.AttemptCount = attempts
			invite.LastAttemptAt = &at
			invite.LastError = lastError
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) TransitionInvite(_ context.Context, id uint, from, to model.InviteStatus, lastError string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, invite := range f.invites {
		if invite.ID == id {
			if invite.Status != from {
				return false, nil
			}
			invite.Status = to
			invite.LastError = lastError
			return true, nil
		}
	}
	return false, storage.ErrNotFound
}

func (f *fakeStore) invite(jobID, candidateID string) *model.InterviewInvite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invites[pairKey(jobID, candidateID)]
}

type fakeSender struct {
	mu      sync.Mutex
	results []error
	sent    []string
	bodies  []string
}

func (f *fakeSender) Send(_ context.Context, to, _, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return err
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestScheduler(t *testing.T, store *fakeStore, sender Sender) *Scheduler {
	t.Helper()

	original := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = original })

	store.candidates["c1"] = &model.Candidate{ID: "c1", Name: "Jane Doe", Email: "jane@example.com"}
	store.candidates["c2"] = &model.Candidate{ID: "c2", Name: "John Smith", Email: "john@example.com"}
	store.jobs["j1"] = &model.JobDescription{ID: "j1", Title: "Backend Engineer", Company: "Acme"}

	return New(store, sender, Config{MaxAttempts: 3}, zap.NewNop())
}

func entries(candidates ...string) []model.ShortlistEntry {
	out := make([]model.ShortlistEntry, 0, len(candidates))
	for _, id := range candidates {
		out = append(out, model.ShortlistEntry{JobID: "j1", CandidateID: id})
	}
	return out
}

func transient() error { return &DeliveryError{Permanent: false, Err: errors.New("connection reset")} }
func permanent() error { return &DeliveryError{Permanent: true, Err: errors.New("550 no such user")} }

func TestScheduleRetriesTransientThenSends(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{results: []error{transient(), transient(), nil}}
	s := newTestScheduler(t, store, sender)

	report, err := s.Schedule(context.Background(), entries("c1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Sent != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, expected one sent", report)
	}
	if sender.calls() != 3 {
		t.Fatalf("expected 3 delivery attempts, got %d", sender.calls())
	}

	invite := store.invite("j1", "c1")
	if invite.Status != model.InviteSent {
		t.Fatalf("status = %s, expected sent", invite.Status)
	}
	if invite.AttemptCount != 3 {
		t.Fatalf("attempt_count = %d, expected 3", invite.AttemptCount)
	}
}

func TestScheduleIdempotentForSentInvite(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	s := newTestScheduler(t, store, sender)

	if _, err := s.Schedule(context.Background(), entries("c1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := s.Schedule(context.Background(), entries("c1"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if sender.calls() != 1 {
		t.Fatalf("re-running must not send again, got %d calls", sender.calls())
	}
	if report.Skipped != 1 || report.Sent != 0 {
		t.Fatalf("report = %+v, expected one skipped", report)
	}
}

func TestSchedulePermanentFailureDoesNotRetry(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{results: []error{permanent()}}
	s := newTestScheduler(t, store, sender)

	report, err := s.Schedule(context.Background(), entries("c1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.calls() != 1 {
		t.Fatalf("permanent failures must not retry, got %d calls", sender.calls())
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v, expected one failed", report)
	}
	if got := store.invite("j1", "c1").Status; got != model.InviteFailed {
		t.Fatalf("status = %s, expected failed", got)
	}
}

func TestScheduleExhaustsTransientRetries(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{results: []error{transient(), transient(), transient()}}
	s := newTestScheduler(t, store, sender)

	report, err := s.Schedule(context.Background(), entries("c1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.calls() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", sender.calls())
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v, expected one failed", report)
	}

	invite := store.invite("j1", "c1")
	if invite.Status != model.InviteFailed || invite.AttemptCount != 3 {
		t.Fatalf("invite = %+v, expected failed after 3 attempts", invite)
	}
}

func TestScheduleFailedInviteNotResent(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{results: []error{permanent()}}
	s := newTestScheduler(t, store, sender)

	if _, err := s.Schedule(context.Background(), entries("c1")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := s.Schedule(context.Background(), entries("c1"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if sender.calls() != 1 {
		t.Fatalf("failed invites must not be re-sent, got %d calls", sender.calls())
	}
	if report.Skipped != 1 {
		t.Fatalf("report = %+v, expected one skipped", report)
	}
}

func TestScheduleBatchIndependence(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{results: []error{permanent(), nil}}
	s := newTestScheduler(t, store, sender)

	report, err := s.Schedule(context.Background(), entries("c1", "c2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v, expected one sent and one failed", report)
	}
	if got := store.invite("j1", "c2").Status; got != model.InviteSent {
		t.Fatalf("second candidate status = %s, expected sent", got)
	}
}

func TestPairLocksReleasedAfterUse(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	s := newTestScheduler(t, store, sender)

	if _, err := s.Schedule(context.Background(), entries("c1", "c2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Cancel(context.Background(), "j1", "c1"); err == nil {
		t.Fatalf("cancelling a sent invite must fail")
	}

	s.mu.Lock()
	remaining := len(s.pairs)
	s.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("lock table holds %d entries after the run, expected none", remaining)
	}
}

func TestScheduleInvitationBodyHasSlots(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	s := newTestScheduler(t, store, sender)

	if _, err := s.Schedule(context.Background(), entries("c1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := sender.bodies[0]
	if !strings.Contains(body, "Jane Doe") || !strings.Contains(body, "Backend Engineer") {
		t.Fatalf("body is missing candidate or job details:\n%s", body)
	}
	if !strings.Contains(body, "10:00") || !strings.Contains(body, "14:00") {
		t.Fatalf("body is missing proposed slots:\n%s", body)
	}
	if strings.Contains(body, "{") {
		t.Fatalf("body has unresolved placeholders:\n%s", body)
	}
}

func TestCancel(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	s := newTestScheduler(t, store, sender)

	pending := &model.InterviewInvite{JobID: "j1", CandidateID: "c1", Status: model.InvitePending}
	if err := store.CreateInvite(context.Background(), pending); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	if err := s.Cancel(context.Background(), "j1", "c1"); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if got := store.invite("j1", "c1").Status; got != model.InviteCancelled {
		t.Fatalf("status = %s, expected cancelled", got)
	}

	// A cancelled invite is terminal: scheduling skips it.
	report, err := s.Schedule(context.Background(), entries("c1"))
	if err != nil {
		t.Fatalf("schedule after cancel: %v", err)
	}
	if sender.calls() != 0 || report.Skipped != 1 {
		t.Fatalf("cancelled invite was processed: calls=%d report=%+v", sender.calls(), report)
	}

	if err := s.Cancel(context.Background(), "j1", "c1"); err == nil {
		t.Fatalf("cancelling a settled invite must fail")
	}
}

func TestSendRejections(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	s := newTestScheduler(t, store, sender)

	sent, failed := s.SendRejections(context.Background(), store.jobs["j1"], []string{"c1", "missing"})
	if sent != 1 || failed != 1 {
		t.Fatalf("sent=%d failed=%d, expected 1/1", sent, failed)
	}
	if !strings.Contains(sender.bodies[0], "not to move forward") {
		t.Fatalf("unexpected rejection body:\n%s", sender.bodies[0])
	}
}
