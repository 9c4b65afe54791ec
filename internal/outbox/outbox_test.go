package outbox_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"homecrew/internal/config"
	"homecrew/internal/db"
	"homecrew/internal/migrate"
	"homecrew/internal/notify"
	"homecrew/internal/outbox"
	"homecrew/internal/repo"
)

// flakySender fails every send until failures is spent, then succeeds.
type flakySender struct {
	failures int
	sent     []string
}

func (s *flakySender) send(kind string) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, kind)
	return nil
}

func (s *flakySender) SendVerification(ctx context.Context, p notify.VerificationPayload) error {
	return s.send(notify.KindVerification)
}
func (s *flakySender) SendEmployeeRegistered(ctx context.Context, p notify.EmployeeRegisteredPayload) error {
	return s.send(notify.KindEmployeeRegistered)
}
func (s *flakySender) SendEmployeeApproved(ctx context.Context, p notify.EmployeeApprovedPayload) error {
	return s.send(notify.KindEmployeeApproved)
}
func (s *flakySender) SendMissionStatus(ctx context.Context, p notify.MissionStatusPayload) error {
	return s.send(notify.KindMissionStatus)
}
func (s *flakySender) SendMissionLate(ctx context.Context, p notify.MissionLatePayload) error {
	return s.send(notify.KindMissionLate)
}
func (s *flakySender) SendMissionAssigned(ctx context.Context, p notify.MissionAssignedPayload) error {
	return s.send(notify.KindMissionAssigned)
}
func (s *flakySender) SendMissionUpdated(ctx context.Context, p notify.MissionUpdatedPayload) error {
	return s.send(notify.KindMissionUpdated)
}
func (s *flakySender) SendMissionRemoved(ctx context.Context, p notify.MissionRemovedPayload) error {
	return s.send(notify.KindMissionRemoved)
}

type queueEnv struct {
	Queue  *outbox.Queue
	Sender *flakySender
	Clock  *time.Time
	Repo   repo.Repo
	Ctx    context.Context
}

func newQueueEnv(t *testing.T, failures int) *queueEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	sender := &flakySender{failures: failures}
	q := outbox.New(r, sender, config.Default())
	q.Logger = log.New(io.Discard, "", 0)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	env := &queueEnv{Queue: q, Sender: sender, Clock: &now, Repo: r, Ctx: context.Background()}
	q.Now = func() time.Time { return *env.Clock }
	return env
}

func (env *queueEnv) advance(d time.Duration) {
	*env.Clock = env.Clock.Add(d)
}

func (env *queueEnv) jobCount(t *testing.T) int {
	t.Helper()
	jobs, err := env.Repo.ListNotificationJobs(env.Ctx)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	return len(jobs)
}

func TestNotifyDeliversInline(t *testing.T) {
	env := newQueueEnv(t, 0)
	env.Queue.Notify(env.Ctx, notify.KindVerification, notify.VerificationPayload{
		Email: "w@test.test", Code: "abc123",
	})
	if len(env.Sender.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(env.Sender.sent))
	}
	if env.jobCount(t) != 0 {
		t.Fatal("successful inline send should not enqueue")
	}
}

func TestFailedSendIsQueuedAndRetried(t *testing.T) {
	env := newQueueEnv(t, 2) // inline send fails, first retry fails
	env.Queue.Notify(env.Ctx, notify.KindMissionAssigned, notify.MissionAssignedPayload{
		Email: "w@test.test", MissionID: "m1",
	})
	if env.jobCount(t) != 1 {
		t.Fatalf("jobs = %d, want 1", env.jobCount(t))
	}

	// Not yet due: nothing happens before the retry interval elapses.
	delivered, dropped, err := env.Queue.RunOnce(env.Ctx)
	if err != nil || delivered != 0 || dropped != 0 {
		t.Fatalf("early scan: delivered=%d dropped=%d err=%v", delivered, dropped, err)
	}

	// Due, but the sender still fails: the job stays with one attempt
	// recorded.
	env.advance(env.Queue.RetryInterval)
	if _, _, err := env.Queue.RunOnce(env.Ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	jobs, _ := env.Repo.ListNotificationJobs(env.Ctx)
	if len(jobs) != 1 || jobs[0].Attempts != 1 {
		t.Fatalf("jobs=%v", jobs)
	}

	// The attempt reset the due timer; the job is not retried immediately.
	delivered, _, _ = env.Queue.RunOnce(env.Ctx)
	if delivered != 0 {
		t.Fatal("job retried before its interval")
	}

	env.advance(env.Queue.RetryInterval)
	delivered, _, err = env.Queue.RunOnce(env.Ctx)
	if err != nil || delivered != 1 {
		t.Fatalf("final scan: delivered=%d err=%v", delivered, err)
	}
	if env.jobCount(t) != 0 {
		t.Fatal("delivered job should be removed")
	}
	if len(env.Sender.sent) != 1 || env.Sender.sent[0] != notify.KindMissionAssigned {
		t.Fatalf("sent=%v", env.Sender.sent)
	}
}

func TestJobDroppedAfterMaxAttempts(t *testing.T) {
	env := newQueueEnv(t, 1<<30) // never succeeds
	env.Queue.Notify(env.Ctx, notify.KindMissionRemoved, notify.MissionRemovedPayload{
		Email: "w@test.test", MissionID: "m1", Reason: notify.RemovedDeleted,
	})
	if env.jobCount(t) != 1 {
		t.Fatalf("jobs = %d, want 1", env.jobCount(t))
	}
	totalDropped := 0
	for i := 0; i < env.Queue.MaxAttempts; i++ {
		env.advance(env.Queue.RetryInterval)
		_, dropped, err := env.Queue.RunOnce(env.Ctx)
		if err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
		totalDropped += dropped
		if i < env.Queue.MaxAttempts-1 {
			if env.jobCount(t) != 1 {
				t.Fatalf("job dropped early at attempt %d", i+1)
			}
			if dropped != 0 {
				t.Fatalf("dropped=%d at attempt %d", dropped, i+1)
			}
		}
	}
	// Attempt 20 failed: the job is gone, silently.
	if env.jobCount(t) != 0 {
		t.Fatal("job should be dropped after the final attempt")
	}
	if totalDropped != 1 {
		t.Fatalf("dropped = %d, want 1", totalDropped)
	}
	// Further scans find nothing.
	env.advance(env.Queue.RetryInterval)
	delivered, dropped, _ := env.Queue.RunOnce(env.Ctx)
	if delivered != 0 || dropped != 0 {
		t.Fatalf("ghost job: delivered=%d dropped=%d", delivered, dropped)
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	sender := &flakySender{}
	if err := notify.Dispatch(context.Background(), sender, "no-such-kind", "{}"); err == nil {
		t.Fatal("unknown kind should error")
	}
}
