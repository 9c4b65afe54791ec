package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"homecrew/internal/config"
	"homecrew/internal/db"
	"homecrew/internal/domain"
	"homecrew/internal/engine"
	"homecrew/internal/migrate"
	"homecrew/internal/repo"
)

type sentNotification struct {
	Kind    string
	Payload any
}

type recordingNotifier struct {
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, kind string, payload any) {
	n.sent = append(n.sent, sentNotification{Kind: kind, Payload: payload})
}

func (n *recordingNotifier) kinds() []string {
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func (n *recordingNotifier) has(kind string) bool {
	for _, s := range n.sent {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

type testEnv struct {
	Engine   engine.Engine
	Notifier *recordingNotifier
	Clock    *time.Time
	Ctx      context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	notifier := &recordingNotifier{}
	eng := engine.New(conn, config.Default(), notifier)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	env := &testEnv{Engine: eng, Notifier: notifier, Clock: &now, Ctx: context.Background()}
	env.Engine.Now = func() time.Time { return *env.Clock }
	return env
}

func (env *testEnv) advance(d time.Duration) {
	*env.Clock = env.Clock.Add(d)
}

// seed creates a conciergerie, a home, and an approved worker.
func (env *testEnv) seed(t *testing.T) (domain.Home, domain.Employee) {
	t.Helper()
	if _, err := env.Engine.RegisterConciergerie(env.Ctx, "acme", "ops@acme.test"); err != nil {
		t.Fatalf("register conciergerie: %v", err)
	}
	home, err := env.Engine.CreateHome(env.Ctx, "acme", engine.HomeOptions{
		Title:          "Villa Azur",
		Zone:           "south",
		CleaningHours:  2,
		GardeningHours: 1.5,
	})
	if err != nil {
		t.Fatalf("create home: %v", err)
	}
	emp := env.seedWorker(t, "worker@test.test")
	return home, emp
}

func (env *testEnv) seedWorker(t *testing.T, email string) domain.Employee {
	t.Helper()
	emp, _, err := env.Engine.RegisterEmployee(env.Ctx, engine.EmployeeRegistration{
		Name:  "Worker",
		Email: email,
	})
	if err != nil {
		t.Fatalf("register employee: %v", err)
	}
	emp, err = env.Engine.SetEmployeeApproval(env.Ctx, "acme", emp.ID, domain.ApprovalAccepted)
	if err != nil {
		t.Fatalf("approve employee: %v", err)
	}
	env.Notifier.sent = nil
	return emp
}

func (env *testEnv) createMission(t *testing.T, homeID, start, end string, tasks ...string) domain.Mission {
	t.Helper()
	m, err := env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID: homeID,
		Tasks:  tasks,
		Start:  start,
		End:    end,
		Actor:  "acme",
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return m
}

func TestMissionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning", "arrival")

	if m.StatusOf() != "" || m.Assigned() {
		t.Fatalf("new mission should be unassigned, got %q", m.StatusOf())
	}
	if m.EstimatedHours != 2.5 {
		t.Fatalf("estimated hours = %v, want 2.5 (2h cleaning + 0.5h arrival)", m.EstimatedHours)
	}

	m, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.StatusOf() != domain.StatusAccepted || *m.EmployeeID != emp.ID {
		t.Fatalf("after accept: status=%q employee=%v", m.StatusOf(), m.EmployeeID)
	}

	// Too early: the clock is before the mission start.
	if _, err := env.Engine.StartMission(env.Ctx, m.ID, emp.ID); !errors.Is(err, engine.ErrTooEarlyToStart) {
		t.Fatalf("expected ErrTooEarlyToStart, got %v", err)
	}

	env.advance(2 * time.Hour) // 10:00, past the start
	m, err = env.Engine.StartMission(env.Ctx, m.ID, emp.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.StatusOf() != domain.StatusStarted {
		t.Fatalf("after start: %q", m.StatusOf())
	}

	m, err = env.Engine.CompleteMission(env.Ctx, m.ID, emp.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if m.StatusOf() != domain.StatusCompleted {
		t.Fatalf("after complete: %q", m.StatusOf())
	}

	// Completed is terminal.
	if _, err := env.Engine.CancelMission(env.Ctx, m.ID, "acme"); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("cancel after complete: %v", err)
	}
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("accept after complete: %v", err)
	}
	if err := env.Engine.DeleteMission(env.Ctx, m.ID, "acme"); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("delete after complete: %v", err)
	}
}

func TestStartRequiresAssignedWorker(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	other := env.seedWorker(t, "other@test.test")
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	env.advance(2 * time.Hour)
	if _, err := env.Engine.StartMission(env.Ctx, m.ID, other.ID); !errors.Is(err, engine.ErrNotAssignedWorker) {
		t.Fatalf("expected ErrNotAssignedWorker, got %v", err)
	}
}

func TestAcceptRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	home, _ := env.seed(t)
	pending, _, err := env.Engine.RegisterEmployee(env.Ctx, engine.EmployeeRegistration{
		Name: "Pending", Email: "pending@test.test",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, pending.ID); !errors.Is(err, engine.ErrEmployeeNotApproved) {
		t.Fatalf("expected ErrEmployeeNotApproved, got %v", err)
	}
}

func TestAllowListRejection(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	m, err := env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID:           home.ID,
		Tasks:            []string{"cleaning"},
		Start:            "2026-09-01T09:00:00Z",
		End:              "2026-09-01T12:00:00Z",
		AllowedEmployees: []string{"someone-else"},
		Actor:            "acme",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// The worker is idle, so the rejection must be the allow-list and
	// nothing else.
	var na engine.NotAllowedError
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); !errors.As(err, &na) {
		t.Fatalf("expected NotAllowedError, got %v", err)
	}
	if na.EmployeeID != emp.ID {
		t.Fatalf("error names %q, want %q", na.EmployeeID, emp.ID)
	}
}

func TestQuotaRefusal(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	// Full-day mission worth 4 points on one day: per-day value caps at 3,
	// exactly the daily cap.
	big := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T18:00:00Z", "cleaning", "gardening")
	if _, err := env.Engine.AcceptMission(env.Ctx, big.ID, emp.ID); err != nil {
		t.Fatalf("accept big: %v", err)
	}
	// Any further work that day exceeds the cap.
	small := env.createMission(t, home.ID, "2026-09-01T14:00:00Z", "2026-09-01T15:00:00Z", "arrival")
	var qe engine.QuotaExceededError
	_, err := env.Engine.AcceptMission(env.Ctx, small.ID, emp.ID)
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Day.Format("2006-01-02") != "2026-09-01" {
		t.Fatalf("offending day = %v", qe.Day)
	}
	// The refused mission stays in the pool.
	got, err := env.Engine.Repo.GetMission(env.Ctx, small.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Assigned() || got.StatusOf() != "" {
		t.Fatalf("refused mission should stay unassigned, got %q", got.StatusOf())
	}
	// A different day is fine.
	tomorrow := env.createMission(t, home.ID, "2026-09-02T14:00:00Z", "2026-09-02T15:00:00Z", "arrival")
	if _, err := env.Engine.AcceptMission(env.Ctx, tomorrow.ID, emp.ID); err != nil {
		t.Fatalf("accept on a free day: %v", err)
	}
}

func TestEditClearsAssignment(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	env.Notifier.sent = nil
	newEnd := "2026-09-01T13:00:00Z"
	m, err := env.Engine.EditMission(env.Ctx, engine.MissionEditOptions{
		ID:    m.ID,
		End:   &newEnd,
		Actor: "acme",
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if m.Assigned() || m.StatusOf() != "" {
		t.Fatalf("edit should unassign, got status=%q", m.StatusOf())
	}
	if !env.Notifier.has("mission.removed") {
		t.Fatalf("worker not told about removal; sent %v", env.Notifier.kinds())
	}
}

func TestEditRefusedOnceStarted(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	env.advance(2 * time.Hour)
	if _, err := env.Engine.StartMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	newEnd := "2026-09-01T13:00:00Z"
	_, err := env.Engine.EditMission(env.Ctx, engine.MissionEditOptions{ID: m.ID, End: &newEnd, Actor: "acme"})
	if !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelReturnsToPool(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)

	// Cancel by the worker.
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	m, err := env.Engine.CancelMission(env.Ctx, m.ID, emp.ID)
	if err != nil {
		t.Fatalf("cancel by worker: %v", err)
	}
	if m.Assigned() || m.StatusOf() != "" {
		t.Fatalf("cancel should unassign, got %q", m.StatusOf())
	}

	// The pool mission can be taken again.
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("re-accept: %v", err)
	}
	// Cancel by the owning conciergerie.
	if _, err := env.Engine.CancelMission(env.Ctx, m.ID, "acme"); err != nil {
		t.Fatalf("cancel by conciergerie: %v", err)
	}
	// A stranger cannot cancel.
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept again: %v", err)
	}
	if _, err := env.Engine.CancelMission(env.Ctx, m.ID, "not-involved"); !errors.Is(err, engine.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	// Cancelling an unassigned mission is not a transition.
	pool := env.createMission(t, home.ID, "2026-09-02T09:00:00Z", "2026-09-02T12:00:00Z", "cleaning")
	if _, err := env.Engine.CancelMission(env.Ctx, pool.ID, "acme"); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDeleteNotifiesAssignedWorker(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	env.Notifier.sent = nil
	if err := env.Engine.DeleteMission(env.Ctx, m.ID, "acme"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !env.Notifier.has("mission.removed") {
		t.Fatalf("worker not told about deletion; sent %v", env.Notifier.kinds())
	}
	if _, err := env.Engine.Repo.GetMission(env.Ctx, m.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("mission should be gone, got %v", err)
	}
}

func TestLateCompletionAlertsConciergerie(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	env.advance(2 * time.Hour)
	if _, err := env.Engine.StartMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	env.advance(5 * time.Hour) // 15:00, past the 12:00 end
	env.Notifier.sent = nil
	if _, err := env.Engine.CompleteMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !env.Notifier.has("mission.late") {
		t.Fatalf("no late alert; sent %v", env.Notifier.kinds())
	}
}

func TestAcceptRace(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	other := env.seedWorker(t, "second@test.test")
	m := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, emp.ID); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := env.Engine.AcceptMission(env.Ctx, m.ID, other.ID); !errors.Is(err, repo.ErrMissionTaken) {
		t.Fatalf("expected ErrMissionTaken, got %v", err)
	}
}

func TestCreateMissionValidation(t *testing.T) {
	env := newTestEnv(t)
	home, _ := env.seed(t)

	// Unknown task kind.
	_, err := env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID: home.ID, Tasks: []string{"plumbing"},
		Start: "2026-09-01T09:00:00Z", End: "2026-09-01T12:00:00Z", Actor: "acme",
	})
	if err == nil {
		t.Fatal("unknown task accepted")
	}
	// End before start.
	_, err = env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID: home.ID, Tasks: []string{"cleaning"},
		Start: "2026-09-01T12:00:00Z", End: "2026-09-01T09:00:00Z", Actor: "acme",
	})
	if err == nil {
		t.Fatal("inverted span accepted")
	}
	// Shorter than the configured minimum span.
	_, err = env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID: home.ID, Tasks: []string{"cleaning"},
		Start: "2026-09-01T09:00:00Z", End: "2026-09-01T09:30:00Z", Actor: "acme",
	})
	if err == nil {
		t.Fatal("sub-minimum span accepted")
	}
	// A stranger cannot post on this home.
	_, err = env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID: home.ID, Tasks: []string{"cleaning"},
		Start: "2026-09-01T09:00:00Z", End: "2026-09-01T12:00:00Z", Actor: "rival",
	})
	if !errors.Is(err, engine.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestHomeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	home, _ := env.seed(t)

	// Duplicate title for the same conciergerie.
	_, err := env.Engine.CreateHome(env.Ctx, "acme", engine.HomeOptions{Title: "villa azur"})
	if !errors.Is(err, engine.ErrHomeTitleTaken) {
		t.Fatalf("expected ErrHomeTitleTaken, got %v", err)
	}
	// Same title under another conciergerie is fine.
	if _, err := env.Engine.RegisterConciergerie(env.Ctx, "rival", "ops@rival.test"); err != nil {
		t.Fatalf("register rival: %v", err)
	}
	if _, err := env.Engine.CreateHome(env.Ctx, "rival", engine.HomeOptions{Title: "Villa Azur"}); err != nil {
		t.Fatalf("cross-conciergerie title: %v", err)
	}
	// Delete refused while missions reference the home.
	env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	if err := env.Engine.DeleteHome(env.Ctx, "acme", home.ID); !errors.Is(err, engine.ErrHomeInUse) {
		t.Fatalf("expected ErrHomeInUse, got %v", err)
	}
}

func TestEmployeeRegistration(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	emp, key, err := env.Engine.RegisterEmployee(env.Ctx, engine.EmployeeRegistration{
		Name:                  "New Worker",
		Email:                 "new@test.test",
		PreferredConciergerie: "acme",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if key == "" {
		t.Fatal("no device key issued")
	}
	if emp.Approval != domain.ApprovalPending {
		t.Fatalf("approval = %q, want pending", emp.Approval)
	}
	if !env.Notifier.has("verification") {
		t.Fatalf("no verification mail; sent %v", env.Notifier.kinds())
	}
	if !env.Notifier.has("employee.registered") {
		t.Fatalf("preferred conciergerie not told; sent %v", env.Notifier.kinds())
	}

	// Duplicate email refused.
	if _, _, err := env.Engine.RegisterEmployee(env.Ctx, engine.EmployeeRegistration{
		Name: "Dup", Email: "new@test.test",
	}); !errors.Is(err, engine.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// Verification round-trip.
	stored, err := env.Engine.Repo.GetEmployee(env.Ctx, emp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := env.Engine.VerifyEmployee(env.Ctx, emp.ID, "wrong"); !errors.Is(err, engine.ErrBadVerificationCode) {
		t.Fatalf("expected ErrBadVerificationCode, got %v", err)
	}
	verified, err := env.Engine.VerifyEmployee(env.Ctx, emp.ID, stored.VerificationCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatal("not marked verified")
	}

	// The device key authenticates via its hash.
	keys, err := env.Engine.Repo.ListAPIKeys(env.Ctx, emp.ID)
	if err != nil || len(keys) != 1 {
		t.Fatalf("device keys: %v (%d)", err, len(keys))
	}
	byHash, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(key))
	if err != nil || byHash.ActorID != emp.ID {
		t.Fatalf("lookup by hash: %v", err)
	}
}

func TestAvailableMissionsHonoursAllowList(t *testing.T) {
	env := newTestEnv(t)
	home, emp := env.seed(t)
	open := env.createMission(t, home.ID, "2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z", "cleaning")
	restricted, err := env.Engine.CreateMission(env.Ctx, engine.MissionCreateOptions{
		HomeID:           home.ID,
		Tasks:            []string{"gardening"},
		Start:            "2026-09-02T09:00:00Z",
		End:              "2026-09-02T12:00:00Z",
		AllowedEmployees: []string{"someone-else"},
		Actor:            "acme",
	})
	if err != nil {
		t.Fatalf("create restricted: %v", err)
	}
	visible, err := env.Engine.AvailableMissions(env.Ctx, emp.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != open.ID {
		t.Fatalf("visible = %v, want only %s (not %s)", visible, open.ID, restricted.ID)
	}
}
