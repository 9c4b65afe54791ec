package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"homecrew/internal/config"
	"homecrew/internal/domain"
	"homecrew/internal/events"
	"homecrew/internal/notify"
	"homecrew/internal/quota"
	"homecrew/internal/repo"
)

// Notifier hands a notification to the delivery pipeline. Implementations
// own retries; the engine fires and forgets once a transition is committed.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload any)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Notifier Notifier
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, n Notifier) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Notifier: n,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) notify(ctx context.Context, kind string, payload any) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.Notify(ctx, kind, payload)
}

// MissionCreateOptions are parameters for posting a mission.
type MissionCreateOptions struct {
	HomeID           string
	Tasks            []string
	Start            string
	End              string
	AllowedEmployees []string
	Actor            string
}

func (e Engine) CreateMission(ctx context.Context, opts MissionCreateOptions) (domain.Mission, error) {
	if e.Config == nil {
		return domain.Mission{}, errors.New("config not loaded")
	}
	if err := validateTasks(opts.Tasks); err != nil {
		return domain.Mission{}, err
	}
	if _, _, err := e.validateSpan(opts.Start, opts.End); err != nil {
		return domain.Mission{}, err
	}
	home, err := e.Repo.GetHome(ctx, opts.HomeID)
	if err != nil {
		return domain.Mission{}, err
	}
	if home.Conciergerie != opts.Actor {
		return domain.Mission{}, ErrNotOwner
	}
	m := domain.Mission{
		ID:               uuid.New().String(),
		HomeID:           opts.HomeID,
		Conciergerie:     opts.Actor,
		Tasks:            normalizeTasks(opts.Tasks),
		Start:            opts.Start,
		End:              opts.End,
		AllowedEmployees: opts.AllowedEmployees,
		EstimatedHours:   domain.EstimatedHours(home, opts.Tasks),
		UpdatedAt:        e.now().UTC().Format(time.RFC3339),
	}
	existing, err := e.Repo.ListMissions(ctx, repo.MissionFilters{Conciergerie: opts.Actor})
	if err != nil {
		return domain.Mission{}, err
	}
	if DuplicateExists(m, existing, "") {
		return domain.Mission{}, ErrDuplicateMission
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMission(ctx, tx, m); err != nil {
		return domain.Mission{}, err
	}
	if err := e.Events.Append(ctx, tx, "mission.created", "mission", m.ID, opts.Actor, events.EventPayload{
		"home_id": m.HomeID, "tasks": m.Tasks,
	}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

// MissionEditOptions carry partial edits; nil pointers leave fields alone.
type MissionEditOptions struct {
	ID               string
	HomeID           *string
	Tasks            []string
	Start            *string
	End              *string
	AllowedEmployees *[]string
	Actor            string
}

// EditMission updates a mission that has not yet started. Editing an
// accepted mission clears its assignment: a conciergerie cannot change
// terms on a worker who already committed to the old ones.
func (e Engine) EditMission(ctx context.Context, opts MissionEditOptions) (domain.Mission, error) {
	if e.Config == nil {
		return domain.Mission{}, errors.New("config not loaded")
	}
	m, err := e.Repo.GetMission(ctx, opts.ID)
	if err != nil {
		return m, err
	}
	if m.Conciergerie != opts.Actor {
		return m, ErrNotOwner
	}
	switch m.StatusOf() {
	case domain.StatusStarted, domain.StatusCompleted:
		return m, ErrInvalidTransition
	}
	formerWorker := m.EmployeeID

	if opts.HomeID != nil {
		m.HomeID = *opts.HomeID
	}
	if opts.Tasks != nil {
		m.Tasks = normalizeTasks(opts.Tasks)
	}
	if opts.Start != nil {
		m.Start = *opts.Start
	}
	if opts.End != nil {
		m.End = *opts.End
	}
	if opts.AllowedEmployees != nil {
		m.AllowedEmployees = *opts.AllowedEmployees
	}
	if err := validateTasks(m.Tasks); err != nil {
		return m, err
	}
	if _, _, err := e.validateSpan(m.Start, m.End); err != nil {
		return m, err
	}
	home, err := e.Repo.GetHome(ctx, m.HomeID)
	if err != nil {
		return m, err
	}
	if home.Conciergerie != opts.Actor {
		return m, ErrNotOwner
	}
	m.EstimatedHours = domain.EstimatedHours(home, m.Tasks)
	existing, err := e.Repo.ListMissions(ctx, repo.MissionFilters{Conciergerie: opts.Actor})
	if err != nil {
		return m, err
	}
	if DuplicateExists(m, existing, m.ID) {
		return m, ErrDuplicateMission
	}
	// Any edit to an accepted mission forces it back to the pool.
	m.EmployeeID = nil
	m.Status = nil
	m.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMission(ctx, tx, m); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "mission.updated", "mission", m.ID, opts.Actor, events.EventPayload{
		"unassigned": formerWorker != nil,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	if formerWorker != nil {
		e.notifyWorkerRemoved(ctx, m, *formerWorker, notify.RemovedUpdated)
	}
	return m, nil
}

// AcceptMission assigns an unassigned mission to an approved worker,
// enforcing the allow-list and the daily point quota for every calendar day
// of the mission span. The final assignment is a conditional update so two
// racing workers cannot both win.
func (e Engine) AcceptMission(ctx context.Context, missionID, employeeID string) (domain.Mission, error) {
	if e.Config == nil {
		return domain.Mission{}, errors.New("config not loaded")
	}
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return m, err
	}
	emp, err := e.Repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return m, err
	}
	if emp.Approval != domain.ApprovalAccepted {
		return m, ErrEmployeeNotApproved
	}
	if m.StatusOf() == domain.StatusCompleted {
		return m, ErrInvalidTransition
	}
	if m.Assigned() {
		return m, repo.ErrMissionTaken
	}
	if len(m.AllowedEmployees) > 0 && !containsID(m.AllowedEmployees, employeeID) {
		return m, NotAllowedError{EmployeeID: employeeID}
	}
	if err := e.checkQuota(ctx, m, employeeID); err != nil {
		return m, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.AssignEmployee(ctx, tx, m.ID, employeeID, now); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "mission.accepted", "mission", m.ID, employeeID, events.EventPayload{
		"employee_id": employeeID,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	status := domain.StatusAccepted
	m.EmployeeID = &employeeID
	m.Status = &status
	m.UpdatedAt = now

	home, herr := e.Repo.GetHome(ctx, m.HomeID)
	if herr == nil {
		e.notify(ctx, notify.KindMissionAssigned, notify.MissionAssignedPayload{
			Email:     emp.Email,
			MissionID: m.ID,
			HomeTitle: home.Title,
			Start:     m.Start,
			End:       m.End,
		})
	}
	e.notifyConciergerieStatus(ctx, m, emp.Name, domain.StatusAccepted)
	return m, nil
}

// checkQuota rejects the accept when any day of the candidate span would
// push the worker past the daily cap. The scan and the later assignment
// are deliberately not one transaction; the conditional assignment is the
// only race guard.
func (e Engine) checkQuota(ctx context.Context, m domain.Mission, employeeID string) error {
	held, err := e.Repo.ListMissions(ctx, repo.MissionFilters{EmployeeID: employeeID})
	if err != nil {
		return err
	}
	cap := e.Config.Quota.DailyCap
	pts := quota.MissionPoints(m)
	now := e.now()
	for _, day := range quota.DaysOf(m) {
		load := quota.EmployeeLoadForDay(employeeID, day, held, m.ID, now)
		if load+pts.PerDay > cap+quota.Epsilon {
			return QuotaExceededError{Day: day, Load: load, PerDay: pts.PerDay, Cap: cap}
		}
	}
	return nil
}

// StartMission moves an accepted mission to started, only for the assigned
// worker and only once the clock has reached the mission start.
func (e Engine) StartMission(ctx context.Context, missionID, employeeID string) (domain.Mission, error) {
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return m, err
	}
	if m.StatusOf() != domain.StatusAccepted {
		return m, ErrInvalidTransition
	}
	if m.EmployeeID == nil || *m.EmployeeID != employeeID {
		return m, ErrNotAssignedWorker
	}
	start, err := time.Parse(time.RFC3339, m.Start)
	if err != nil {
		return m, fmt.Errorf("mission start timestamp: %w", err)
	}
	if e.now().Before(start) {
		return m, ErrTooEarlyToStart
	}
	return e.setStatus(ctx, m, employeeID, domain.StatusStarted)
}

// CompleteMission is terminal; the caller confirmed the home objectives
// beforehand. A completion past the mission end additionally alerts the
// conciergerie.
func (e Engine) CompleteMission(ctx context.Context, missionID, employeeID string) (domain.Mission, error) {
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return m, err
	}
	if m.StatusOf() != domain.StatusStarted {
		return m, ErrInvalidTransition
	}
	if m.EmployeeID == nil || *m.EmployeeID != employeeID {
		return m, ErrNotAssignedWorker
	}
	m, err = e.setStatus(ctx, m, employeeID, domain.StatusCompleted)
	if err != nil {
		return m, err
	}
	if end, perr := time.Parse(time.RFC3339, m.End); perr == nil && e.now().After(end) {
		e.notifyLate(ctx, m)
	}
	return m, nil
}

func (e Engine) setStatus(ctx context.Context, m domain.Mission, actorID, status string) (domain.Mission, error) {
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMissionStatus(ctx, tx, m.ID, status, now); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "mission."+status, "mission", m.ID, actorID, events.EventPayload{
		"from": m.StatusOf(), "to": status,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	m.Status = &status
	m.UpdatedAt = now
	workerName := ""
	if m.EmployeeID != nil {
		if emp, err := e.Repo.GetEmployee(ctx, *m.EmployeeID); err == nil {
			workerName = emp.Name
		}
	}
	e.notifyConciergerieStatus(ctx, m, workerName, status)
	return m, nil
}

// CancelMission returns an accepted or started mission to the available
// pool. Both the owning conciergerie and the assignment holder may cancel.
func (e Engine) CancelMission(ctx context.Context, missionID, actorID string) (domain.Mission, error) {
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return m, err
	}
	switch m.StatusOf() {
	case domain.StatusAccepted, domain.StatusStarted:
	default:
		return m, ErrInvalidTransition
	}
	holder := ""
	if m.EmployeeID != nil {
		holder = *m.EmployeeID
	}
	if actorID != m.Conciergerie && actorID != holder {
		return m, ErrNotOwner
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.ClearAssignment(ctx, tx, m.ID, now); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "mission.cancelled", "mission", m.ID, actorID, events.EventPayload{
		"employee_id": holder,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	m.EmployeeID = nil
	m.Status = nil
	m.UpdatedAt = now
	if holder != "" {
		e.notifyWorkerRemoved(ctx, m, holder, notify.RemovedCancelled)
	}
	return m, nil
}

// DeleteMission purges a non-completed mission. An assigned worker is told
// before the record disappears.
func (e Engine) DeleteMission(ctx context.Context, missionID, actorID string) error {
	m, err := e.Repo.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if m.Conciergerie != actorID {
		return ErrNotOwner
	}
	if m.StatusOf() == domain.StatusCompleted {
		return ErrInvalidTransition
	}
	if m.EmployeeID != nil {
		e.notifyWorkerRemoved(ctx, m, *m.EmployeeID, notify.RemovedDeleted)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteMission(ctx, tx, m.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "mission.deleted", "mission", m.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AvailableMissions lists unassigned missions visible to a worker,
// honouring allow-lists.
func (e Engine) AvailableMissions(ctx context.Context, employeeID string) ([]domain.Mission, error) {
	missions, err := e.Repo.ListMissions(ctx, repo.MissionFilters{Unassigned: true})
	if err != nil {
		return nil, err
	}
	var visible []domain.Mission
	for _, m := range missions {
		if len(m.AllowedEmployees) > 0 && !containsID(m.AllowedEmployees, employeeID) {
			continue
		}
		visible = append(visible, m)
	}
	return visible, nil
}

// --- notification helpers ---

func (e Engine) notifyWorkerRemoved(ctx context.Context, m domain.Mission, employeeID, reason string) {
	emp, err := e.Repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return
	}
	title := m.HomeID
	if home, err := e.Repo.GetHome(ctx, m.HomeID); err == nil {
		title = home.Title
	}
	e.notify(ctx, notify.KindMissionRemoved, notify.MissionRemovedPayload{
		Email:     emp.Email,
		MissionID: m.ID,
		HomeTitle: title,
		Reason:    reason,
	})
}

func (e Engine) notifyConciergerieStatus(ctx context.Context, m domain.Mission, workerName, status string) {
	c, err := e.Repo.GetConciergerie(ctx, m.Conciergerie)
	if err != nil {
		return
	}
	title := m.HomeID
	if home, err := e.Repo.GetHome(ctx, m.HomeID); err == nil {
		title = home.Title
	}
	e.notify(ctx, notify.KindMissionStatus, notify.MissionStatusPayload{
		ConciergerieEmail: c.Email,
		MissionID:         m.ID,
		HomeTitle:         title,
		EmployeeName:      workerName,
		Status:            status,
	})
}

func (e Engine) notifyLate(ctx context.Context, m domain.Mission) {
	c, err := e.Repo.GetConciergerie(ctx, m.Conciergerie)
	if err != nil {
		return
	}
	title := m.HomeID
	if home, err := e.Repo.GetHome(ctx, m.HomeID); err == nil {
		title = home.Title
	}
	workerName := ""
	if m.EmployeeID != nil {
		if emp, err := e.Repo.GetEmployee(ctx, *m.EmployeeID); err == nil {
			workerName = emp.Name
		}
	}
	e.notify(ctx, notify.KindMissionLate, notify.MissionLatePayload{
		ConciergerieEmail: c.Email,
		MissionID:         m.ID,
		HomeTitle:         title,
		EmployeeName:      workerName,
		End:               m.End,
		CompletedAt:       e.now().UTC().Format(time.RFC3339),
	})
}

// --- validation helpers ---

func validateTasks(tasks []string) error {
	if len(tasks) == 0 {
		return errors.New("at least one task is required")
	}
	seen := map[string]bool{}
	for _, t := range tasks {
		key := strings.ToLower(strings.TrimSpace(t))
		if !domain.KnownTask(key) {
			return fmt.Errorf("unknown task kind %s", t)
		}
		if seen[key] {
			return fmt.Errorf("duplicate task kind %s", t)
		}
		seen[key] = true
	}
	return nil
}

func (e Engine) validateSpan(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start timestamp: %w", err)
	}
	en, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end timestamp: %w", err)
	}
	if !en.After(s) {
		return s, en, errors.New("end must be after start")
	}
	if en.Sub(s) < e.Config.MinMissionSpan() {
		return s, en, fmt.Errorf("mission must span at least %s", e.Config.MinMissionSpan())
	}
	return s, en, nil
}

func normalizeTasks(tasks []string) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, strings.ToLower(strings.TrimSpace(t)))
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
