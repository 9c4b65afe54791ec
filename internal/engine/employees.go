package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"homecrew/internal/domain"
	"homecrew/internal/events"
	"homecrew/internal/notify"
	"homecrew/internal/quota"
	"homecrew/internal/repo"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrBadVerificationCode = errors.New("verification code does not match")
)

// EmployeeRegistration is the self-service signup input.
type EmployeeRegistration struct {
	Name                  string
	Email                 string
	Phone                 string
	PreferredConciergerie string
	DeviceName            string
}

// RegisterEmployee creates a pending worker account, issues the first
// device key, and kicks off email verification. The raw device key is
// returned exactly once; only its hash is stored.
func (e Engine) RegisterEmployee(ctx context.Context, reg EmployeeRegistration) (domain.Employee, string, error) {
	if reg.Name == "" || reg.Email == "" {
		return domain.Employee{}, "", errors.New("name and email are required")
	}
	if _, err := e.Repo.GetEmployeeByEmail(ctx, reg.Email); err == nil {
		return domain.Employee{}, "", ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Employee{}, "", err
	}
	now := e.now().UTC().Format(time.RFC3339)
	emp := domain.Employee{
		ID:                    uuid.New().String(),
		Name:                  reg.Name,
		Email:                 strings.ToLower(strings.TrimSpace(reg.Email)),
		Phone:                 reg.Phone,
		PreferredConciergerie: reg.PreferredConciergerie,
		Approval:              domain.ApprovalPending,
		VerificationCode:      newVerificationCode(),
		NotifyByEmail:         true,
		CreatedAt:             now,
	}
	rawKey := uuid.New().String()
	key := domain.APIKey{
		ID:        uuid.New().String(),
		ActorID:   emp.ID,
		Name:      reg.DeviceName,
		KeyHash:   repo.HashAPIKey(rawKey),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Employee{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEmployee(ctx, tx, emp); err != nil {
		return domain.Employee{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.Employee{}, "", err
	}
	if err := e.Events.Append(ctx, tx, "employee.registered", "employee", emp.ID, emp.ID, events.EventPayload{
		"email": emp.Email,
	}); err != nil {
		return domain.Employee{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.Employee{}, "", err
	}
	e.notify(ctx, notify.KindVerification, notify.VerificationPayload{
		Email: emp.Email,
		Name:  emp.Name,
		Code:  emp.VerificationCode,
	})
	if emp.PreferredConciergerie != "" {
		if c, err := e.Repo.GetConciergerie(ctx, emp.PreferredConciergerie); err == nil {
			e.notify(ctx, notify.KindEmployeeRegistered, notify.EmployeeRegisteredPayload{
				ConciergerieEmail: c.Email,
				EmployeeName:      emp.Name,
				EmployeeEmail:     emp.Email,
			})
		}
	}
	return emp, rawKey, nil
}

// VerifyEmployee confirms ownership of the registration email.
func (e Engine) VerifyEmployee(ctx context.Context, employeeID, code string) (domain.Employee, error) {
	emp, err := e.Repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return emp, err
	}
	if emp.EmailVerified {
		return emp, nil
	}
	if code == "" || !strings.EqualFold(code, emp.VerificationCode) {
		return emp, ErrBadVerificationCode
	}
	emp.EmailVerified = true
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return emp, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEmployee(ctx, tx, emp); err != nil {
		return emp, err
	}
	if err := e.Events.Append(ctx, tx, "employee.verified", "employee", emp.ID, emp.ID, nil); err != nil {
		return emp, err
	}
	if err := tx.Commit(); err != nil {
		return emp, err
	}
	return emp, nil
}

// SetEmployeeApproval moves a worker between pending, accepted and
// rejected. Only accepted workers may hold missions; the worker is told
// either way.
func (e Engine) SetEmployeeApproval(ctx context.Context, actor, employeeID, approval string) (domain.Employee, error) {
	switch approval {
	case domain.ApprovalPending, domain.ApprovalAccepted, domain.ApprovalRejected:
	default:
		return domain.Employee{}, fmt.Errorf("unknown approval status %s", approval)
	}
	emp, err := e.Repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return emp, err
	}
	if emp.Approval == approval {
		return emp, nil
	}
	emp.Approval = approval
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return emp, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEmployee(ctx, tx, emp); err != nil {
		return emp, err
	}
	if err := e.Events.Append(ctx, tx, "employee.approval", "employee", emp.ID, actor, events.EventPayload{
		"approval": approval,
	}); err != nil {
		return emp, err
	}
	if err := tx.Commit(); err != nil {
		return emp, err
	}
	e.notify(ctx, notify.KindEmployeeApproved, notify.EmployeeApprovedPayload{
		Email:    emp.Email,
		Name:     emp.Name,
		Approval: approval,
	})
	return emp, nil
}

// AddEmployeeDevice issues an extra device key for a worker; returns the
// raw key once.
func (e Engine) AddEmployeeDevice(ctx context.Context, employeeID, deviceName string) (domain.APIKey, string, error) {
	emp, err := e.Repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	rawKey := uuid.New().String()
	key := domain.APIKey{
		ID:        uuid.New().String(),
		ActorID:   emp.ID,
		Name:      deviceName,
		KeyHash:   repo.HashAPIKey(rawKey),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, rawKey, nil
}

// EmployeeLoad reports the worker's held points for one day, for the quota
// screen in the worker app.
func (e Engine) EmployeeLoad(ctx context.Context, employeeID string, day time.Time) (float64, error) {
	held, err := e.Repo.ListMissions(ctx, repo.MissionFilters{EmployeeID: employeeID})
	if err != nil {
		return 0, err
	}
	return quota.EmployeeLoadForDay(employeeID, day, held, "", e.now()), nil
}

func newVerificationCode() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:3])
}
