package engine

import (
	"errors"
	"fmt"
	"time"
)

// Business-rule failures are synchronous typed results, never panics and
// never retried. The HTTP layer maps each onto a distinct error code so the
// UI can explain why an action was refused.
var (
	ErrNotOwner            = errors.New("actor does not own this record")
	ErrInvalidTransition   = errors.New("transition not allowed from current status")
	ErrDuplicateMission    = errors.New("an identical mission already exists")
	ErrNotAssignedWorker   = errors.New("mission is held by a different worker")
	ErrTooEarlyToStart     = errors.New("mission start time has not been reached")
	ErrEmployeeNotApproved = errors.New("worker registration is not approved")
	ErrHomeTitleTaken      = errors.New("home title already in use by this conciergerie")
	ErrHomeInUse           = errors.New("home still has missions attached")
)

// NotAllowedError rejects an accept attempt by a worker outside the
// mission's allow-list. Distinct from QuotaExceededError so callers can
// tell authorization from workload.
type NotAllowedError struct {
	EmployeeID string
}

func (e NotAllowedError) Error() string {
	return fmt.Sprintf("worker %s is not on the mission allow-list", e.EmployeeID)
}

// QuotaExceededError carries the first offending day and the point totals
// involved, enough structure for a caller to explain the refusal.
type QuotaExceededError struct {
	Day    time.Time
	Load   float64
	PerDay float64
	Cap    float64
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded on %s: %.2f held + %.2f mission > %.2f cap",
		e.Day.Format("2006-01-02"), e.Load, e.PerDay, e.Cap)
}
