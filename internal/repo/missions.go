package repo

import (
	"context"
	"database/sql"
	"errors"

	"homecrew/internal/domain"
)

// ErrMissionTaken is returned when the conditional assignment loses the race
// to another worker.
var ErrMissionTaken = errors.New("mission already assigned")

const missionColumns = `id,home_id,conciergerie,tasks_json,start_at,end_at,employee_id,status,allowed_json,estimated_hours,updated_at`

func (r Repo) InsertMission(ctx context.Context, tx *sql.Tx, m domain.Mission) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO missions(`+missionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.HomeID, m.Conciergerie, toJSON(m.Tasks), m.Start, m.End,
		nullableStringPtr(m.EmployeeID), nullableStringPtr(m.Status), toJSON(m.AllowedEmployees),
		m.EstimatedHours, m.UpdatedAt)
	return err
}

func (r Repo) UpdateMission(ctx context.Context, tx *sql.Tx, m domain.Mission) error {
	res, err := tx.ExecContext(ctx, `UPDATE missions SET home_id=?, tasks_json=?, start_at=?, end_at=?, employee_id=?, status=?, allowed_json=?, estimated_hours=?, updated_at=? WHERE id=?`,
		m.HomeID, toJSON(m.Tasks), m.Start, m.End,
		nullableStringPtr(m.EmployeeID), nullableStringPtr(m.Status), toJSON(m.AllowedEmployees),
		m.EstimatedHours, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignEmployee sets the worker and accepted status only when no worker
// currently holds the mission. This conditional update is the sole
// mutual-exclusion point between racing accept attempts.
func (r Repo) AssignEmployee(ctx context.Context, tx *sql.Tx, missionID, employeeID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE missions SET employee_id=?, status=?, updated_at=? WHERE id=? AND employee_id IS NULL AND status IS NULL`,
		employeeID, domain.StatusAccepted, updatedAt, missionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMissionTaken
	}
	return nil
}

func (r Repo) UpdateMissionStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE missions SET status=?, updated_at=? WHERE id=?`,
		nullable(status), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAssignment returns the mission to the available pool.
func (r Repo) ClearAssignment(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE missions SET employee_id=NULL, status=NULL, updated_at=? WHERE id=?`,
		updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMission(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM missions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMission(scan func(dest ...any) error) (domain.Mission, error) {
	var m domain.Mission
	var tasks, allowed sql.NullString
	var employeeID, status sql.NullString
	err := scan(&m.ID, &m.HomeID, &m.Conciergerie, &tasks, &m.Start, &m.End,
		&employeeID, &status, &allowed, &m.EstimatedHours, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.Tasks = fromJSON(tasks)
	m.AllowedEmployees = fromJSON(allowed)
	if employeeID.Valid {
		m.EmployeeID = &employeeID.String
	}
	if status.Valid {
		m.Status = &status.String
	}
	return m, nil
}

func (r Repo) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id)
	return scanMission(row.Scan)
}

type MissionFilters struct {
	Conciergerie string
	EmployeeID   string
	HomeID       string
	Unassigned   bool
}

func (r Repo) ListMissions(ctx context.Context, f MissionFilters) ([]domain.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions`
	var clauses []string
	var args []any
	if f.Conciergerie != "" {
		clauses = append(clauses, "conciergerie=?")
		args = append(args, f.Conciergerie)
	}
	if f.EmployeeID != "" {
		clauses = append(clauses, "employee_id=?")
		args = append(args, f.EmployeeID)
	}
	if f.HomeID != "" {
		clauses = append(clauses, "home_id=?")
		args = append(args, f.HomeID)
	}
	if f.Unassigned {
		clauses = append(clauses, "employee_id IS NULL AND status IS NULL")
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY start_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
