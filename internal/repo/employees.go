package repo

import (
	"context"
	"database/sql"

	"homecrew/internal/domain"
)

const employeeColumns = `id,name,email,phone,preferred_conciergerie,approval,email_verified,verification_code,notify_by_email,created_at`

func (r Repo) InsertEmployee(ctx context.Context, tx *sql.Tx, e domain.Employee) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO employees(`+employeeColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, e.Email, nullable(e.Phone), nullable(e.PreferredConciergerie),
		e.Approval, boolInt(e.EmailVerified), nullable(e.VerificationCode), boolInt(e.NotifyByEmail), e.CreatedAt)
	return err
}

func (r Repo) UpdateEmployee(ctx context.Context, tx *sql.Tx, e domain.Employee) error {
	res, err := tx.ExecContext(ctx, `UPDATE employees SET name=?, email=?, phone=?, preferred_conciergerie=?, approval=?, email_verified=?, verification_code=?, notify_by_email=? WHERE id=?`,
		e.Name, e.Email, nullable(e.Phone), nullable(e.PreferredConciergerie),
		e.Approval, boolInt(e.EmailVerified), nullable(e.VerificationCode), boolInt(e.NotifyByEmail), e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEmployee(scan func(dest ...any) error) (domain.Employee, error) {
	var e domain.Employee
	var phone, preferred, code sql.NullString
	var verified, notify int
	err := scan(&e.ID, &e.Name, &e.Email, &phone, &preferred, &e.Approval, &verified, &code, &notify, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if phone.Valid {
		e.Phone = phone.String
	}
	if preferred.Valid {
		e.PreferredConciergerie = preferred.String
	}
	if code.Valid {
		e.VerificationCode = code.String
	}
	e.EmailVerified = verified != 0
	e.NotifyByEmail = notify != 0
	return e, nil
}

func (r Repo) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=?`, id)
	return scanEmployee(row.Scan)
}

func (r Repo) GetEmployeeByEmail(ctx context.Context, email string) (domain.Employee, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE email=? LIMIT 1`, email)
	return scanEmployee(row.Scan)
}

func (r Repo) ListEmployees(ctx context.Context, approval string) ([]domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	var args []any
	if approval != "" {
		query += ` WHERE approval=?`
		args = append(args, approval)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
