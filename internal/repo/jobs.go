package repo

import (
	"context"

	"homecrew/internal/domain"
)

func (r Repo) InsertNotificationJob(ctx context.Context, j domain.NotificationJob) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notification_jobs(id,kind,payload_json,created_at,last_attempt,attempts) VALUES (?,?,?,?,?,?)`,
		j.ID, j.Kind, j.PayloadJSON, j.CreatedAt, j.LastAttempt, j.Attempts)
	return err
}

// TouchNotificationJob records an attempt before its outcome is known,
// preventing hot-retry storms on synchronous failure.
func (r Repo) TouchNotificationJob(ctx context.Context, id, lastAttempt string, attempts int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notification_jobs SET last_attempt=?, attempts=? WHERE id=?`,
		lastAttempt, attempts, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNotificationJob(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM notification_jobs WHERE id=?`, id)
	return err
}

func (r Repo) ListNotificationJobs(ctx context.Context) ([]domain.NotificationJob, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,kind,payload_json,created_at,last_attempt,attempts FROM notification_jobs ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NotificationJob
	for rows.Next() {
		var j domain.NotificationJob
		if err := rows.Scan(&j.ID, &j.Kind, &j.PayloadJSON, &j.CreatedAt, &j.LastAttempt, &j.Attempts); err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// DueNotificationJobs returns jobs whose last attempt is at or before the
// cutoff and which have attempts left.
func (r Repo) DueNotificationJobs(ctx context.Context, cutoff string, maxAttempts int) ([]domain.NotificationJob, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,kind,payload_json,created_at,last_attempt,attempts FROM notification_jobs
WHERE last_attempt<=? AND attempts<? ORDER BY last_attempt ASC, id ASC`, cutoff, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NotificationJob
	for rows.Next() {
		var j domain.NotificationJob
		if err := rows.Scan(&j.ID, &j.Kind, &j.PayloadJSON, &j.CreatedAt, &j.LastAttempt, &j.Attempts); err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}
