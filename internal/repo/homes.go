package repo

import (
	"context"
	"database/sql"
	"strings"

	"homecrew/internal/domain"
)

func (r Repo) InsertHome(ctx context.Context, tx *sql.Tx, h domain.Home) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO homes(id,conciergerie,title,description,objectives_json,zone,cleaning_hours,gardening_hours,images_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		h.ID, h.Conciergerie, h.Title, nullable(h.Description), toJSON(h.Objectives), nullable(h.Zone),
		h.CleaningHours, h.GardeningHours, toJSON(h.Images), h.CreatedAt, h.UpdatedAt)
	return err
}

func (r Repo) UpdateHome(ctx context.Context, tx *sql.Tx, h domain.Home) error {
	res, err := tx.ExecContext(ctx, `UPDATE homes SET title=?, description=?, objectives_json=?, zone=?, cleaning_hours=?, gardening_hours=?, images_json=?, updated_at=? WHERE id=?`,
		h.Title, nullable(h.Description), toJSON(h.Objectives), nullable(h.Zone),
		h.CleaningHours, h.GardeningHours, toJSON(h.Images), h.UpdatedAt, h.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteHome(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM homes WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanHome(scan func(dest ...any) error) (domain.Home, error) {
	var h domain.Home
	var description, objectives, zone, images sql.NullString
	err := scan(&h.ID, &h.Conciergerie, &h.Title, &description, &objectives, &zone,
		&h.CleaningHours, &h.GardeningHours, &images, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	if err != nil {
		return h, err
	}
	if description.Valid {
		h.Description = description.String
	}
	if zone.Valid {
		h.Zone = zone.String
	}
	h.Objectives = fromJSON(objectives)
	h.Images = fromJSON(images)
	return h, nil
}

const homeColumns = `id,conciergerie,title,description,objectives_json,zone,cleaning_hours,gardening_hours,images_json,created_at,updated_at`

func (r Repo) GetHome(ctx context.Context, id string) (domain.Home, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+homeColumns+` FROM homes WHERE id=?`, id)
	return scanHome(row.Scan)
}

func (r Repo) ListHomes(ctx context.Context, conciergerie string) ([]domain.Home, error) {
	query := `SELECT ` + homeColumns + ` FROM homes`
	var args []any
	if conciergerie != "" {
		query += ` WHERE conciergerie=?`
		args = append(args, conciergerie)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Home
	for rows.Next() {
		h, err := scanHome(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// HomeTitleTaken reports whether another home of the same conciergerie
// already uses the title, case-insensitively.
func (r Repo) HomeTitleTaken(ctx context.Context, conciergerie, title, excludeID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM homes WHERE conciergerie=? AND lower(title)=? AND id<>? LIMIT 1`,
		conciergerie, strings.ToLower(strings.TrimSpace(title)), excludeID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) InsertConciergerie(ctx context.Context, c domain.Conciergerie) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO conciergeries(name,email,created_at) VALUES (?,?,?)
ON CONFLICT(name) DO UPDATE SET email=excluded.email`, c.Name, c.Email, c.CreatedAt)
	return err
}

func (r Repo) GetConciergerie(ctx context.Context, name string) (domain.Conciergerie, error) {
	var c domain.Conciergerie
	err := r.DB.QueryRowContext(ctx, `SELECT name,email,created_at FROM conciergeries WHERE name=?`, name).
		Scan(&c.Name, &c.Email, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListConciergeries(ctx context.Context) ([]domain.Conciergerie, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name,email,created_at FROM conciergeries ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conciergerie
	for rows.Next() {
		var c domain.Conciergerie
		if err := rows.Scan(&c.Name, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
