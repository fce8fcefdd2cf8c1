package repo

import (
	"context"

	"reqline/internal/domain"
)

const projectColumns = `id,name,COALESCE(description,''),status,created_at,created_by,updated_at,updated_by`

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy)
	return p, notFound(err)
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.exec(ctx, `INSERT INTO projects(id,name,description,status,created_at,created_by,updated_at,updated_by) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.Status, p.CreatedAt, p.CreatedBy, p.UpdatedAt, p.UpdatedBy)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
}

// ProjectFilter narrows ListProjects. Empty fields match everything.
type ProjectFilter struct {
	Status string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if f.Status != "" {
		query += ` WHERE status=?`
		args = append(args, f.Status)
	}
	rows, err := r.query(ctx, query+` ORDER BY created_at DESC, name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.exec(ctx, `UPDATE projects SET name=?,description=?,status=?,updated_at=?,updated_by=? WHERE id=?`,
		p.Name, nullable(p.Description), p.Status, p.UpdatedAt, p.UpdatedBy, p.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
