package repo

import (
	"context"
	"database/sql"
	"strings"

	"reqline/internal/domain"
)

const epicColumns = `id,project_id,key,title,COALESCE(description,''),status,created_at,created_by,updated_at,updated_by`

func scanEpic(row scanner) (domain.Epic, error) {
	var e domain.Epic
	var projectID sql.NullString
	err := row.Scan(&e.ID, &projectID, &e.Key, &e.Title, &e.Description, &e.Status, &e.CreatedAt, &e.CreatedBy, &e.UpdatedAt, &e.UpdatedBy)
	if err != nil {
		return e, notFound(err)
	}
	e.ProjectID = stringPtr(projectID)
	return e, nil
}

func (r Repo) InsertEpic(ctx context.Context, e domain.Epic) error {
	_, err := r.exec(ctx, `INSERT INTO epics(id,project_id,key,title,description,status,created_at,created_by,updated_at,updated_by) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, nullableStringPtr(e.ProjectID), e.Key, e.Title, nullable(e.Description), e.Status, e.CreatedAt, e.CreatedBy, e.UpdatedAt, e.UpdatedBy)
	return err
}

func (r Repo) GetEpic(ctx context.Context, id string) (domain.Epic, error) {
	return scanEpic(r.queryRow(ctx, `SELECT `+epicColumns+` FROM epics WHERE id=?`, id))
}

type EpicFilter struct {
	ProjectID string
	Status    string
}

func (r Repo) ListEpics(ctx context.Context, f EpicFilter) ([]domain.Epic, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + epicColumns + ` FROM epics`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.query(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Epic
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) UpdateEpic(ctx context.Context, e domain.Epic) error {
	res, err := r.exec(ctx, `UPDATE epics SET project_id=?,key=?,title=?,description=?,status=?,updated_at=?,updated_by=? WHERE id=?`,
		nullableStringPtr(e.ProjectID), e.Key, e.Title, nullable(e.Description), e.Status, e.UpdatedAt, e.UpdatedBy, e.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
