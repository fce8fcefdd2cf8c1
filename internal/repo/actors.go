package repo

import (
	"context"
	"strings"

	"reqline/internal/domain"
)

const actorColumns = `id,project_id,name,COALESCE(role,''),COALESCE(description,''),created_at,created_by,updated_at,updated_by`

func scanActor(row scanner) (domain.Actor, error) {
	var a domain.Actor
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Role, &a.Description, &a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.UpdatedBy)
	return a, notFound(err)
}

func (r Repo) InsertActor(ctx context.Context, a domain.Actor) error {
	_, err := r.exec(ctx, `INSERT INTO actors(id,project_id,name,role,description,created_at,created_by,updated_at,updated_by) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.Name, nullable(a.Role), nullable(a.Description), a.CreatedAt, a.CreatedBy, a.UpdatedAt, a.UpdatedBy)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	return scanActor(r.queryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id=?`, id))
}

// FindActorByName looks up an actor of a project by case-insensitive name.
func (r Repo) FindActorByName(ctx context.Context, projectID, name string) (domain.Actor, error) {
	return scanActor(r.queryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE project_id=? AND LOWER(name)=? ORDER BY created_at LIMIT 1`,
		projectID, strings.ToLower(strings.TrimSpace(name))))
}

// ActorFilter narrows ListActors.
type ActorFilter struct {
	ProjectID string
}

func (r Repo) ListActors(ctx context.Context, f ActorFilter) ([]domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors`
	var args []any
	if f.ProjectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, f.ProjectID)
	}
	rows, err := r.query(ctx, query+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateActor(ctx context.Context, a domain.Actor) error {
	res, err := r.exec(ctx, `UPDATE actors SET project_id=?,name=?,role=?,description=?,updated_at=?,updated_by=? WHERE id=?`,
		a.ProjectID, a.Name, nullable(a.Role), nullable(a.Description), a.UpdatedAt, a.UpdatedBy, a.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// RenameStoryActor refreshes the name snapshot on stories referencing the actor.
func (r Repo) RenameStoryActor(ctx context.Context, actorID, name string) error {
	_, err := r.exec(ctx, `UPDATE stories SET actor=? WHERE actor_id=?`, name, actorID)
	return err
}
