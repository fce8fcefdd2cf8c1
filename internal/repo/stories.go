package repo

import (
	"context"
	"database/sql"
	"strings"

	"reqline/internal/domain"
)

const storyColumns = `id,epic_id,key,actor_id,COALESCE(actor,''),COALESCE(action,''),COALESCE(outcome,''),status,created_at,created_by,updated_at,updated_by`

func scanStory(row scanner) (domain.Story, error) {
	var s domain.Story
	var actorID sql.NullString
	err := row.Scan(&s.ID, &s.EpicID, &s.Key, &actorID, &s.Actor, &s.Action, &s.Outcome, &s.Status, &s.CreatedAt, &s.CreatedBy, &s.UpdatedAt, &s.UpdatedBy)
	if err != nil {
		return s, notFound(err)
	}
	s.ActorID = stringPtr(actorID)
	return s, nil
}

func (r Repo) InsertStory(ctx context.Context, s domain.Story) error {
	_, err := r.exec(ctx, `INSERT INTO stories(id,epic_id,key,actor_id,actor,action,outcome,status,created_at,created_by,updated_at,updated_by) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.EpicID, s.Key, nullableStringPtr(s.ActorID), nullable(s.Actor), nullable(s.Action), nullable(s.Outcome), s.Status,
		s.CreatedAt, s.CreatedBy, s.UpdatedAt, s.UpdatedBy)
	return err
}

func (r Repo) GetStory(ctx context.Context, id string) (domain.Story, error) {
	return scanStory(r.queryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id=?`, id))
}

type StoryFilter struct {
	EpicID  string
	ActorID string
	Status  string
}

func (r Repo) ListStories(ctx context.Context, f StoryFilter) ([]domain.Story, error) {
	var (
		clauses []string
		args    []any
	)
	if f.EpicID != "" {
		clauses = append(clauses, "epic_id=?")
		args = append(args, f.EpicID)
	}
	if f.ActorID != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + storyColumns + ` FROM stories`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.query(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStory(ctx context.Context, s domain.Story) error {
	res, err := r.exec(ctx, `UPDATE stories SET epic_id=?,key=?,actor_id=?,actor=?,action=?,outcome=?,status=?,updated_at=?,updated_by=? WHERE id=?`,
		s.EpicID, s.Key, nullableStringPtr(s.ActorID), nullable(s.Actor), nullable(s.Action), nullable(s.Outcome), s.Status,
		s.UpdatedAt, s.UpdatedBy, s.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
