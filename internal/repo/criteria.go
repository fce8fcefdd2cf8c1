package repo

import (
	"context"
	"strings"

	"reqline/internal/domain"
)

const criterionColumns = `id,story_id,key,COALESCE(given_text,''),COALESCE(when_text,''),COALESCE(then_text,''),status,valid,risk,COALESCE(comments,''),created_at,created_by,updated_at,updated_by`

func scanCriterion(row scanner) (domain.AcceptanceCriterion, error) {
	var ac domain.AcceptanceCriterion
	var valid int
	err := row.Scan(&ac.ID, &ac.StoryID, &ac.Key, &ac.Given, &ac.When, &ac.Then, &ac.Status, &valid, &ac.Risk, &ac.Comments,
		&ac.CreatedAt, &ac.CreatedBy, &ac.UpdatedAt, &ac.UpdatedBy)
	if err != nil {
		return ac, notFound(err)
	}
	ac.Valid = valid != 0
	return ac, nil
}

func (r Repo) InsertAcceptanceCriterion(ctx context.Context, ac domain.AcceptanceCriterion) error {
	_, err := r.exec(ctx, `INSERT INTO acceptance_criteria(id,story_id,key,given_text,when_text,then_text,status,valid,risk,comments,created_at,created_by,updated_at,updated_by)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ac.ID, ac.StoryID, ac.Key, nullable(ac.Given), nullable(ac.When), nullable(ac.Then), ac.Status, boolInt(ac.Valid), ac.Risk,
		nullable(ac.Comments), ac.CreatedAt, ac.CreatedBy, ac.UpdatedAt, ac.UpdatedBy)
	return err
}

func (r Repo) GetAcceptanceCriterion(ctx context.Context, id string) (domain.AcceptanceCriterion, error) {
	return scanCriterion(r.queryRow(ctx, `SELECT `+criterionColumns+` FROM acceptance_criteria WHERE id=?`, id))
}

type AcceptanceCriterionFilter struct {
	StoryID string
	Status  string
	Risk    string
}

func (r Repo) ListAcceptanceCriteria(ctx context.Context, f AcceptanceCriterionFilter) ([]domain.AcceptanceCriterion, error) {
	var (
		clauses []string
		args    []any
	)
	if f.StoryID != "" {
		clauses = append(clauses, "story_id=?")
		args = append(args, f.StoryID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Risk != "" {
		clauses = append(clauses, "risk=?")
		args = append(args, f.Risk)
	}
	query := `SELECT ` + criterionColumns + ` FROM acceptance_criteria`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.query(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AcceptanceCriterion
	for rows.Next() {
		ac, err := scanCriterion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ac)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAcceptanceCriterion(ctx context.Context, ac domain.AcceptanceCriterion) error {
	res, err := r.exec(ctx, `UPDATE acceptance_criteria SET story_id=?,key=?,given_text=?,when_text=?,then_text=?,status=?,valid=?,risk=?,comments=?,updated_at=?,updated_by=? WHERE id=?`,
		ac.StoryID, ac.Key, nullable(ac.Given), nullable(ac.When), nullable(ac.Then), ac.Status, boolInt(ac.Valid), ac.Risk,
		nullable(ac.Comments), ac.UpdatedAt, ac.UpdatedBy, ac.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
