package repo

import (
	"context"
	"database/sql"
	"strings"

	"reqline/internal/domain"
)

const testSetColumns = `id,key,title,COALESCE(description,''),status,created_at,created_by,updated_at,updated_by`

func scanTestSet(row scanner) (domain.TestSet, error) {
	var ts domain.TestSet
	err := row.Scan(&ts.ID, &ts.Key, &ts.Title, &ts.Description, &ts.Status, &ts.CreatedAt, &ts.CreatedBy, &ts.UpdatedAt, &ts.UpdatedBy)
	return ts, notFound(err)
}

func (r Repo) InsertTestSet(ctx context.Context, ts domain.TestSet) error {
	_, err := r.exec(ctx, `INSERT INTO test_sets(id,key,title,description,status,created_at,created_by,updated_at,updated_by) VALUES (?,?,?,?,?,?,?,?,?)`,
		ts.ID, ts.Key, ts.Title, nullable(ts.Description), ts.Status, ts.CreatedAt, ts.CreatedBy, ts.UpdatedAt, ts.UpdatedBy)
	return err
}

func (r Repo) GetTestSet(ctx context.Context, id string) (domain.TestSet, error) {
	return scanTestSet(r.queryRow(ctx, `SELECT `+testSetColumns+` FROM test_sets WHERE id=?`, id))
}

type TestSetFilter struct {
	Status string
}

func (r Repo) ListTestSets(ctx context.Context, f TestSetFilter) ([]domain.TestSet, error) {
	query := `SELECT ` + testSetColumns + ` FROM test_sets`
	var args []any
	if f.Status != "" {
		query += ` WHERE status=?`
		args = append(args, f.Status)
	}
	rows, err := r.query(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TestSet
	for rows.Next() {
		ts, err := scanTestSet(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ts)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTestSet(ctx context.Context, ts domain.TestSet) error {
	res, err := r.exec(ctx, `UPDATE test_sets SET key=?,title=?,description=?,status=?,updated_at=?,updated_by=? WHERE id=?`,
		ts.Key, ts.Title, nullable(ts.Description), ts.Status, ts.UpdatedAt, ts.UpdatedBy, ts.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

const testRunColumns = `id,test_set_id,test_case_id,status,COALESCE(actual_result,''),COALESCE(notes,''),executed_by,executed_at,created_at,created_by,updated_at,updated_by`

func scanTestRun(row scanner) (domain.TestRun, error) {
	var tr domain.TestRun
	var executedBy, executedAt sql.NullString
	err := row.Scan(&tr.ID, &tr.TestSetID, &tr.TestCaseID, &tr.Status, &tr.ActualResult, &tr.Notes, &executedBy, &executedAt,
		&tr.CreatedAt, &tr.CreatedBy, &tr.UpdatedAt, &tr.UpdatedBy)
	if err != nil {
		return tr, notFound(err)
	}
	tr.ExecutedBy = stringPtr(executedBy)
	tr.ExecutedAt = stringPtr(executedAt)
	return tr, nil
}

func (r Repo) InsertTestRun(ctx context.Context, tr domain.TestRun) error {
	_, err := r.exec(ctx, `INSERT INTO test_runs(id,test_set_id,test_case_id,status,actual_result,notes,executed_by,executed_at,created_at,created_by,updated_at,updated_by)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		tr.ID, tr.TestSetID, tr.TestCaseID, tr.Status, nullable(tr.ActualResult), nullable(tr.Notes), nullableStringPtr(tr.ExecutedBy),
		nullableStringPtr(tr.ExecutedAt), tr.CreatedAt, tr.CreatedBy, tr.UpdatedAt, tr.UpdatedBy)
	return err
}

func (r Repo) GetTestRun(ctx context.Context, id string) (domain.TestRun, error) {
	return scanTestRun(r.queryRow(ctx, `SELECT `+testRunColumns+` FROM test_runs WHERE id=?`, id))
}

type TestRunFilter struct {
	TestSetID  string
	TestCaseID string
	Status     string
}

func (r Repo) ListTestRuns(ctx context.Context, f TestRunFilter) ([]domain.TestRun, error) {
	var (
		clauses []string
		args    []any
	)
	if f.TestSetID != "" {
		clauses = append(clauses, "test_set_id=?")
		args = append(args, f.TestSetID)
	}
	if f.TestCaseID != "" {
		clauses = append(clauses, "test_case_id=?")
		args = append(args, f.TestCaseID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + testRunColumns + ` FROM test_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.query(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TestRun
	for rows.Next() {
		tr, err := scanTestRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, tr)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTestRun(ctx context.Context, tr domain.TestRun) error {
	res, err := r.exec(ctx, `UPDATE test_runs SET status=?,actual_result=?,notes=?,executed_by=?,executed_at=?,updated_at=?,updated_by=? WHERE id=?`,
		tr.Status, nullable(tr.ActualResult), nullable(tr.Notes), nullableStringPtr(tr.ExecutedBy), nullableStringPtr(tr.ExecutedAt),
		tr.UpdatedAt, tr.UpdatedBy, tr.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
