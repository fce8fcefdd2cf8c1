package repo

import (
	"context"
	"strings"

	"reqline/internal/domain"
)

const testCaseColumns = `id,acceptance_criterion_id,key,COALESCE(preconditions,''),COALESCE(steps,''),COALESCE(expected_result,''),priority,test_status,created_at,created_by,updated_at,updated_by`

func scanTestCase(row scanner) (domain.TestCase, error) {
	var tc domain.TestCase
	err := row.Scan(&tc.ID, &tc.AcceptanceCriterionID, &tc.Key, &tc.Preconditions, &tc.Steps, &tc.ExpectedResult, &tc.Priority, &tc.TestStatus,
		&tc.CreatedAt, &tc.CreatedBy, &tc.UpdatedAt, &tc.UpdatedBy)
	return tc, notFound(err)
}

func (r Repo) InsertTestCase(ctx context.Context, tc domain.TestCase) error {
	_, err := r.exec(ctx, `INSERT INTO test_cases(id,acceptance_criterion_id,key,preconditions,steps,expected_result,priority,test_status,created_at,created_by,updated_at,updated_by)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		tc.ID, tc.AcceptanceCriterionID, tc.Key, nullable(tc.Preconditions), nullable(tc.Steps), nullable(tc.ExpectedResult), tc.Priority, tc.TestStatus,
		tc.CreatedAt, tc.CreatedBy, tc.UpdatedAt, tc.UpdatedBy)
	return err
}

func (r Repo) GetTestCase(ctx context.Context, id string) (domain.TestCase, error) {
	return scanTestCase(r.queryRow(ctx, `SELECT `+testCaseColumns+` FROM test_cases WHERE id=?`, id))
}

type TestCaseFilter struct {
	AcceptanceCriterionID string
	TestStatus            string
	Priority              string
}

func (r Repo) ListTestCases(ctx context.Context, f TestCaseFilter) ([]domain.TestCase, error) {
	var (
		clauses []string
		args    []any
	)
	if f.AcceptanceCriterionID != "" {
		clauses = append(clauses, "acceptance_criterion_id=?")
		args = append(args, f.AcceptanceCriterionID)
	}
	if f.TestStatus != "" {
		clauses = append(clauses, "test_status=?")
		args = append(args, f.TestStatus)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	query := `SELECT ` + testCaseColumns + ` FROM test_cases`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.query(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, tc)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTestCase(ctx context.Context, tc domain.TestCase) error {
	res, err := r.exec(ctx, `UPDATE test_cases SET acceptance_criterion_id=?,key=?,preconditions=?,steps=?,expected_result=?,priority=?,test_status=?,updated_at=?,updated_by=? WHERE id=?`,
		tc.AcceptanceCriterionID, tc.Key, nullable(tc.Preconditions), nullable(tc.Steps), nullable(tc.ExpectedResult), tc.Priority, tc.TestStatus,
		tc.UpdatedAt, tc.UpdatedBy, tc.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
