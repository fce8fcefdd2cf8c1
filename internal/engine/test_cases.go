package engine

import (
	"context"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

type TestCaseCreate struct {
	AcceptanceCriterionID string
	Key                   string
	Preconditions         string
	Steps                 string
	ExpectedResult        string
	Priority              string
	TestStatus            string
	CreatedBy             string
}

type TestCaseUpdate struct {
	AcceptanceCriterionID *string
	Key                   *string
	Preconditions         *string
	Steps                 *string
	ExpectedResult        *string
	Priority              *string
	TestStatus            *string
	UpdatedBy             string
}

func (u TestCaseUpdate) statusOnly() bool {
	return u.TestStatus != nil && u.AcceptanceCriterionID == nil && u.Key == nil && u.Preconditions == nil &&
		u.Steps == nil && u.ExpectedResult == nil && u.Priority == nil
}

func (e Engine) ListTestCases(ctx context.Context, f repo.TestCaseFilter) ([]domain.TestCase, error) {
	return e.Repo.ListTestCases(ctx, f)
}

func (e Engine) ListTestCasesByAcceptanceCriterion(ctx context.Context, acID string) ([]domain.TestCase, error) {
	return e.Repo.ListTestCases(ctx, repo.TestCaseFilter{AcceptanceCriterionID: acID})
}

func (e Engine) GetTestCase(ctx context.Context, id string) (domain.TestCase, error) {
	tc, err := e.Repo.GetTestCase(ctx, id)
	return tc, storeErr(domain.EntityTestCase, id, err)
}

func (e Engine) NextTestCaseKey(ctx context.Context) (string, error) {
	return e.Repo.PeekKey(ctx, domain.EntityTestCase)
}

func (e Engine) CreateTestCase(ctx context.Context, in TestCaseCreate) (domain.TestCase, error) {
	if in.Priority == "" {
		in.Priority = domain.LevelMedium
	}
	var v validator
	v.require("acceptance_criterion_id", in.AcceptanceCriterionID)
	v.level("priority", in.Priority)
	if err := v.err(); err != nil {
		return domain.TestCase{}, err
	}
	st, err := e.resolveStatus(domain.EntityTestCase, "test_status", in.TestStatus)
	if err != nil {
		return domain.TestCase{}, err
	}
	tc := domain.TestCase{
		ID:                    newID(),
		AcceptanceCriterionID: in.AcceptanceCriterionID,
		Key:                   in.Key,
		Preconditions:         in.Preconditions,
		Steps:                 in.Steps,
		ExpectedResult:        in.ExpectedResult,
		Priority:              in.Priority,
		TestStatus:            st,
		Audit:                 e.newAudit(in.CreatedBy),
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		if err := e.requireRef(ctx, r, domain.EntityAcceptanceCriterion, in.AcceptanceCriterionID); err != nil {
			return err
		}
		if tc.Key == "" {
			if tc.Key, err = r.NextKey(ctx, domain.EntityTestCase); err != nil {
				return err
			}
		}
		return r.InsertTestCase(ctx, tc)
	})
	if err != nil {
		return domain.TestCase{}, storeErr(domain.EntityTestCase, tc.ID, err)
	}
	e.created(domain.EntityTestCase, 1)
	return e.GetTestCase(ctx, tc.ID)
}

func (e Engine) UpdateTestCase(ctx context.Context, id string, in TestCaseUpdate) (domain.TestCase, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		tc, err := r.GetTestCase(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityTestCase, id, tc.TestStatus, in.statusOnly(), in.TestStatus); err != nil {
			return err
		}
		if in.AcceptanceCriterionID != nil && *in.AcceptanceCriterionID != tc.AcceptanceCriterionID {
			if err := e.requireRef(ctx, r, domain.EntityAcceptanceCriterion, *in.AcceptanceCriterionID); err != nil {
				return err
			}
			tc.AcceptanceCriterionID = *in.AcceptanceCriterionID
		}
		if in.Key != nil && *in.Key != "" {
			tc.Key = *in.Key
		}
		if in.Preconditions != nil {
			tc.Preconditions = *in.Preconditions
		}
		if in.Steps != nil {
			tc.Steps = *in.Steps
		}
		if in.ExpectedResult != nil {
			tc.ExpectedResult = *in.ExpectedResult
		}
		if in.Priority != nil {
			if !domain.ValidLevel(*in.Priority) {
				return invalid("priority", "must be one of Low, Medium, High")
			}
			tc.Priority = *in.Priority
		}
		if in.TestStatus != nil {
			if tc.TestStatus, err = e.resolveStatus(domain.EntityTestCase, "test_status", *in.TestStatus); err != nil {
				return err
			}
		}
		e.touch(&tc.Audit, in.UpdatedBy)
		return r.UpdateTestCase(ctx, tc)
	})
	if err != nil {
		return domain.TestCase{}, storeErr(domain.EntityTestCase, id, err)
	}
	return e.GetTestCase(ctx, id)
}

func (e Engine) DeleteTestCase(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityTestCase, id)
	return err
}
