package engine

import (
	"context"
	"sort"
	"strings"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

type TestSetCreate struct {
	Key         string
	Title       string
	Description string
	Status      string
	CreatedBy   string
}

type TestSetUpdate struct {
	Key         *string
	Title       *string
	Description *string
	Status      *string
	UpdatedBy   string
}

func (u TestSetUpdate) statusOnly() bool {
	return u.Status != nil && u.Key == nil && u.Title == nil && u.Description == nil
}

func (e Engine) ListTestSets(ctx context.Context, f repo.TestSetFilter) ([]domain.TestSet, error) {
	return e.Repo.ListTestSets(ctx, f)
}

func (e Engine) GetTestSet(ctx context.Context, id string) (domain.TestSet, error) {
	ts, err := e.Repo.GetTestSet(ctx, id)
	return ts, storeErr(domain.EntityTestSet, id, err)
}

func (e Engine) NextTestSetKey(ctx context.Context) (string, error) {
	return e.Repo.PeekKey(ctx, domain.EntityTestSet)
}

func (e Engine) CreateTestSet(ctx context.Context, in TestSetCreate) (domain.TestSet, error) {
	var v validator
	v.require("title", in.Title)
	if err := v.err(); err != nil {
		return domain.TestSet{}, err
	}
	st, err := e.resolveStatus(domain.EntityTestSet, "status", in.Status)
	if err != nil {
		return domain.TestSet{}, err
	}
	ts := domain.TestSet{
		ID:          newID(),
		Key:         in.Key,
		Title:       in.Title,
		Description: in.Description,
		Status:      st,
		Audit:       e.newAudit(in.CreatedBy),
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		if ts.Key == "" {
			if ts.Key, err = r.NextKey(ctx, domain.EntityTestSet); err != nil {
				return err
			}
		}
		return r.InsertTestSet(ctx, ts)
	})
	if err != nil {
		return domain.TestSet{}, storeErr(domain.EntityTestSet, ts.ID, err)
	}
	e.created(domain.EntityTestSet, 1)
	return e.GetTestSet(ctx, ts.ID)
}

func (e Engine) UpdateTestSet(ctx context.Context, id string, in TestSetUpdate) (domain.TestSet, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		ts, err := r.GetTestSet(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityTestSet, id, ts.Status, in.statusOnly(), in.Status); err != nil {
			return err
		}
		if in.Key != nil && *in.Key != "" {
			ts.Key = *in.Key
		}
		if in.Title != nil {
			if *in.Title == "" {
				return invalid("title", "is required")
			}
			ts.Title = *in.Title
		}
		if in.Description != nil {
			ts.Description = *in.Description
		}
		if in.Status != nil {
			if ts.Status, err = e.resolveStatus(domain.EntityTestSet, "status", *in.Status); err != nil {
				return err
			}
		}
		e.touch(&ts.Audit, in.UpdatedBy)
		return r.UpdateTestSet(ctx, ts)
	})
	if err != nil {
		return domain.TestSet{}, storeErr(domain.EntityTestSet, id, err)
	}
	return e.GetTestSet(ctx, id)
}

// DeleteTestSet removes the set and its runs.
func (e Engine) DeleteTestSet(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityTestSet, id)
	return err
}

type TestRunCreate struct {
	TestSetID    string
	TestCaseID   string
	Status       string
	ActualResult string
	Notes        string
	CreatedBy    string
}

// TestRunUpdate changes the non-nil fields. Moving a run out of the default
// status stamps executed_at and executed_by unless they are given.
type TestRunUpdate struct {
	Status       *string
	ActualResult *string
	Notes        *string
	ExecutedBy   *string
	ExecutedAt   *string
	UpdatedBy    string
}

func (u TestRunUpdate) statusOnly() bool {
	return u.Status != nil && u.ActualResult == nil && u.Notes == nil && u.ExecutedBy == nil && u.ExecutedAt == nil
}

func (e Engine) ListTestRuns(ctx context.Context, f repo.TestRunFilter) ([]domain.TestRun, error) {
	return e.Repo.ListTestRuns(ctx, f)
}

func (e Engine) ListTestRunsByTestSet(ctx context.Context, testSetID string) ([]domain.TestRun, error) {
	return e.Repo.ListTestRuns(ctx, repo.TestRunFilter{TestSetID: testSetID})
}

func (e Engine) ListTestRunsByTestCase(ctx context.Context, testCaseID string) ([]domain.TestRun, error) {
	return e.Repo.ListTestRuns(ctx, repo.TestRunFilter{TestCaseID: testCaseID})
}

func (e Engine) GetTestRun(ctx context.Context, id string) (domain.TestRun, error) {
	tr, err := e.Repo.GetTestRun(ctx, id)
	return tr, storeErr(domain.EntityTestRun, id, err)
}

func (e Engine) CreateTestRun(ctx context.Context, in TestRunCreate) (domain.TestRun, error) {
	var v validator
	v.require("test_set_id", in.TestSetID)
	v.require("test_case_id", in.TestCaseID)
	if err := v.err(); err != nil {
		return domain.TestRun{}, err
	}
	st, err := e.resolveStatus(domain.EntityTestRun, "status", in.Status)
	if err != nil {
		return domain.TestRun{}, err
	}
	tr := domain.TestRun{
		ID:           newID(),
		TestSetID:    in.TestSetID,
		TestCaseID:   in.TestCaseID,
		Status:       st,
		ActualResult: in.ActualResult,
		Notes:        in.Notes,
		Audit:        e.newAudit(in.CreatedBy),
	}
	e.stampExecution(&tr, tr.CreatedBy)
	err = e.inTx(ctx, func(r repo.Repo) error {
		if err := e.requireRef(ctx, r, domain.EntityTestSet, in.TestSetID); err != nil {
			return err
		}
		if err := e.requireRef(ctx, r, domain.EntityTestCase, in.TestCaseID); err != nil {
			return err
		}
		return r.InsertTestRun(ctx, tr)
	})
	if err != nil {
		return domain.TestRun{}, storeErr(domain.EntityTestRun, tr.ID, err)
	}
	e.created(domain.EntityTestRun, 1)
	return e.GetTestRun(ctx, tr.ID)
}

// CreateTestRuns adds one run per test case to a set in a single transaction.
// A missing set is a TargetNotFoundError; any missing test case rejects the
// whole batch with a ReferenceError.
func (e Engine) CreateTestRuns(ctx context.Context, testSetID string, testCaseIDs []string, createdBy string) ([]domain.TestRun, error) {
	if len(testCaseIDs) == 0 {
		return nil, invalid("test_case_ids", "must not be empty")
	}
	st, err := e.resolveStatus(domain.EntityTestRun, "status", "")
	if err != nil {
		return nil, err
	}
	audit := e.newAudit(createdBy)
	runs := make([]domain.TestRun, 0, len(testCaseIDs))
	err = e.inTx(ctx, func(r repo.Repo) error {
		ok, err := r.Exists(ctx, domain.EntityTestSet, testSetID)
		if err != nil {
			return err
		}
		if !ok {
			return TargetNotFoundError{Entity: domain.EntityTestSet, ID: testSetID}
		}
		for _, caseID := range testCaseIDs {
			caseID = strings.TrimSpace(caseID)
			if err := e.requireRef(ctx, r, domain.EntityTestCase, caseID); err != nil {
				return err
			}
			tr := domain.TestRun{
				ID:         newID(),
				TestSetID:  testSetID,
				TestCaseID: caseID,
				Status:     st,
				Audit:      audit,
			}
			if err := r.InsertTestRun(ctx, tr); err != nil {
				return err
			}
			runs = append(runs, tr)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(domain.EntityTestRun, testSetID, err)
	}
	e.created(domain.EntityTestRun, len(runs))
	e.Log.Debug().Str("test_set_id", testSetID).Int("runs", len(runs)).Msg("test runs created")
	return runs, nil
}

func (e Engine) UpdateTestRun(ctx context.Context, id string, in TestRunUpdate) (domain.TestRun, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		tr, err := r.GetTestRun(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityTestRun, id, tr.Status, in.statusOnly(), in.Status); err != nil {
			return err
		}
		if in.ActualResult != nil {
			tr.ActualResult = *in.ActualResult
		}
		if in.Notes != nil {
			tr.Notes = *in.Notes
		}
		if in.ExecutedBy != nil {
			tr.ExecutedBy = optional(*in.ExecutedBy)
		}
		if in.ExecutedAt != nil {
			tr.ExecutedAt = optional(*in.ExecutedAt)
		}
		e.touch(&tr.Audit, in.UpdatedBy)
		if in.Status != nil {
			label, err := e.resolveStatus(domain.EntityTestRun, "status", *in.Status)
			if err != nil {
				return err
			}
			if label != tr.Status {
				tr.Status = label
				if in.ExecutedAt == nil {
					tr.ExecutedAt = nil
				}
				if in.ExecutedBy == nil {
					tr.ExecutedBy = nil
				}
				e.stampExecution(&tr, tr.UpdatedBy)
			}
		}
		return r.UpdateTestRun(ctx, tr)
	})
	if err != nil {
		return domain.TestRun{}, storeErr(domain.EntityTestRun, id, err)
	}
	return e.GetTestRun(ctx, id)
}

// stampExecution records who ran the test and when, once a run leaves its default status.
func (e Engine) stampExecution(tr *domain.TestRun, by string) {
	if def, err := e.Statuses.Default(domain.EntityTestRun); err == nil && def.Label == tr.Status {
		return
	}
	if tr.ExecutedAt == nil {
		now := e.timestamp()
		tr.ExecutedAt = &now
	}
	if tr.ExecutedBy == nil {
		tr.ExecutedBy = &by
	}
}

func (e Engine) DeleteTestRun(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityTestRun, id)
	return err
}

// RunSummary counts the runs of a set per status label, in registry order.
func (e Engine) RunSummary(ctx context.Context, testSetID string) ([]StatusCount, error) {
	if _, err := e.GetTestSet(ctx, testSetID); err != nil {
		return nil, err
	}
	runs, err := e.ListTestRunsByTestSet(ctx, testSetID)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, tr := range runs {
		counts[tr.Status]++
	}
	var out []StatusCount
	for _, s := range e.Statuses.ByEntity(domain.EntityTestRun) {
		out = append(out, StatusCount{Status: s.Label, Count: counts[s.Label]})
		delete(counts, s.Label)
	}
	extra := make([]string, 0, len(counts))
	for label := range counts {
		extra = append(extra, label)
	}
	sort.Strings(extra)
	for _, label := range extra {
		out = append(out, StatusCount{Status: label, Count: counts[label]})
	}
	return out, nil
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
