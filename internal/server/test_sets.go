package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/engine"
	"reqline/internal/repo"
)

func (h handlers) registerTestSets(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-test-sets",
		Method:      http.MethodGet,
		Path:        "/test-sets",
		Summary:     "List test sets",
		Tags:        []string{"test-sets"},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*output[[]domain.TestSet], error) {
		items, err := h.e.ListTestSets(ctx, repo.TestSetFilter{Status: input.Status})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	h.registerNextKey(api, "test-sets", domain.EntityTestSet, h.e.NextTestSetKey)

	huma.Register(api, huma.Operation{
		OperationID: "get-test-set",
		Method:      http.MethodGet,
		Path:        "/test-sets/{id}",
		Summary:     "Get test set",
		Tags:        []string{"test-sets"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.TestSet], error) {
		ts, err := h.e.GetTestSet(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ts), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-test-set",
		Method:        http.MethodPost,
		Path:          "/test-sets",
		Summary:       "Create test set",
		Tags:          []string{"test-sets"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTestSetRequest `json:"body"`
	}) (*output[domain.TestSet], error) {
		ts, err := h.e.CreateTestSet(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ts), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-test-set",
		Method:      http.MethodPut,
		Path:        "/test-sets/{id}",
		Summary:     "Update test set",
		Tags:        []string{"test-sets"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateTestSetRequest `json:"body"`
	}) (*output[domain.TestSet], error) {
		ts, err := h.e.UpdateTestSet(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ts), nil
	})

	h.registerDelete(api, "test-sets", domain.EntityTestSet, h.e.DeleteTestSet)

	huma.Register(api, huma.Operation{
		OperationID: "list-test-set-runs",
		Method:      http.MethodGet,
		Path:        "/test-sets/{id}/runs",
		Summary:     "List the runs of a test set",
		Tags:        []string{"test-sets"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[[]domain.TestRun], error) {
		if _, err := h.e.GetTestSet(ctx, input.ID); err != nil {
			return nil, h.handleError(ctx, err)
		}
		items, err := h.e.ListTestRunsByTestSet(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "bulk-create-test-runs",
		Method:        http.MethodPost,
		Path:          "/test-sets/{id}/runs/bulk",
		Summary:       "Add test cases to a test set",
		Description:   "Creates one run per test case. Either every run is created or none is.",
		Tags:          []string{"test-sets"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body BulkTestRunsRequest `json:"body"`
	}) (*output[[]domain.TestRun], error) {
		runs, err := h.e.CreateTestRuns(ctx, input.ID, input.Body.TestCaseIDs, input.Body.CreatedBy)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(runs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "test-set-summary",
		Method:      http.MethodGet,
		Path:        "/test-sets/{id}/summary",
		Summary:     "Count the runs of a test set per status",
		Tags:        []string{"test-sets"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[[]engine.StatusCount], error) {
		counts, err := h.e.RunSummary(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(counts)), nil
	})
}

func (h handlers) registerTestRuns(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-test-runs",
		Method:      http.MethodGet,
		Path:        "/test-runs",
		Summary:     "List test runs",
		Tags:        []string{"test-runs"},
	}, func(ctx context.Context, input *struct {
		TestSetID  string `query:"test_set_id"`
		TestCaseID string `query:"test_case_id"`
		Status     string `query:"status"`
	}) (*output[[]domain.TestRun], error) {
		items, err := h.e.ListTestRuns(ctx, repo.TestRunFilter{
			TestSetID: input.TestSetID, TestCaseID: input.TestCaseID, Status: input.Status,
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	registerByParent(h, api, "test-runs", "test-set", h.e.ListTestRunsByTestSet)
	registerByParent(h, api, "test-runs", "test-case", h.e.ListTestRunsByTestCase)

	huma.Register(api, huma.Operation{
		OperationID: "get-test-run",
		Method:      http.MethodGet,
		Path:        "/test-runs/{id}",
		Summary:     "Get test run",
		Tags:        []string{"test-runs"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.TestRun], error) {
		tr, err := h.e.GetTestRun(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(tr), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-test-run",
		Method:        http.MethodPost,
		Path:          "/test-runs",
		Summary:       "Create test run",
		Tags:          []string{"test-runs"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTestRunRequest `json:"body"`
	}) (*output[domain.TestRun], error) {
		tr, err := h.e.CreateTestRun(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(tr), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-test-run",
		Method:      http.MethodPut,
		Path:        "/test-runs/{id}",
		Summary:     "Update test run",
		Description: "Leaving the default status stamps executed_at and executed_by.",
		Tags:        []string{"test-runs"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateTestRunRequest `json:"body"`
	}) (*output[domain.TestRun], error) {
		tr, err := h.e.UpdateTestRun(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(tr), nil
	})

	h.registerDelete(api, "test-runs", domain.EntityTestRun, h.e.DeleteTestRun)
}
