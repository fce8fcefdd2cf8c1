package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

func (h handlers) registerTestCases(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-test-cases",
		Method:      http.MethodGet,
		Path:        "/test-cases",
		Summary:     "List test cases",
		Tags:        []string{"test-cases"},
	}, func(ctx context.Context, input *struct {
		AcceptanceCriterionID string `query:"acceptance_criterion_id"`
		TestStatus            string `query:"test_status"`
		Priority              string `query:"priority" enum:"Low,Medium,High"`
	}) (*output[[]domain.TestCase], error) {
		items, err := h.e.ListTestCases(ctx, repo.TestCaseFilter{
			AcceptanceCriterionID: input.AcceptanceCriterionID, TestStatus: input.TestStatus, Priority: input.Priority,
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	registerByParent(h, api, "test-cases", "acceptance-criterion", h.e.ListTestCasesByAcceptanceCriterion)
	h.registerNextKey(api, "test-cases", domain.EntityTestCase, h.e.NextTestCaseKey)

	huma.Register(api, huma.Operation{
		OperationID: "get-test-case",
		Method:      http.MethodGet,
		Path:        "/test-cases/{id}",
		Summary:     "Get test case",
		Tags:        []string{"test-cases"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.TestCase], error) {
		tc, err := h.e.GetTestCase(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(tc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-test-case",
		Method:        http.MethodPost,
		Path:          "/test-cases",
		Summary:       "Create test case",
		Tags:          []string{"test-cases"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTestCaseRequest `json:"body"`
	}) (*output[domain.TestCase], error) {
		tc, err := h.e.CreateTestCase(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(tc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-test-case",
		Method:      http.MethodPut,
		Path:        "/test-cases/{id}",
		Summary:     "Update test case",
		Tags:        []string{"test-cases"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateTestCaseRequest `json:"body"`
	}) (*output[domain.TestCase], error) {
		tc, err := h.e.UpdateTestCase(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(tc), nil
	})

	h.registerDelete(api, "test-cases", domain.EntityTestCase, h.e.DeleteTestCase)
}
