package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

func (h handlers) registerCriteria(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-acceptance-criteria",
		Method:      http.MethodGet,
		Path:        "/acceptance-criteria",
		Summary:     "List acceptance criteria",
		Tags:        []string{"acceptance-criteria"},
	}, func(ctx context.Context, input *struct {
		StoryID string `query:"story_id"`
		Status  string `query:"status"`
		Risk    string `query:"risk" enum:"Low,Medium,High"`
	}) (*output[[]domain.AcceptanceCriterion], error) {
		items, err := h.e.ListAcceptanceCriteria(ctx, repo.AcceptanceCriterionFilter{
			StoryID: input.StoryID, Status: input.Status, Risk: input.Risk,
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	registerByParent(h, api, "acceptance-criteria", "story", h.e.ListAcceptanceCriteriaByStory)
	h.registerNextKey(api, "acceptance-criteria", domain.EntityAcceptanceCriterion, h.e.NextAcceptanceCriterionKey)

	huma.Register(api, huma.Operation{
		OperationID: "get-acceptance-criterion",
		Method:      http.MethodGet,
		Path:        "/acceptance-criteria/{id}",
		Summary:     "Get acceptance criterion",
		Tags:        []string{"acceptance-criteria"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.AcceptanceCriterion], error) {
		ac, err := h.e.GetAcceptanceCriterion(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ac), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-acceptance-criterion",
		Method:        http.MethodPost,
		Path:          "/acceptance-criteria",
		Summary:       "Create acceptance criterion",
		Tags:          []string{"acceptance-criteria"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAcceptanceCriterionRequest `json:"body"`
	}) (*output[domain.AcceptanceCriterion], error) {
		ac, err := h.e.CreateAcceptanceCriterion(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ac), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-acceptance-criterion",
		Method:      http.MethodPut,
		Path:        "/acceptance-criteria/{id}",
		Summary:     "Update acceptance criterion",
		Tags:        []string{"acceptance-criteria"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                           `path:"id"`
		Body UpdateAcceptanceCriterionRequest `json:"body"`
	}) (*output[domain.AcceptanceCriterion], error) {
		ac, err := h.e.UpdateAcceptanceCriterion(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ac), nil
	})

	h.registerDelete(api, "acceptance-criteria", domain.EntityAcceptanceCriterion, h.e.DeleteAcceptanceCriterion)
}
