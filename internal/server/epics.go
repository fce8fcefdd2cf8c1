package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

func (h handlers) registerEpics(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-epics",
		Method:      http.MethodGet,
		Path:        "/epics",
		Summary:     "List epics",
		Tags:        []string{"epics"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Status    string `query:"status"`
	}) (*output[[]domain.Epic], error) {
		items, err := h.e.ListEpics(ctx, repo.EpicFilter{ProjectID: input.ProjectID, Status: input.Status})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	registerByParent(h, api, "epics", "project", h.e.ListEpicsByProject)
	h.registerNextKey(api, "epics", domain.EntityEpic, h.e.NextEpicKey)

	huma.Register(api, huma.Operation{
		OperationID: "get-epic",
		Method:      http.MethodGet,
		Path:        "/epics/{id}",
		Summary:     "Get epic",
		Tags:        []string{"epics"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.Epic], error) {
		ep, err := h.e.GetEpic(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ep), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-epic",
		Method:        http.MethodPost,
		Path:          "/epics",
		Summary:       "Create epic",
		Tags:          []string{"epics"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateEpicRequest `json:"body"`
	}) (*output[domain.Epic], error) {
		ep, err := h.e.CreateEpic(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ep), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-epic",
		Method:      http.MethodPut,
		Path:        "/epics/{id}",
		Summary:     "Update epic",
		Tags:        []string{"epics"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateEpicRequest `json:"body"`
	}) (*output[domain.Epic], error) {
		ep, err := h.e.UpdateEpic(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(ep), nil
	})

	h.registerDelete(api, "epics", domain.EntityEpic, h.e.DeleteEpic)
}
