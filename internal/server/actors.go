package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

func (h handlers) registerActors(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
		Tags:        []string{"actors"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
	}) (*output[[]domain.Actor], error) {
		items, err := h.e.ListActors(ctx, repo.ActorFilter{ProjectID: input.ProjectID})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	registerByParent(h, api, "actors", "project", h.e.ListActorsByProject)

	huma.Register(api, huma.Operation{
		OperationID: "get-actor",
		Method:      http.MethodGet,
		Path:        "/actors/{id}",
		Summary:     "Get actor",
		Tags:        []string{"actors"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.Actor], error) {
		a, err := h.e.GetActor(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-actor",
		Method:        http.MethodPost,
		Path:          "/actors",
		Summary:       "Create actor",
		Tags:          []string{"actors"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateActorRequest `json:"body"`
	}) (*output[domain.Actor], error) {
		a, err := h.e.CreateActor(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-actor",
		Method:      http.MethodPut,
		Path:        "/actors/{id}",
		Summary:     "Update actor",
		Description: "Renaming an actor refreshes the actor name on its stories.",
		Tags:        []string{"actors"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateActorRequest `json:"body"`
	}) (*output[domain.Actor], error) {
		a, err := h.e.UpdateActor(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(a), nil
	})

	h.registerDelete(api, "actors", domain.EntityActor, h.e.DeleteActor)
}
