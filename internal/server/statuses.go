package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/status"
)

func (h handlers) registerStatuses(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-statuses",
		Method:      http.MethodGet,
		Path:        "/statuses",
		Summary:     "List statuses",
		Description: "Lists the status registry in rank order. entity_type narrows it to one type plus Global statuses.",
		Tags:        []string{"statuses"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EntityType string `query:"entity_type"`
	}) (*output[[]domain.Status], error) {
		if input.EntityType != "" {
			t, err := entityType(input.EntityType)
			if err != nil {
				return nil, err
			}
			return ok(nonNil(h.e.Statuses.ByEntity(t))), nil
		}
		items, err := h.e.Repo.ListStatuses(ctx)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/statuses/{key}",
		Summary:     "Get status",
		Tags:        []string{"statuses"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key string `path:"key"`
	}) (*output[domain.Status], error) {
		s, err := h.e.Statuses.ByKey(input.Key)
		if errors.Is(err, status.ErrNotFound) {
			return nil, newAPIError(http.StatusNotFound, "status "+input.Key+" not found", nil)
		}
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-statuses-by-entity",
		Method:      http.MethodGet,
		Path:        "/statuses/entity/{type}",
		Summary:     "List statuses for an entity type",
		Tags:        []string{"statuses"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
	}) (*output[[]domain.Status], error) {
		t, err := entityType(input.Type)
		if err != nil {
			return nil, err
		}
		return ok(nonNil(h.e.Statuses.ByEntity(t))), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "default-status",
		Method:      http.MethodGet,
		Path:        "/statuses/entity/{type}/default",
		Summary:     "Default status for an entity type",
		Tags:        []string{"statuses"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type string `path:"type"`
	}) (*output[domain.Status], error) {
		t, err := entityType(input.Type)
		if err != nil {
			return nil, err
		}
		s, lookupErr := h.e.Statuses.Default(t)
		if lookupErr != nil {
			return nil, newAPIError(http.StatusNotFound, "no default status for "+t.Label(), nil)
		}
		return ok(s), nil
	})
}

func entityType(s string) (domain.EntityType, huma.StatusError) {
	t, found := domain.ParseEntityType(s)
	if !found {
		return "", newAPIError(http.StatusBadRequest, "unknown entity type '"+s+"'", nil)
	}
	return t, nil
}
