package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

func (h handlers) registerProjects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*output[[]domain.Project], error) {
		items, err := h.e.ListProjects(ctx, repo.ProjectFilter{Status: input.Status})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Tags:        []string{"projects"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.Project], error) {
		p, err := h.e.GetProject(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*output[domain.Project], error) {
		p, err := h.e.CreateProject(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Tags:        []string{"projects"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*output[domain.Project], error) {
		p, err := h.e.UpdateProject(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(p), nil
	})

	h.registerDelete(api, "projects", domain.EntityProject, h.e.DeleteProject)
}

// registerDelete adds DELETE /<plural>/{id}, answering 204 on success.
func (h handlers) registerDelete(api huma.API, plural string, t domain.EntityType, del func(context.Context, string) error) {
	huma.Register(api, huma.Operation{
		OperationID:   "delete-" + singular(plural),
		Method:        http.MethodDelete,
		Path:          "/" + plural + "/{id}",
		Summary:       "Delete " + t.Label(),
		Description:   "Deletes the " + t.Label() + " and everything it owns in one transaction.",
		Tags:          []string{plural},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		if err := del(ctx, input.ID); err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct{}{}, nil
	})
}

// registerNextKey adds GET /<plural>/next-key.
func (h handlers) registerNextKey(api huma.API, plural string, t domain.EntityType, next func(context.Context) (string, error)) {
	huma.Register(api, huma.Operation{
		OperationID: "next-" + singular(plural) + "-key",
		Method:      http.MethodGet,
		Path:        "/" + plural + "/next-key",
		Summary:     "Preview the next " + t.Label() + " key",
		Description: "Reports the key the next create would assign without consuming it.",
		Tags:        []string{plural},
	}, func(ctx context.Context, _ *struct{}) (*output[NextKeyResponse], error) {
		key, err := next(ctx)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(NextKeyResponse{Key: key}), nil
	})
}

func singular(plural string) string {
	switch plural {
	case "stories":
		return "story"
	case "acceptance-criteria":
		return "acceptance-criterion"
	}
	if len(plural) > 1 && plural[len(plural)-1] == 's' {
		return plural[:len(plural)-1]
	}
	return plural
}

// registerByParent adds GET /<plural>/<parent>/{parentId}.
func registerByParent[T any](h handlers, api huma.API, plural, parent string, list func(context.Context, string) ([]T, error)) {
	huma.Register(api, huma.Operation{
		OperationID: "list-" + plural + "-by-" + parent,
		Method:      http.MethodGet,
		Path:        "/" + plural + "/" + parent + "/{parentId}",
		Summary:     "List " + plural + " by " + parent,
		Tags:        []string{plural},
	}, func(ctx context.Context, input *struct {
		ParentID string `path:"parentId"`
	}) (*output[[]T], error) {
		items, err := list(ctx, input.ParentID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})
}
