package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"reqline/internal/blob"
	"reqline/internal/domain"
	"reqline/internal/engine"
	"reqline/internal/repo"
)

func (h handlers) registerStories(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stories",
		Method:      http.MethodGet,
		Path:        "/stories",
		Summary:     "List stories",
		Tags:        []string{"stories"},
	}, func(ctx context.Context, input *struct {
		EpicID  string `query:"epic_id"`
		ActorID string `query:"actor_id"`
		Status  string `query:"status"`
	}) (*output[[]domain.Story], error) {
		items, err := h.e.ListStories(ctx, repo.StoryFilter{EpicID: input.EpicID, ActorID: input.ActorID, Status: input.Status})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(nonNil(items)), nil
	})

	registerByParent(h, api, "stories", "epic", h.e.ListStoriesByEpic)
	h.registerNextKey(api, "stories", domain.EntityStory, h.e.NextStoryKey)

	huma.Register(api, huma.Operation{
		OperationID: "get-story",
		Method:      http.MethodGet,
		Path:        "/stories/{id}",
		Summary:     "Get story",
		Tags:        []string{"stories"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[domain.Story], error) {
		s, err := h.e.GetStory(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-story",
		Method:        http.MethodPost,
		Path:          "/stories",
		Summary:       "Create story",
		Tags:          []string{"stories"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateStoryRequest `json:"body"`
	}) (*output[domain.Story], error) {
		s, err := h.e.CreateStory(ctx, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-story",
		Method:      http.MethodPut,
		Path:        "/stories/{id}",
		Summary:     "Update story",
		Tags:        []string{"stories"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateStoryRequest `json:"body"`
	}) (*output[domain.Story], error) {
		s, err := h.e.UpdateStory(ctx, input.ID, input.Body.toEngine())
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(s), nil
	})

	h.registerDelete(api, "stories", domain.EntityStory, h.e.DeleteStory)
	h.registerStoryTransfer(api)
}

func (h handlers) registerStoryTransfer(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "export-story",
		Method:      http.MethodGet,
		Path:        "/stories/{id}/export",
		Summary:     "Export story",
		Description: "Downloads the story with its acceptance criteria and test cases.",
		Tags:        []string{"stories"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		ContentDisposition string               `header:"Content-Disposition"`
		Body               engine.StoryDocument `json:"body"`
	}, error) {
		doc, err := h.e.ExportStory(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			ContentDisposition string               `header:"Content-Disposition"`
			Body               engine.StoryDocument `json:"body"`
		}{
			ContentDisposition: `attachment; filename="` + doc.Key + `.json"`,
			Body:               doc,
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "archive-story-export",
		Method:        http.MethodPost,
		Path:          "/stories/{id}/export/archive",
		Summary:       "Archive story export",
		Description:   "Writes the story export to the configured blob store.",
		Tags:          []string{"stories"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusServiceUnavailable, http.StatusInternalServerError},
	}, func(ctx context.Context, input *idPath) (*output[blob.Info], error) {
		if h.blob == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "export archive storage is not configured", nil)
		}
		doc, err := h.e.ExportStory(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		info, err := h.blob.Put(ctx, engine.ArchiveKey(doc.Key, h.now()), bytes.NewReader(data), "application/json")
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		h.log.Info().Str("story", doc.Key).Str("key", info.Key).Str("driver", string(h.blob.Driver())).Msg("story export archived")
		return ok(info), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-story-export-archives",
		Method:      http.MethodGet,
		Path:        "/stories/{id}/export/archive",
		Summary:     "List archived story exports",
		Tags:        []string{"stories"},
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *idPath) (*output[[]blob.Info], error) {
		if h.blob == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "export archive storage is not configured", nil)
		}
		s, err := h.e.GetStory(ctx, input.ID)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		items, err := h.blob.List(ctx, engine.ArchivePrefix+s.Key+"-")
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		own := items[:0]
		for _, it := range items {
			if engine.IsArchiveOf(s.Key, it.Key) {
				own = append(own, it)
			}
		}
		return ok(nonNil(own)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "import-story",
		Method:        http.MethodPost,
		Path:          "/stories/import",
		Summary:       "Import story",
		Description:   "Creates a story with its acceptance criteria and test cases under an epic. Keys are regenerated.",
		Tags:          []string{"stories"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body ImportStoryRequest `json:"body"`
	}) (*output[domain.Story], error) {
		s, err := h.e.ImportStory(ctx, input.Body.EpicID, input.Body.Story, input.Body.CreatedBy)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return ok(s), nil
	})
}
