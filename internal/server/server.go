package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"reqline/internal/blob"
	"reqline/internal/engine"
	"reqline/internal/metrics"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
	// Blob receives story export archives. Nil disables the archive route.
	Blob blob.Store
	// RateLimit is requests per second shared by all clients; 0 disables it.
	RateLimit float64
	RateBurst int
}

// apiError is the error envelope every failed request answers with.
type apiError struct {
	status  int
	Message string              `json:"error" example:"referenced epic does not exist"`
	Details []engine.FieldError `json:"details,omitempty"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

type handlers struct {
	e    engine.Engine
	log  zerolog.Logger
	blob blob.Store
	now  func() time.Time
}

// New returns an HTTP handler exposing the reqline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	if cfg.RateLimit < 0 || (cfg.RateLimit > 0 && cfg.RateBurst < 1) {
		return nil, fmt.Errorf("invalid rate limit %v/%d", cfg.RateLimit, cfg.RateBurst)
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return schemaError(status, msg, errs)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return schemaError(status, msg, errs)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(cfg.Log, cfg.Metrics))
	router.Use(rateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Metrics))

	hcfg := huma.DefaultConfig("reqline API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, log: cfg.Log, blob: cfg.Blob, now: time.Now}
	if cfg.Engine.Now != nil {
		h.now = cfg.Engine.Now
	}

	registerDocs(router, basePath)
	router.Handle("/metrics", cfg.Metrics.Handler())
	h.registerHealth(api)
	h.registerStatuses(group)
	h.registerProjects(group)
	h.registerActors(group)
	h.registerEpics(group)
	h.registerStories(group)
	h.registerCriteria(group)
	h.registerTestCases(group)
	h.registerTestSets(group)
	h.registerTestRuns(group)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, message string, details []engine.FieldError) huma.StatusError {
	return &apiError{status: status, Message: message, Details: details}
}

// schemaError converts huma's request validation failures. They answer 400
// like the engine's own validation errors.
func schemaError(status int, msg string, errs []error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	var details []engine.FieldError
	for _, err := range errs {
		var d *huma.ErrorDetail
		if errors.As(err, &d) {
			details = append(details, engine.FieldError{
				Field:   strings.TrimPrefix(strings.TrimPrefix(d.Location, "body"), "."),
				Message: d.Message,
			})
			continue
		}
		if err != nil {
			details = append(details, engine.FieldError{Message: err.Error()})
		}
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "validation") {
		msg = "validation failed"
	}
	return newAPIError(status, msg, details)
}

func (h handlers) handleError(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var (
		ve engine.ValidationError
		re engine.ReferenceError
		le engine.LockedError
		nd engine.StatusNotDeletableError
		ue engine.UniqueConstraintError
	)
	switch {
	case errors.As(err, &ve):
		return newAPIError(http.StatusBadRequest, "validation failed", ve.Fields)
	case errors.As(err, &re):
		return newAPIError(http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, engine.ErrNotFound):
		return newAPIError(http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &le):
		return newAPIError(http.StatusLocked, err.Error(), nil)
	case errors.As(err, &nd):
		return newAPIError(http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &ue):
		return newAPIError(http.StatusConflict, err.Error(), nil)
	}
	h.log.Error().Err(err).Str("request_id", middleware.GetReqID(ctx)).Msg("request failed")
	return newAPIError(http.StatusInternalServerError, "internal server error", nil)
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			if _, ok := op.Responses["default"]; ok {
				continue
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{
							Type:     huma.TypeObject,
							Required: []string{"error"},
							Properties: map[string]*huma.Schema{
								"error": {Type: huma.TypeString},
								"details": {
									Type: huma.TypeArray,
									Items: &huma.Schema{
										Type: huma.TypeObject,
										Properties: map[string]*huma.Schema{
											"field":   {Type: huma.TypeString},
											"message": {Type: huma.TypeString},
										},
									},
								},
							},
						},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>reqline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func (h handlers) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*output[HealthResponse], error) {
		return ok(HealthResponse{Status: "OK", Timestamp: h.now().UTC().Format(time.RFC3339)}), nil
	})
}

// output wraps a response body for huma.
type output[T any] struct {
	Body T `json:"body"`
}

func ok[T any](v T) *output[T] {
	return &output[T]{Body: v}
}

type idPath struct {
	ID string `path:"id"`
}

// writeErrors lists the statuses a mutating operation can answer with.
var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusLocked,
	http.StatusInternalServerError,
}
