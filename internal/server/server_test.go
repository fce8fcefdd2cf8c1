package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"reqline/internal/app"
	"reqline/internal/config"
	"reqline/internal/domain"
	"reqline/internal/engine"
)

type testServer struct {
	URL    string
	App    *app.App
	client *http.Client
}

type serverOption func(*config.Config)

func withFSBlob(cfg *config.Config) {
	cfg.Blob.Driver = "fs"
	cfg.Blob.Dir = filepath.Join(cfg.Database.Workspace, "exports")
}

func withRateLimit(limit float64, burst int) serverOption {
	return func(cfg *config.Config) {
		cfg.Server.RateLimit = limit
		cfg.Server.RateBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := zerolog.New(zerolog.NewTestWriter(t))
	a, err := app.Open(context.Background(), cfg, log)
	require.NoError(t, err)

	handler, err := New(Config{
		Engine:    a.Engine,
		BasePath:  cfg.Server.BasePath,
		Log:       log,
		Metrics:   a.Metrics,
		Blob:      a.Blob,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		a.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), App: a, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	return doJSON(t, s.client, method, s.URL+path, body)
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

// create posts body and decodes the 201 response into out.
func (s *testServer) create(t *testing.T, path string, body, out any) {
	t.Helper()
	res, data := s.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, out))
}

type errorBody struct {
	Error   string              `json:"error"`
	Details []engine.FieldError `json:"details"`
}

func decodeError(t *testing.T, data []byte) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body), string(data))
	return body
}

type tree struct {
	Project  domain.Project
	Epic     domain.Epic
	Story    domain.Story
	Criteria domain.AcceptanceCriterion
	Case     domain.TestCase
}

func (s *testServer) seed(t *testing.T) tree {
	t.Helper()
	var tr tree
	s.create(t, "/api/projects", map[string]any{"name": "Checkout", "created_by": "alice"}, &tr.Project)
	s.create(t, "/api/epics", map[string]any{"project_id": tr.Project.ID, "title": "Payments"}, &tr.Epic)
	s.create(t, "/api/stories", map[string]any{
		"epic_id": tr.Epic.ID, "actor": "Shopper", "action": "pay by card", "outcome": "the order is placed",
	}, &tr.Story)
	s.create(t, "/api/acceptance-criteria", map[string]any{
		"story_id": tr.Story.ID, "given": "a cart", "when": "I pay", "then": "I get a receipt", "risk": "High",
	}, &tr.Criteria)
	s.create(t, "/api/test-cases", map[string]any{
		"acceptance_criterion_id": tr.Criteria.ID, "steps": "pay with a test card", "expected_result": "receipt shown",
	}, &tr.Case)
	return tr
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "OK", health.Status)
	_, err := time.Parse(time.RFC3339, health.Timestamp)
	assert.NoError(t, err)

	srv.do(t, http.MethodGet, "/api/epics", nil)
	res, data = srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `reqline_http_requests_total{code="200",method="GET",route="/api/epics"}`)
}

func TestCRUDAndKeys(t *testing.T) {
	srv := newTestServer(t)
	tr := srv.seed(t)
	assert.Equal(t, "EP-01", tr.Epic.Key)
	assert.Equal(t, "Drafted", tr.Epic.Status)
	assert.Equal(t, "STORY-001", tr.Story.Key)
	assert.Equal(t, "AC-001", tr.Criteria.Key)
	assert.Equal(t, "TC-001", tr.Case.Key)
	assert.Equal(t, "Medium", tr.Case.Priority)

	res, data := srv.do(t, http.MethodGet, "/api/epics/next-key", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"key":"EP-02"}`, string(data))
	res, data = srv.do(t, http.MethodGet, "/api/epics/next-key", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"key":"EP-02"}`, string(data))

	res, data = srv.do(t, http.MethodPut, "/api/epics/"+tr.Epic.ID, map[string]any{"title": "Card payments", "updated_by": "bob"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var updated domain.Epic
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, "Card payments", updated.Title)
	assert.Equal(t, "bob", updated.UpdatedBy)

	var stories []domain.Story
	res, data = srv.do(t, http.MethodGet, "/api/stories/epic/"+tr.Epic.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(data, &stories))
	require.Len(t, stories, 1)
	assert.Equal(t, tr.Story.ID, stories[0].ID)

	res, data = srv.do(t, http.MethodGet, "/api/test-runs/test-set/nothing", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	res, data = srv.do(t, http.MethodPost, "/api/epics", map[string]any{"key": "EP-01", "title": "Duplicate"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "epic key already exists", decodeError(t, data).Error)

	res, data = srv.do(t, http.MethodPost, "/api/stories", map[string]any{"epic_id": "missing"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "referenced epic does not exist", decodeError(t, data).Error)

	res, data = srv.do(t, http.MethodGet, "/api/stories/missing", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "story missing not found", decodeError(t, data).Error)

	res, _ = srv.do(t, http.MethodDelete, "/api/epics/"+tr.Epic.ID, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	for _, path := range []string{
		"/api/epics/" + tr.Epic.ID,
		"/api/stories/" + tr.Story.ID,
		"/api/acceptance-criteria/" + tr.Criteria.ID,
		"/api/test-cases/" + tr.Case.ID,
	} {
		res, _ = srv.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, path)
	}
	res, _ = srv.do(t, http.MethodDelete, "/api/epics/"+tr.Epic.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestValidationDetails(t *testing.T) {
	srv := newTestServer(t)
	tr := srv.seed(t)

	cases := []struct {
		name  string
		path  string
		body  map[string]any
		field string
	}{
		{"blank title", "/api/epics", map[string]any{"title": "  "}, "title"},
		{"risk outside enum", "/api/acceptance-criteria", map[string]any{"story_id": tr.Story.ID, "risk": "Huge"}, "risk"},
		{"unknown status", "/api/epics", map[string]any{"title": "x", "status": "Shipped"}, "status"},
		{"empty bulk", "/api/test-sets/x/runs/bulk", map[string]any{"test_case_ids": []string{}}, "test_case_ids"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := srv.do(t, http.MethodPost, tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
			body := decodeError(t, data)
			assert.Equal(t, "validation failed", body.Error)
			require.NotEmpty(t, body.Details)
			var fields []string
			for _, d := range body.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	res, data := srv.do(t, http.MethodPost, "/api/projects", map[string]any{})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NotEmpty(t, decodeError(t, data).Details)
}

func TestLockedAndNotDeletable(t *testing.T) {
	srv := newTestServer(t)
	tr := srv.seed(t)

	res, data := srv.do(t, http.MethodPut, "/api/epics/"+tr.Epic.ID, map[string]any{"status": "EPIC_LOCKED"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPut, "/api/epics/"+tr.Epic.ID, map[string]any{"title": "Edited"})
	assert.Equal(t, http.StatusLocked, res.StatusCode)
	assert.Equal(t, "cannot modify locked epic", decodeError(t, data).Error)

	res, data = srv.do(t, http.MethodDelete, "/api/epics/"+tr.Epic.ID, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "epic in status 'Locked' cannot be deleted", decodeError(t, data).Error)

	res, data = srv.do(t, http.MethodPut, "/api/stories/"+tr.Story.ID, map[string]any{"status": "Locked"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, _ = srv.do(t, http.MethodPut, "/api/epics/"+tr.Epic.ID, map[string]any{"status": "Drafted"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, data = srv.do(t, http.MethodDelete, "/api/epics/"+tr.Epic.ID, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "story in status 'Locked' cannot be deleted", decodeError(t, data).Error)
	res, _ = srv.do(t, http.MethodGet, "/api/test-cases/"+tr.Case.ID, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestTestSetRunsAndSummary(t *testing.T) {
	srv := newTestServer(t)
	tr := srv.seed(t)
	var set domain.TestSet
	srv.create(t, "/api/test-sets", map[string]any{"title": "Regression"}, &set)
	assert.Equal(t, "SET-001", set.Key)

	res, data := srv.do(t, http.MethodPost, "/api/test-sets/"+set.ID+"/runs/bulk", map[string]any{
		"test_case_ids": []string{tr.Case.ID, "missing"},
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	res, _ = srv.do(t, http.MethodPost, "/api/test-sets/missing/runs/bulk", map[string]any{
		"test_case_ids": []string{tr.Case.ID},
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	var runs []domain.TestRun
	srv.create(t, "/api/test-sets/"+set.ID+"/runs/bulk", map[string]any{
		"test_case_ids": []string{tr.Case.ID, tr.Case.ID},
		"created_by":    "bob",
	}, &runs)
	require.Len(t, runs, 2)

	res, data = srv.do(t, http.MethodPut, "/api/test-runs/"+runs[0].ID, map[string]any{"status": "Fail", "updated_by": "carol"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var failed domain.TestRun
	require.NoError(t, json.Unmarshal(data, &failed))
	require.NotNil(t, failed.ExecutedBy)
	assert.Equal(t, "carol", *failed.ExecutedBy)
	assert.NotNil(t, failed.ExecutedAt)

	res, data = srv.do(t, http.MethodGet, "/api/test-sets/"+set.ID+"/runs", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var listed []domain.TestRun
	require.NoError(t, json.Unmarshal(data, &listed))
	assert.Len(t, listed, 2)

	res, data = srv.do(t, http.MethodGet, "/api/test-sets/"+set.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `[
		{"status":"Not Run","count":1},
		{"status":"Pass","count":0},
		{"status":"Fail","count":1},
		{"status":"Blocked","count":0}
	]`, string(data))

	res, _ = srv.do(t, http.MethodGet, "/api/test-sets/missing/runs", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStoryExportArchiveImport(t *testing.T) {
	srv := newTestServer(t, withFSBlob)
	tr := srv.seed(t)

	res, data := srv.do(t, http.MethodGet, "/api/stories/"+tr.Story.ID+"/export", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, `attachment; filename="STORY-001.json"`, res.Header.Get("Content-Disposition"))
	var doc engine.StoryDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, engine.StoryFormat, doc.Format)
	require.Len(t, doc.AcceptanceCriteria, 1)
	require.Len(t, doc.AcceptanceCriteria[0].TestCases, 1)

	res, data = srv.do(t, http.MethodPost, "/api/stories/"+tr.Story.ID+"/export/archive", nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var info struct {
		Key  string `json:"key"`
		Size int64  `json:"size_bytes"`
	}
	require.NoError(t, json.Unmarshal(data, &info))
	assert.True(t, strings.HasPrefix(info.Key, "exports/stories/STORY-001-"), info.Key)
	assert.Positive(t, info.Size)

	res, data = srv.do(t, http.MethodGet, "/api/stories/"+tr.Story.ID+"/export/archive", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var archives []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &archives))
	assert.Len(t, archives, 1)

	var target domain.Epic
	srv.create(t, "/api/epics", map[string]any{"project_id": tr.Project.ID, "title": "Refunds"}, &target)
	var imported domain.Story
	srv.create(t, "/api/stories/import", map[string]any{"epic_id": target.ID, "story": doc, "created_by": "dora"}, &imported)
	assert.Equal(t, "STORY-002", imported.Key)
	assert.Equal(t, target.ID, imported.EpicID)
	assert.Equal(t, "dora", imported.CreatedBy)

	res, data = srv.do(t, http.MethodGet, "/api/acceptance-criteria/story/"+imported.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var criteria []domain.AcceptanceCriterion
	require.NoError(t, json.Unmarshal(data, &criteria))
	require.Len(t, criteria, 1)
	assert.Equal(t, "AC-002", criteria[0].Key)
	assert.Equal(t, "High", criteria[0].Risk)

	res, _ = srv.do(t, http.MethodPost, "/api/stories/import", map[string]any{"epic_id": "missing", "story": doc})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestArchiveListingMatchesExactStoryKey(t *testing.T) {
	srv := newTestServer(t, withFSBlob)
	tr := srv.seed(t)

	var short, long domain.Story
	srv.create(t, "/api/stories", map[string]any{"epic_id": tr.Epic.ID, "key": "A", "action": "a"}, &short)
	srv.create(t, "/api/stories", map[string]any{"epic_id": tr.Epic.ID, "key": "A-B", "action": "b"}, &long)
	for _, id := range []string{short.ID, long.ID} {
		res, data := srv.do(t, http.MethodPost, "/api/stories/"+id+"/export/archive", nil)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	}

	res, data := srv.do(t, http.MethodGet, "/api/stories/"+short.ID+"/export/archive", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var archives []struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(data, &archives))
	require.Len(t, archives, 1)
	assert.True(t, strings.HasPrefix(archives[0].Key, "exports/stories/A-2"), archives[0].Key)
}

func TestArchiveWithoutBlobStore(t *testing.T) {
	srv := newTestServer(t)
	tr := srv.seed(t)
	res, data := srv.do(t, http.MethodPost, "/api/stories/"+tr.Story.ID+"/export/archive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "export archive storage is not configured", decodeError(t, data).Error)
}

func TestStatusRoutes(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/api/statuses", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var all []domain.Status
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Len(t, all, len(srv.App.Registry.All()))

	res, data = srv.do(t, http.MethodGet, "/api/statuses?entity_type=Epic", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var epics []domain.Status
	require.NoError(t, json.Unmarshal(data, &epics))
	require.Len(t, epics, 4)
	assert.Equal(t, "EPIC_DRAFTED", epics[0].Key)

	res, data = srv.do(t, http.MethodGet, "/api/statuses/EPIC_LOCKED", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var locked domain.Status
	require.NoError(t, json.Unmarshal(data, &locked))
	assert.True(t, locked.IsLocked)
	assert.False(t, locked.IsDeletable)

	res, data = srv.do(t, http.MethodGet, "/api/statuses/entity/test-runs/default", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var def domain.Status
	require.NoError(t, json.Unmarshal(data, &def))
	assert.Equal(t, "Not Run", def.Label)

	res, _ = srv.do(t, http.MethodGet, "/api/statuses/entity/TestSet", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, "/api/statuses/entity/widgets", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, "/api/statuses/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, withRateLimit(0.001, 1))

	res, _ := srv.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, data := srv.do(t, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "rate limit exceeded", decodeError(t, data).Error)

	res, _ = srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, data = srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "reqline_http_rate_limited_total 1")
}

func TestOpenAPIAndDocs(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/api/openapi.json", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var oas struct {
		Paths map[string]map[string]struct {
			Responses map[string]json.RawMessage `json:"responses"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(data, &oas))
	for _, path := range []string{
		"/api/epics", "/api/epics/{id}", "/api/epics/next-key", "/api/stories/import",
		"/api/test-sets/{id}/runs/bulk", "/api/statuses/entity/{type}/default", "/health",
	} {
		require.Contains(t, oas.Paths, path)
	}
	assert.Contains(t, oas.Paths["/api/epics"]["post"].Responses, "default")

	res, data = srv.do(t, http.MethodGet, "/docs", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/api/openapi.json")
}

func TestOpenAPIConcurrentFirstFetch(t *testing.T) {
	srv := newTestServer(t)

	bodies := make([][]byte, 8)
	var g errgroup.Group
	for i := range bodies {
		g.Go(func() error {
			res, err := srv.client.Get(srv.URL + "/api/openapi.json")
			if err != nil {
				return err
			}
			defer res.Body.Close()
			bodies[i], err = io.ReadAll(res.Body)
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
	assert.True(t, json.Valid(bodies[0]))
}
