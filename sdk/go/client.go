package reqlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reqline/internal/domain"
	"reqline/internal/engine"
)

// Client is a reqline HTTP API client.
type Client struct {
	BaseURL string
	// BasePath is the API prefix, /api unless the server is configured otherwise.
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

type (
	Project             = domain.Project
	Actor               = domain.Actor
	Epic                = domain.Epic
	Story               = domain.Story
	AcceptanceCriterion = domain.AcceptanceCriterion
	TestCase            = domain.TestCase
	TestSet             = domain.TestSet
	TestRun             = domain.TestRun
	Status              = domain.Status
	StoryDocument       = engine.StoryDocument
	StatusCount         = engine.StatusCount
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	Status  int
	Message string
	Details []FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status=%d", e.Status)
	}
	return fmt.Sprintf("api error: status=%d: %s", e.Status, e.Message)
}

// ArchiveInfo describes a story export written to the server's blob store.
type ArchiveInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url,omitempty"`
}

// Inputs. Update fields left nil are not sent.

type ProjectInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type ActorInput struct {
	ProjectID   *string `json:"project_id,omitempty"`
	Name        *string `json:"name,omitempty"`
	Role        *string `json:"role,omitempty"`
	Description *string `json:"description,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type EpicInput struct {
	ProjectID   *string `json:"project_id,omitempty"`
	Key         *string `json:"key,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type StoryInput struct {
	EpicID    *string `json:"epic_id,omitempty"`
	Key       *string `json:"key,omitempty"`
	ActorID   *string `json:"actor_id,omitempty"`
	Actor     *string `json:"actor,omitempty"`
	Action    *string `json:"action,omitempty"`
	Outcome   *string `json:"outcome,omitempty"`
	Status    *string `json:"status,omitempty"`
	CreatedBy string  `json:"created_by,omitempty"`
	UpdatedBy string  `json:"updated_by,omitempty"`
}

type AcceptanceCriterionInput struct {
	StoryID   *string `json:"story_id,omitempty"`
	Key       *string `json:"key,omitempty"`
	Given     *string `json:"given,omitempty"`
	When      *string `json:"when,omitempty"`
	Then      *string `json:"then,omitempty"`
	Status    *string `json:"status,omitempty"`
	Valid     *bool   `json:"valid,omitempty"`
	Risk      *string `json:"risk,omitempty"`
	Comments  *string `json:"comments,omitempty"`
	CreatedBy string  `json:"created_by,omitempty"`
	UpdatedBy string  `json:"updated_by,omitempty"`
}

type TestCaseInput struct {
	AcceptanceCriterionID *string `json:"acceptance_criterion_id,omitempty"`
	Key                   *string `json:"key,omitempty"`
	Preconditions         *string `json:"preconditions,omitempty"`
	Steps                 *string `json:"steps,omitempty"`
	ExpectedResult        *string `json:"expected_result,omitempty"`
	Priority              *string `json:"priority,omitempty"`
	TestStatus            *string `json:"test_status,omitempty"`
	CreatedBy             string  `json:"created_by,omitempty"`
	UpdatedBy             string  `json:"updated_by,omitempty"`
}

type TestSetInput struct {
	Key         *string `json:"key,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	CreatedBy   string  `json:"created_by,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type TestRunInput struct {
	TestSetID    *string `json:"test_set_id,omitempty"`
	TestCaseID   *string `json:"test_case_id,omitempty"`
	Status       *string `json:"status,omitempty"`
	ActualResult *string `json:"actual_result,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	ExecutedBy   *string `json:"executed_by,omitempty"`
	ExecutedAt   *string `json:"executed_at,omitempty"`
	CreatedBy    string  `json:"created_by,omitempty"`
	UpdatedBy    string  `json:"updated_by,omitempty"`
}

// String returns a pointer to s, for input fields.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for input fields.
func Bool(b bool) *bool { return &b }

// Resource paths.
const (
	pathProjects = "projects"
	pathActors   = "actors"
	pathEpics    = "epics"
	pathStories  = "stories"
	pathCriteria = "acceptance-criteria"
	pathCases    = "test-cases"
	pathSets     = "test-sets"
	pathRuns     = "test-runs"
)

func list[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var out []T
	err := c.do(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

func get[T any](ctx context.Context, c *Client, plural, id string) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, plural+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func create[T any](ctx context.Context, c *Client, plural string, in any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, plural, in, &out)
	return out, err
}

func update[T any](ctx context.Context, c *Client, plural, id string, in any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPut, plural+"/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) remove(ctx context.Context, plural, id string) error {
	return c.do(ctx, http.MethodDelete, plural+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) nextKey(ctx context.Context, plural string) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	err := c.do(ctx, http.MethodGet, plural+"/next-key", nil, &out)
	return out.Key, err
}

func filter(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}

func (c *Client) ListProjects(ctx context.Context, status string) ([]Project, error) {
	return list[Project](ctx, c, pathProjects, filter("status", status))
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	return get[Project](ctx, c, pathProjects, id)
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (Project, error) {
	return create[Project](ctx, c, pathProjects, in)
}

func (c *Client) UpdateProject(ctx context.Context, id string, in ProjectInput) (Project, error) {
	return update[Project](ctx, c, pathProjects, id, in)
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.remove(ctx, pathProjects, id)
}

func (c *Client) ListActors(ctx context.Context, projectID string) ([]Actor, error) {
	return list[Actor](ctx, c, pathActors, filter("project_id", projectID))
}

func (c *Client) GetActor(ctx context.Context, id string) (Actor, error) {
	return get[Actor](ctx, c, pathActors, id)
}

func (c *Client) CreateActor(ctx context.Context, in ActorInput) (Actor, error) {
	return create[Actor](ctx, c, pathActors, in)
}

func (c *Client) UpdateActor(ctx context.Context, id string, in ActorInput) (Actor, error) {
	return update[Actor](ctx, c, pathActors, id, in)
}

func (c *Client) DeleteActor(ctx context.Context, id string) error {
	return c.remove(ctx, pathActors, id)
}

func (c *Client) ListEpics(ctx context.Context, projectID, status string) ([]Epic, error) {
	return list[Epic](ctx, c, pathEpics, filter("project_id", projectID, "status", status))
}

func (c *Client) GetEpic(ctx context.Context, id string) (Epic, error) {
	return get[Epic](ctx, c, pathEpics, id)
}

func (c *Client) NextEpicKey(ctx context.Context) (string, error) {
	return c.nextKey(ctx, pathEpics)
}

func (c *Client) CreateEpic(ctx context.Context, in EpicInput) (Epic, error) {
	return create[Epic](ctx, c, pathEpics, in)
}

func (c *Client) UpdateEpic(ctx context.Context, id string, in EpicInput) (Epic, error) {
	return update[Epic](ctx, c, pathEpics, id, in)
}

func (c *Client) DeleteEpic(ctx context.Context, id string) error {
	return c.remove(ctx, pathEpics, id)
}

func (c *Client) ListStories(ctx context.Context, epicID, status string) ([]Story, error) {
	return list[Story](ctx, c, pathStories, filter("epic_id", epicID, "status", status))
}

func (c *Client) GetStory(ctx context.Context, id string) (Story, error) {
	return get[Story](ctx, c, pathStories, id)
}

func (c *Client) NextStoryKey(ctx context.Context) (string, error) {
	return c.nextKey(ctx, pathStories)
}

func (c *Client) CreateStory(ctx context.Context, in StoryInput) (Story, error) {
	return create[Story](ctx, c, pathStories, in)
}

func (c *Client) UpdateStory(ctx context.Context, id string, in StoryInput) (Story, error) {
	return update[Story](ctx, c, pathStories, id, in)
}

func (c *Client) DeleteStory(ctx context.Context, id string) error {
	return c.remove(ctx, pathStories, id)
}

// ExportStory downloads a story with its acceptance criteria and test cases.
func (c *Client) ExportStory(ctx context.Context, id string) (StoryDocument, error) {
	var out StoryDocument
	err := c.do(ctx, http.MethodGet, pathStories+"/"+url.PathEscape(id)+"/export", nil, &out)
	return out, err
}

// ArchiveStoryExport asks the server to write the export to its blob store.
func (c *Client) ArchiveStoryExport(ctx context.Context, id string) (ArchiveInfo, error) {
	var out ArchiveInfo
	err := c.do(ctx, http.MethodPost, pathStories+"/"+url.PathEscape(id)+"/export/archive", nil, &out)
	return out, err
}

func (c *Client) ListStoryArchives(ctx context.Context, id string) ([]ArchiveInfo, error) {
	return list[ArchiveInfo](ctx, c, pathStories+"/"+url.PathEscape(id)+"/export/archive", nil)
}

// ImportStory creates doc under an epic with fresh keys.
func (c *Client) ImportStory(ctx context.Context, epicID string, doc StoryDocument, createdBy string) (Story, error) {
	body := map[string]any{
		"epic_id": epicID,
		"story":   doc,
	}
	if createdBy != "" {
		body["created_by"] = createdBy
	}
	var out Story
	err := c.do(ctx, http.MethodPost, pathStories+"/import", body, &out)
	return out, err
}

func (c *Client) ListAcceptanceCriteria(ctx context.Context, storyID string) ([]AcceptanceCriterion, error) {
	return list[AcceptanceCriterion](ctx, c, pathCriteria, filter("story_id", storyID))
}

func (c *Client) GetAcceptanceCriterion(ctx context.Context, id string) (AcceptanceCriterion, error) {
	return get[AcceptanceCriterion](ctx, c, pathCriteria, id)
}

func (c *Client) NextAcceptanceCriterionKey(ctx context.Context) (string, error) {
	return c.nextKey(ctx, pathCriteria)
}

func (c *Client) CreateAcceptanceCriterion(ctx context.Context, in AcceptanceCriterionInput) (AcceptanceCriterion, error) {
	return create[AcceptanceCriterion](ctx, c, pathCriteria, in)
}

func (c *Client) UpdateAcceptanceCriterion(ctx context.Context, id string, in AcceptanceCriterionInput) (AcceptanceCriterion, error) {
	return update[AcceptanceCriterion](ctx, c, pathCriteria, id, in)
}

func (c *Client) DeleteAcceptanceCriterion(ctx context.Context, id string) error {
	return c.remove(ctx, pathCriteria, id)
}

func (c *Client) ListTestCases(ctx context.Context, acceptanceCriterionID string) ([]TestCase, error) {
	return list[TestCase](ctx, c, pathCases, filter("acceptance_criterion_id", acceptanceCriterionID))
}

func (c *Client) GetTestCase(ctx context.Context, id string) (TestCase, error) {
	return get[TestCase](ctx, c, pathCases, id)
}

func (c *Client) NextTestCaseKey(ctx context.Context) (string, error) {
	return c.nextKey(ctx, pathCases)
}

func (c *Client) CreateTestCase(ctx context.Context, in TestCaseInput) (TestCase, error) {
	return create[TestCase](ctx, c, pathCases, in)
}

func (c *Client) UpdateTestCase(ctx context.Context, id string, in TestCaseInput) (TestCase, error) {
	return update[TestCase](ctx, c, pathCases, id, in)
}

func (c *Client) DeleteTestCase(ctx context.Context, id string) error {
	return c.remove(ctx, pathCases, id)
}

func (c *Client) ListTestSets(ctx context.Context, status string) ([]TestSet, error) {
	return list[TestSet](ctx, c, pathSets, filter("status", status))
}

func (c *Client) GetTestSet(ctx context.Context, id string) (TestSet, error) {
	return get[TestSet](ctx, c, pathSets, id)
}

func (c *Client) NextTestSetKey(ctx context.Context) (string, error) {
	return c.nextKey(ctx, pathSets)
}

func (c *Client) CreateTestSet(ctx context.Context, in TestSetInput) (TestSet, error) {
	return create[TestSet](ctx, c, pathSets, in)
}

func (c *Client) UpdateTestSet(ctx context.Context, id string, in TestSetInput) (TestSet, error) {
	return update[TestSet](ctx, c, pathSets, id, in)
}

func (c *Client) DeleteTestSet(ctx context.Context, id string) error {
	return c.remove(ctx, pathSets, id)
}

// TestSetRuns lists the runs of a set. It fails with 404 for an unknown set.
func (c *Client) TestSetRuns(ctx context.Context, testSetID string) ([]TestRun, error) {
	return list[TestRun](ctx, c, pathSets+"/"+url.PathEscape(testSetID)+"/runs", nil)
}

// AddTestCasesToSet creates one run per test case, all or nothing.
func (c *Client) AddTestCasesToSet(ctx context.Context, testSetID string, testCaseIDs []string, createdBy string) ([]TestRun, error) {
	body := map[string]any{"test_case_ids": testCaseIDs}
	if createdBy != "" {
		body["created_by"] = createdBy
	}
	var out []TestRun
	err := c.do(ctx, http.MethodPost, pathSets+"/"+url.PathEscape(testSetID)+"/runs/bulk", body, &out)
	return out, err
}

func (c *Client) TestSetSummary(ctx context.Context, testSetID string) ([]StatusCount, error) {
	return list[StatusCount](ctx, c, pathSets+"/"+url.PathEscape(testSetID)+"/summary", nil)
}

func (c *Client) ListTestRuns(ctx context.Context, testSetID, testCaseID string) ([]TestRun, error) {
	return list[TestRun](ctx, c, pathRuns, filter("test_set_id", testSetID, "test_case_id", testCaseID))
}

func (c *Client) GetTestRun(ctx context.Context, id string) (TestRun, error) {
	return get[TestRun](ctx, c, pathRuns, id)
}

func (c *Client) CreateTestRun(ctx context.Context, in TestRunInput) (TestRun, error) {
	return create[TestRun](ctx, c, pathRuns, in)
}

func (c *Client) UpdateTestRun(ctx context.Context, id string, in TestRunInput) (TestRun, error) {
	return update[TestRun](ctx, c, pathRuns, id, in)
}

func (c *Client) DeleteTestRun(ctx context.Context, id string) error {
	return c.remove(ctx, pathRuns, id)
}

// Statuses lists the registry, narrowed to one entity type (plus Global) when entityType is set.
func (c *Client) Statuses(ctx context.Context, entityType string) ([]Status, error) {
	return list[Status](ctx, c, "statuses", filter("entity_type", entityType))
}

func (c *Client) DefaultStatus(ctx context.Context, entityType string) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "statuses/entity/"+url.PathEscape(entityType)+"/default", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error   string       `json:"error"`
			Details []FieldError `json:"details"`
		}
		if json.Unmarshal(b, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
			apiErr.Details = envelope.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}
