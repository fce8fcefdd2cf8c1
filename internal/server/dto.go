package server

import (
	"reqline/internal/engine"
)

// Request payloads. Optional fields on updates are pointers so an omitted
// field leaves the stored value alone.

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type CreateActorRequest struct {
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type UpdateActorRequest struct {
	Name        *string `json:"name,omitempty"`
	Role        *string `json:"role,omitempty"`
	Description *string `json:"description,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type CreateEpicRequest struct {
	ProjectID   string `json:"project_id,omitempty"`
	Key         string `json:"key,omitempty" example:"EP-01"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type UpdateEpicRequest struct {
	ProjectID   *string `json:"project_id,omitempty"`
	Key         *string `json:"key,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type CreateStoryRequest struct {
	EpicID    string `json:"epic_id"`
	Key       string `json:"key,omitempty" example:"STORY-001"`
	ActorID   string `json:"actor_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Action    string `json:"action,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

type UpdateStoryRequest struct {
	EpicID    *string `json:"epic_id,omitempty"`
	Key       *string `json:"key,omitempty"`
	ActorID   *string `json:"actor_id,omitempty"`
	Actor     *string `json:"actor,omitempty"`
	Action    *string `json:"action,omitempty"`
	Outcome   *string `json:"outcome,omitempty"`
	Status    *string `json:"status,omitempty"`
	UpdatedBy string  `json:"updated_by,omitempty"`
}

type CreateAcceptanceCriterionRequest struct {
	StoryID   string `json:"story_id"`
	Key       string `json:"key,omitempty" example:"AC-001"`
	Given     string `json:"given,omitempty"`
	When      string `json:"when,omitempty"`
	Then      string `json:"then,omitempty"`
	Status    string `json:"status,omitempty"`
	Valid     bool   `json:"valid,omitempty"`
	Risk      string `json:"risk,omitempty" enum:"Low,Medium,High"`
	Comments  string `json:"comments,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

type UpdateAcceptanceCriterionRequest struct {
	StoryID   *string `json:"story_id,omitempty"`
	Key       *string `json:"key,omitempty"`
	Given     *string `json:"given,omitempty"`
	When      *string `json:"when,omitempty"`
	Then      *string `json:"then,omitempty"`
	Status    *string `json:"status,omitempty"`
	Valid     *bool   `json:"valid,omitempty"`
	Risk      *string `json:"risk,omitempty" enum:"Low,Medium,High"`
	Comments  *string `json:"comments,omitempty"`
	UpdatedBy string  `json:"updated_by,omitempty"`
}

type CreateTestCaseRequest struct {
	AcceptanceCriterionID string `json:"acceptance_criterion_id"`
	Key                   string `json:"key,omitempty" example:"TC-001"`
	Preconditions         string `json:"preconditions,omitempty"`
	Steps                 string `json:"steps,omitempty"`
	ExpectedResult        string `json:"expected_result,omitempty"`
	Priority              string `json:"priority,omitempty" enum:"Low,Medium,High"`
	TestStatus            string `json:"test_status,omitempty"`
	CreatedBy             string `json:"created_by,omitempty"`
}

type UpdateTestCaseRequest struct {
	AcceptanceCriterionID *string `json:"acceptance_criterion_id,omitempty"`
	Key                   *string `json:"key,omitempty"`
	Preconditions         *string `json:"preconditions,omitempty"`
	Steps                 *string `json:"steps,omitempty"`
	ExpectedResult        *string `json:"expected_result,omitempty"`
	Priority              *string `json:"priority,omitempty" enum:"Low,Medium,High"`
	TestStatus            *string `json:"test_status,omitempty"`
	UpdatedBy             string  `json:"updated_by,omitempty"`
}

type CreateTestSetRequest struct {
	Key         string `json:"key,omitempty" example:"SET-001"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type UpdateTestSetRequest struct {
	Key         *string `json:"key,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	UpdatedBy   string  `json:"updated_by,omitempty"`
}

type CreateTestRunRequest struct {
	TestSetID    string `json:"test_set_id"`
	TestCaseID   string `json:"test_case_id"`
	Status       string `json:"status,omitempty"`
	ActualResult string `json:"actual_result,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
}

type UpdateTestRunRequest struct {
	Status       *string `json:"status,omitempty"`
	ActualResult *string `json:"actual_result,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	ExecutedBy   *string `json:"executed_by,omitempty"`
	ExecutedAt   *string `json:"executed_at,omitempty"`
	UpdatedBy    string  `json:"updated_by,omitempty"`
}

type BulkTestRunsRequest struct {
	TestCaseIDs []string `json:"test_case_ids"`
	CreatedBy   string   `json:"created_by,omitempty"`
}

type ImportStoryRequest struct {
	EpicID    string               `json:"epic_id"`
	Story     engine.StoryDocument `json:"story"`
	CreatedBy string               `json:"created_by,omitempty"`
}

// Response payloads

type NextKeyResponse struct {
	Key string `json:"key" example:"EP-01"`
}

type HealthResponse struct {
	Status    string `json:"status" example:"OK"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

func (r CreateProjectRequest) toEngine() engine.ProjectCreate {
	return engine.ProjectCreate{Name: r.Name, Description: r.Description, Status: r.Status, CreatedBy: r.CreatedBy}
}

func (r UpdateProjectRequest) toEngine() engine.ProjectUpdate {
	return engine.ProjectUpdate{Name: r.Name, Description: r.Description, Status: r.Status, UpdatedBy: r.UpdatedBy}
}

func (r CreateActorRequest) toEngine() engine.ActorCreate {
	return engine.ActorCreate{ProjectID: r.ProjectID, Name: r.Name, Role: r.Role, Description: r.Description, CreatedBy: r.CreatedBy}
}

func (r UpdateActorRequest) toEngine() engine.ActorUpdate {
	return engine.ActorUpdate{Name: r.Name, Role: r.Role, Description: r.Description, UpdatedBy: r.UpdatedBy}
}

func (r CreateEpicRequest) toEngine() engine.EpicCreate {
	return engine.EpicCreate{
		ProjectID: r.ProjectID, Key: r.Key, Title: r.Title, Description: r.Description,
		Status: r.Status, CreatedBy: r.CreatedBy,
	}
}

func (r UpdateEpicRequest) toEngine() engine.EpicUpdate {
	return engine.EpicUpdate{
		ProjectID: r.ProjectID, Key: r.Key, Title: r.Title, Description: r.Description,
		Status: r.Status, UpdatedBy: r.UpdatedBy,
	}
}

func (r CreateStoryRequest) toEngine() engine.StoryCreate {
	return engine.StoryCreate{
		EpicID: r.EpicID, Key: r.Key, ActorID: r.ActorID, Actor: r.Actor, Action: r.Action,
		Outcome: r.Outcome, Status: r.Status, CreatedBy: r.CreatedBy,
	}
}

func (r UpdateStoryRequest) toEngine() engine.StoryUpdate {
	return engine.StoryUpdate{
		EpicID: r.EpicID, Key: r.Key, ActorID: r.ActorID, Actor: r.Actor, Action: r.Action,
		Outcome: r.Outcome, Status: r.Status, UpdatedBy: r.UpdatedBy,
	}
}

func (r CreateAcceptanceCriterionRequest) toEngine() engine.AcceptanceCriterionCreate {
	return engine.AcceptanceCriterionCreate{
		StoryID: r.StoryID, Key: r.Key, Given: r.Given, When: r.When, Then: r.Then, Status: r.Status,
		Valid: r.Valid, Risk: r.Risk, Comments: r.Comments, CreatedBy: r.CreatedBy,
	}
}

func (r UpdateAcceptanceCriterionRequest) toEngine() engine.AcceptanceCriterionUpdate {
	return engine.AcceptanceCriterionUpdate{
		StoryID: r.StoryID, Key: r.Key, Given: r.Given, When: r.When, Then: r.Then, Status: r.Status,
		Valid: r.Valid, Risk: r.Risk, Comments: r.Comments, UpdatedBy: r.UpdatedBy,
	}
}

func (r CreateTestCaseRequest) toEngine() engine.TestCaseCreate {
	return engine.TestCaseCreate{
		AcceptanceCriterionID: r.AcceptanceCriterionID, Key: r.Key, Preconditions: r.Preconditions,
		Steps: r.Steps, ExpectedResult: r.ExpectedResult, Priority: r.Priority, TestStatus: r.TestStatus,
		CreatedBy: r.CreatedBy,
	}
}

func (r UpdateTestCaseRequest) toEngine() engine.TestCaseUpdate {
	return engine.TestCaseUpdate{
		AcceptanceCriterionID: r.AcceptanceCriterionID, Key: r.Key, Preconditions: r.Preconditions,
		Steps: r.Steps, ExpectedResult: r.ExpectedResult, Priority: r.Priority, TestStatus: r.TestStatus,
		UpdatedBy: r.UpdatedBy,
	}
}

func (r CreateTestSetRequest) toEngine() engine.TestSetCreate {
	return engine.TestSetCreate{Key: r.Key, Title: r.Title, Description: r.Description, Status: r.Status, CreatedBy: r.CreatedBy}
}

func (r UpdateTestSetRequest) toEngine() engine.TestSetUpdate {
	return engine.TestSetUpdate{Key: r.Key, Title: r.Title, Description: r.Description, Status: r.Status, UpdatedBy: r.UpdatedBy}
}

func (r CreateTestRunRequest) toEngine() engine.TestRunCreate {
	return engine.TestRunCreate{
		TestSetID: r.TestSetID, TestCaseID: r.TestCaseID, Status: r.Status,
		ActualResult: r.ActualResult, Notes: r.Notes, CreatedBy: r.CreatedBy,
	}
}

func (r UpdateTestRunRequest) toEngine() engine.TestRunUpdate {
	return engine.TestRunUpdate{
		Status: r.Status, ActualResult: r.ActualResult, Notes: r.Notes,
		ExecutedBy: r.ExecutedBy, ExecutedAt: r.ExecutedAt, UpdatedBy: r.UpdatedBy,
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
