package domain

// EntityType names a kind of record tracked by the registry, key sequences and cascade table.
type EntityType string

const (
	EntityProject             EntityType = "Project"
	EntityActor               EntityType = "Actor"
	EntityEpic                EntityType = "Epic"
	EntityStory               EntityType = "Story"
	EntityAcceptanceCriterion EntityType = "AcceptanceCriterion"
	EntityTestCase            EntityType = "TestCase"
	EntityTestSet             EntityType = "TestSet"
	EntityTestRun             EntityType = "TestRun"
	// EntityGlobal marks statuses shared by every entity type.
	EntityGlobal EntityType = "Global"
)

// EntityTypes lists every concrete entity type.
var EntityTypes = []EntityType{
	EntityProject, EntityActor, EntityEpic, EntityStory,
	EntityAcceptanceCriterion, EntityTestCase, EntityTestSet, EntityTestRun,
}

// Label is the lower-case human name used in error messages.
func (t EntityType) Label() string {
	switch t {
	case EntityAcceptanceCriterion:
		return "acceptance criterion"
	case EntityTestCase:
		return "test case"
	case EntityTestSet:
		return "test set"
	case EntityTestRun:
		return "test run"
	case EntityProject:
		return "project"
	case EntityActor:
		return "actor"
	case EntityEpic:
		return "epic"
	case EntityStory:
		return "story"
	default:
		return string(t)
	}
}

// ParseEntityType accepts the canonical name or the URL plural.
func ParseEntityType(s string) (EntityType, bool) {
	for _, t := range append(EntityTypes, EntityGlobal) {
		if string(t) == s {
			return t, true
		}
	}
	switch s {
	case "projects":
		return EntityProject, true
	case "actors":
		return EntityActor, true
	case "epics":
		return EntityEpic, true
	case "stories":
		return EntityStory, true
	case "acceptance-criteria":
		return EntityAcceptanceCriterion, true
	case "test-cases":
		return EntityTestCase, true
	case "test-sets":
		return EntityTestSet, true
	case "test-runs":
		return EntityTestRun, true
	}
	return "", false
}

// Audit holds the bookkeeping columns shared by every business entity.
type Audit struct {
	CreatedAt string `json:"created_at" format:"date-time"`
	CreatedBy string `json:"created_by"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
	UpdatedBy string `json:"updated_by"`
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Audit
}

type Actor struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Audit
}

type Epic struct {
	ID          string  `json:"id"`
	ProjectID   *string `json:"project_id"`
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Audit
}

type Story struct {
	ID      string  `json:"id"`
	EpicID  string  `json:"epic_id"`
	Key     string  `json:"key"`
	ActorID *string `json:"actor_id"`
	// Actor is the actor's name at the time it was last assigned.
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Status  string `json:"status"`
	Audit
}

type AcceptanceCriterion struct {
	ID       string `json:"id"`
	StoryID  string `json:"story_id"`
	Key      string `json:"key"`
	Given    string `json:"given"`
	When     string `json:"when"`
	Then     string `json:"then"`
	Status   string `json:"status"`
	Valid    bool   `json:"valid"`
	Risk     string `json:"risk" enum:"Low,Medium,High"`
	Comments string `json:"comments"`
	Audit
}

type TestCase struct {
	ID                    string `json:"id"`
	AcceptanceCriterionID string `json:"acceptance_criterion_id"`
	Key                   string `json:"key"`
	Preconditions         string `json:"preconditions"`
	Steps                 string `json:"steps"`
	ExpectedResult        string `json:"expected_result"`
	Priority              string `json:"priority" enum:"Low,Medium,High"`
	TestStatus            string `json:"test_status"`
	Audit
}

type TestSet struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Audit
}

type TestRun struct {
	ID           string  `json:"id"`
	TestSetID    string  `json:"test_set_id"`
	TestCaseID   string  `json:"test_case_id"`
	Status       string  `json:"status"`
	ActualResult string  `json:"actual_result"`
	Notes        string  `json:"notes"`
	ExecutedBy   *string `json:"executed_by"`
	ExecutedAt   *string `json:"executed_at" format:"date-time"`
	Audit
}

// Status is one row of the status registry.
type Status struct {
	Key         string     `json:"key" yaml:"key"`
	Label       string     `json:"label" yaml:"label"`
	EntityType  EntityType `json:"entity_type" yaml:"entity_type"`
	Color       string     `json:"color" yaml:"color"`
	IsDeletable bool       `json:"is_deletable" yaml:"is_deletable"`
	IsArchived  bool       `json:"is_archived" yaml:"is_archived"`
	IsDefault   bool       `json:"is_default" yaml:"is_default"`
	IsLocked    bool       `json:"is_locked" yaml:"is_locked"`
	Rank        int        `json:"rank" yaml:"rank"`
}

// Risk and priority levels share the same scale.
const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"
)

// ValidLevel reports whether v is one of Low, Medium or High.
func ValidLevel(v string) bool {
	return v == LevelLow || v == LevelMedium || v == LevelHigh
}
