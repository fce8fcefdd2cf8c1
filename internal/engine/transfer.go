package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

// StoryFormat identifies the export document layout.
const StoryFormat = "reqline.story/v1"

// ArchivePrefix is the blob key prefix for archived story exports.
const ArchivePrefix = "exports/stories/"

const archiveStamp = "20060102T150405Z"

// ArchiveKey names the archived export of a story taken at t.
func ArchiveKey(storyKey string, t time.Time) string {
	return ArchivePrefix + storyKey + "-" + t.UTC().Format(archiveStamp) + ".json"
}

// IsArchiveOf reports whether blobKey is an archived export of storyKey.
// Keys of other stories sharing the prefix (A and A-B) do not match.
func IsArchiveOf(storyKey, blobKey string) bool {
	rest, ok := strings.CutPrefix(blobKey, ArchivePrefix+storyKey+"-")
	if !ok {
		return false
	}
	stamp, ok := strings.CutSuffix(rest, ".json")
	if !ok {
		return false
	}
	_, err := time.Parse(archiveStamp, stamp)
	return err == nil
}

// StoryDocument is a story with its acceptance criteria and test cases, as
// exported for transfer between epics or workspaces.
type StoryDocument struct {
	Format             string              `json:"format,omitempty"`
	ExportedAt         string              `json:"exported_at,omitempty"`
	Key                string              `json:"key,omitempty"`
	ActorID            string              `json:"actor_id,omitempty"`
	Actor              string              `json:"actor,omitempty"`
	Action             string              `json:"action,omitempty"`
	Outcome            string              `json:"outcome,omitempty"`
	Status             string              `json:"status,omitempty"`
	AcceptanceCriteria []CriterionDocument `json:"acceptance_criteria,omitempty"`
}

type CriterionDocument struct {
	Key       string             `json:"key,omitempty"`
	Given     string             `json:"given,omitempty"`
	When      string             `json:"when,omitempty"`
	Then      string             `json:"then,omitempty"`
	Risk      string             `json:"risk,omitempty"`
	Valid     bool               `json:"valid,omitempty"`
	Comments  string             `json:"comments,omitempty"`
	Status    string             `json:"status,omitempty"`
	TestCases []TestCaseDocument `json:"test_cases,omitempty"`
}

type TestCaseDocument struct {
	Key            string `json:"key,omitempty"`
	Preconditions  string `json:"preconditions,omitempty"`
	Steps          string `json:"steps,omitempty"`
	ExpectedResult string `json:"expected_result,omitempty"`
	Priority       string `json:"priority,omitempty"`
	TestStatus     string `json:"test_status,omitempty"`
}

// ExportStory reads a story and everything below it into a StoryDocument.
func (e Engine) ExportStory(ctx context.Context, id string) (StoryDocument, error) {
	var doc StoryDocument
	err := e.inTx(ctx, func(r repo.Repo) error {
		s, err := r.GetStory(ctx, id)
		if err != nil {
			return err
		}
		doc = StoryDocument{
			Format:     StoryFormat,
			ExportedAt: e.timestamp(),
			Key:        s.Key,
			ActorID:    strValue(s.ActorID),
			Actor:      s.Actor,
			Action:     s.Action,
			Outcome:    s.Outcome,
			Status:     s.Status,
		}
		criteria, err := r.ListAcceptanceCriteria(ctx, repo.AcceptanceCriterionFilter{StoryID: s.ID})
		if err != nil {
			return err
		}
		for _, ac := range criteria {
			cd := CriterionDocument{
				Key:      ac.Key,
				Given:    ac.Given,
				When:     ac.When,
				Then:     ac.Then,
				Risk:     ac.Risk,
				Valid:    ac.Valid,
				Comments: ac.Comments,
				Status:   ac.Status,
			}
			cases, err := r.ListTestCases(ctx, repo.TestCaseFilter{AcceptanceCriterionID: ac.ID})
			if err != nil {
				return err
			}
			for _, tc := range cases {
				cd.TestCases = append(cd.TestCases, TestCaseDocument{
					Key:            tc.Key,
					Preconditions:  tc.Preconditions,
					Steps:          tc.Steps,
					ExpectedResult: tc.ExpectedResult,
					Priority:       tc.Priority,
					TestStatus:     tc.TestStatus,
				})
			}
			doc.AcceptanceCriteria = append(doc.AcceptanceCriteria, cd)
		}
		return nil
	})
	if err != nil {
		return StoryDocument{}, storeErr(domain.EntityStory, id, err)
	}
	return doc, nil
}

// ImportStory creates a story with its criteria and test cases under an epic.
// Keys are regenerated and every status starts at the registry default.
func (e Engine) ImportStory(ctx context.Context, epicID string, doc StoryDocument, createdBy string) (domain.Story, error) {
	var v validator
	v.require("epic_id", epicID)
	for i, ac := range doc.AcceptanceCriteria {
		v.level(fmt.Sprintf("acceptance_criteria[%d].risk", i), ac.Risk)
		for j, tc := range ac.TestCases {
			v.level(fmt.Sprintf("acceptance_criteria[%d].test_cases[%d].priority", i, j), tc.Priority)
		}
	}
	if err := v.err(); err != nil {
		return domain.Story{}, err
	}
	storyStatus, err := e.resolveStatus(domain.EntityStory, "status", "")
	if err != nil {
		return domain.Story{}, err
	}
	acStatus, err := e.resolveStatus(domain.EntityAcceptanceCriterion, "status", "")
	if err != nil {
		return domain.Story{}, err
	}
	tcStatus, err := e.resolveStatus(domain.EntityTestCase, "test_status", "")
	if err != nil {
		return domain.Story{}, err
	}
	audit := e.newAudit(createdBy)
	s := domain.Story{
		ID:      newID(),
		EpicID:  epicID,
		Actor:   strings.TrimSpace(doc.Actor),
		Action:  doc.Action,
		Outcome: doc.Outcome,
		Status:  storyStatus,
		Audit:   audit,
	}
	var created map[domain.EntityType]int
	err = e.inTx(ctx, func(r repo.Repo) error {
		created = map[domain.EntityType]int{}
		epic, err := r.GetEpic(ctx, epicID)
		if errors.Is(err, repo.ErrNotFound) {
			return TargetNotFoundError{Entity: domain.EntityEpic, ID: epicID}
		}
		if err != nil {
			return err
		}
		actor, placeholder, err := e.importActor(ctx, r, epic, doc, audit)
		if err != nil {
			return err
		}
		if actor != nil {
			s.ActorID = &actor.ID
			s.Actor = actor.Name
		}
		if placeholder {
			created[domain.EntityActor]++
		}
		if s.Key, err = r.NextKey(ctx, domain.EntityStory); err != nil {
			return err
		}
		if err := r.InsertStory(ctx, s); err != nil {
			return err
		}
		created[domain.EntityStory]++
		for _, cd := range doc.AcceptanceCriteria {
			ac := domain.AcceptanceCriterion{
				ID:       newID(),
				StoryID:  s.ID,
				Given:    cd.Given,
				When:     cd.When,
				Then:     cd.Then,
				Status:   acStatus,
				Valid:    cd.Valid,
				Risk:     orDefault(cd.Risk, domain.LevelLow),
				Comments: cd.Comments,
				Audit:    audit,
			}
			if ac.Key, err = r.NextKey(ctx, domain.EntityAcceptanceCriterion); err != nil {
				return err
			}
			if err := r.InsertAcceptanceCriterion(ctx, ac); err != nil {
				return err
			}
			created[domain.EntityAcceptanceCriterion]++
			for _, td := range cd.TestCases {
				tc := domain.TestCase{
					ID:                    newID(),
					AcceptanceCriterionID: ac.ID,
					Preconditions:         td.Preconditions,
					Steps:                 td.Steps,
					ExpectedResult:        td.ExpectedResult,
					Priority:              orDefault(td.Priority, domain.LevelMedium),
					TestStatus:            tcStatus,
					Audit:                 audit,
				}
				if tc.Key, err = r.NextKey(ctx, domain.EntityTestCase); err != nil {
					return err
				}
				if err := r.InsertTestCase(ctx, tc); err != nil {
					return err
				}
				created[domain.EntityTestCase]++
			}
		}
		return nil
	})
	if err != nil {
		return domain.Story{}, storeErr(domain.EntityStory, s.ID, err)
	}
	for t, n := range created {
		e.created(t, n)
	}
	e.Log.Info().Str("epic_id", epicID).Str("story", s.Key).
		Int("criteria", created[domain.EntityAcceptanceCriterion]).
		Int("test_cases", created[domain.EntityTestCase]).Msg("story imported")
	return e.GetStory(ctx, s.ID)
}

// importActor resolves the actor of an imported story within the epic's
// project: by id, then by name, then as a new placeholder actor. Epics outside
// a project keep only the name snapshot.
func (e Engine) importActor(ctx context.Context, r repo.Repo, epic domain.Epic, doc StoryDocument, audit domain.Audit) (*domain.Actor, bool, error) {
	if epic.ProjectID == nil {
		return nil, false, nil
	}
	if doc.ActorID != "" {
		a, err := r.GetActor(ctx, doc.ActorID)
		if err == nil && a.ProjectID == *epic.ProjectID {
			return &a, false, nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, false, err
		}
	}
	name := strings.TrimSpace(doc.Actor)
	if name == "" {
		return nil, false, nil
	}
	a, err := r.FindActorByName(ctx, *epic.ProjectID, name)
	if err == nil {
		return &a, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}
	a = domain.Actor{
		ID:          newID(),
		ProjectID:   *epic.ProjectID,
		Name:        name,
		Description: "Created by story import",
		Audit:       audit,
	}
	if err := r.InsertActor(ctx, a); err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
