package engine_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"reqline/internal/db"
	"reqline/internal/domain"
	"reqline/internal/engine"
	"reqline/internal/migrate"
	"reqline/internal/status"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn, dialect)
	require.NoError(t, err, "migrate")
	eng := engine.New(conn, dialect, status.NewRegistry(status.DefaultSeed()...))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	eng.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	return testEnv{Engine: eng, Ctx: ctx}
}

func ptr[T any](v T) *T { return &v }

func (env testEnv) count(t *testing.T, et domain.EntityType) int {
	t.Helper()
	n, err := env.Engine.Repo.Count(env.Ctx, et)
	require.NoError(t, err)
	return n
}

// tree is a project with one epic holding a story, two criteria and a test
// case per criterion, plus a test set with a run for each case.
type tree struct {
	Project domain.Project
	Actor   domain.Actor
	Epic    domain.Epic
	Story   domain.Story
	ACs     []domain.AcceptanceCriterion
	Cases   []domain.TestCase
	Set     domain.TestSet
	Runs    []domain.TestRun
}

func (env testEnv) seedTree(t *testing.T) tree {
	t.Helper()
	e, ctx := env.Engine, env.Ctx
	var tr tree
	var err error
	tr.Project, err = e.CreateProject(ctx, engine.ProjectCreate{Name: "Checkout", CreatedBy: "alice"})
	require.NoError(t, err)
	tr.Actor, err = e.CreateActor(ctx, engine.ActorCreate{ProjectID: tr.Project.ID, Name: "Shopper"})
	require.NoError(t, err)
	tr.Epic, err = e.CreateEpic(ctx, engine.EpicCreate{ProjectID: tr.Project.ID, Title: "Payments"})
	require.NoError(t, err)
	tr.Story, err = e.CreateStory(ctx, engine.StoryCreate{
		EpicID: tr.Epic.ID, ActorID: tr.Actor.ID, Action: "pay by card", Outcome: "the order is confirmed",
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		ac, err := e.CreateAcceptanceCriterion(ctx, engine.AcceptanceCriterionCreate{
			StoryID: tr.Story.ID,
			Given:   fmt.Sprintf("a cart %d", i),
			When:    "the shopper pays",
			Then:    "a receipt is shown",
			Risk:    domain.LevelHigh,
		})
		require.NoError(t, err)
		tr.ACs = append(tr.ACs, ac)
		tc, err := e.CreateTestCase(ctx, engine.TestCaseCreate{
			AcceptanceCriterionID: ac.ID,
			Steps:                 "1. add item\n2. pay",
			ExpectedResult:        "receipt",
		})
		require.NoError(t, err)
		tr.Cases = append(tr.Cases, tc)
	}
	tr.Set, err = e.CreateTestSet(ctx, engine.TestSetCreate{Title: "Regression"})
	require.NoError(t, err)
	tr.Runs, err = e.CreateTestRuns(ctx, tr.Set.ID, []string{tr.Cases[0].ID, tr.Cases[1].ID}, "bob")
	require.NoError(t, err)
	return tr
}

func TestSeedKeysOnFreshDatabase(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx

	next := map[string]func(context.Context) (string, error){
		"EP-01":     e.NextEpicKey,
		"STORY-001": e.NextStoryKey,
		"AC-001":    e.NextAcceptanceCriterionKey,
		"TC-001":    e.NextTestCaseKey,
		"SET-001":   e.NextTestSetKey,
	}
	for want, fn := range next {
		got, err := fn(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestKeysAdvanceAndPeekDoesNotConsume(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx

	peek, err := e.NextEpicKey(ctx)
	require.NoError(t, err)
	peek2, err := e.NextEpicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, peek, peek2)

	first, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "One"})
	require.NoError(t, err)
	assert.Equal(t, peek, first.Key)

	_, err = e.CreateEpic(ctx, engine.EpicCreate{Title: "Manual", Key: "EP-41"})
	require.NoError(t, err)
	third, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "Three"})
	require.NoError(t, err)
	assert.Equal(t, "EP-42", third.Key)

	// a deleted key is not reissued
	require.NoError(t, e.DeleteEpic(ctx, third.ID))
	fourth, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "Four"})
	require.NoError(t, err)
	assert.Equal(t, "EP-43", fourth.Key)
}

func TestDuplicateKeyIsUniqueConstraintError(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreate{Title: "A", Key: "EP-07"})
	require.NoError(t, err)
	_, err = env.Engine.CreateEpic(env.Ctx, engine.EpicCreate{Title: "B", Key: "EP-07"})
	var ue engine.UniqueConstraintError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.EntityEpic, ue.Entity)
	assert.Equal(t, 1, env.count(t, domain.EntityEpic))
}

func TestOversizedCallerKeyDoesNotBreakSequence(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	_, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "Imported", Key: "EP-9223372036854775807"})
	require.NoError(t, err)

	for _, want := range []string{"EP-01", "EP-02"} {
		ep, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "Generated"})
		require.NoError(t, err)
		assert.Equal(t, want, ep.Key)
	}
	next, err := e.NextEpicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EP-03", next)
}

func TestConcurrentCriterionKeysAreUnique(t *testing.T) {
	env := newTestEnv(t)
	tr := env.seedTree(t)

	const n = 20
	keys := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			ac, err := env.Engine.CreateAcceptanceCriterion(env.Ctx, engine.AcceptanceCriterionCreate{
				StoryID: tr.Story.ID, Given: "g", When: "w", Then: "t",
			})
			keys[i] = ac.Key
			return err
		})
	}
	require.NoError(t, g.Wait())

	pattern := regexp.MustCompile(`^AC-\d{3}$`)
	seen := map[string]bool{}
	for _, k := range keys {
		assert.Regexp(t, pattern, k)
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	for _, ac := range tr.ACs {
		assert.False(t, seen[ac.Key])
	}
}

func TestDefaultsOnCreate(t *testing.T) {
	env := newTestEnv(t)
	tr := env.seedTree(t)

	assert.Equal(t, "Planned", tr.Project.Status)
	assert.Equal(t, "alice", tr.Project.CreatedBy)
	assert.Equal(t, engine.DefaultUser, tr.Epic.CreatedBy)
	assert.Equal(t, "Drafted", tr.Epic.Status)
	assert.Equal(t, "Shopper", tr.Story.Actor)
	assert.Equal(t, tr.Actor.ID, *tr.Story.ActorID)
	assert.Equal(t, "Drafted", tr.ACs[0].Status)
	assert.Equal(t, domain.LevelHigh, tr.ACs[0].Risk)
	assert.Equal(t, domain.LevelMedium, tr.Cases[0].Priority)
	assert.Equal(t, "Not Run", tr.Cases[0].TestStatus)
	assert.Equal(t, "Planned", tr.Set.Status)
	require.Len(t, tr.Runs, 2)
	assert.Equal(t, "Not Run", tr.Runs[0].Status)
	assert.Nil(t, tr.Runs[0].ExecutedAt)
}

func TestStatusAcceptsKeyOrLabel(t *testing.T) {
	env := newTestEnv(t)
	ep, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreate{Title: "A", Status: "epic_reviewed"})
	require.NoError(t, err)
	assert.Equal(t, "Reviewed", ep.Status)

	_, err = env.Engine.CreateEpic(env.Ctx, engine.EpicCreate{Title: "B", Status: "Shipped"})
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Fields[0].Field)
}

func TestValidationAndReferenceErrors(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx

	_, err := e.CreateEpic(ctx, engine.EpicCreate{})
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []engine.FieldError{{Field: "title", Message: "is required"}}, ve.Fields)

	_, err = e.CreateStory(ctx, engine.StoryCreate{EpicID: "missing"})
	var re engine.ReferenceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.EntityEpic, re.Entity)
	assert.Equal(t, "referenced epic does not exist", err.Error())

	_, err = e.CreateEpic(ctx, engine.EpicCreate{Title: "x", ProjectID: "missing"})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.EntityProject, re.Entity)

	ep, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "x"})
	require.NoError(t, err)
	_, err = e.CreateStory(ctx, engine.StoryCreate{EpicID: ep.ID, ActorID: "ghost"})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.EntityActor, re.Entity)

	_, err = e.CreateAcceptanceCriterion(ctx, engine.AcceptanceCriterionCreate{StoryID: "s", Risk: "Extreme"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "risk", ve.Fields[0].Field)

	_, err = e.GetStory(ctx, "missing")
	assert.True(t, errors.Is(err, engine.ErrNotFound))
	_, err = e.UpdateEpic(ctx, "missing", engine.EpicUpdate{Title: ptr("y")})
	assert.True(t, errors.Is(err, engine.ErrNotFound))
	assert.True(t, errors.Is(e.DeleteStory(ctx, "missing"), engine.ErrNotFound))
}

func TestDeleteEpicCascadesWithoutOrphans(t *testing.T) {
	env := newTestEnv(t)
	tr := env.seedTree(t)

	report, err := env.Engine.Delete(env.Ctx, domain.EntityEpic, tr.Epic.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Deleted[domain.EntityEpic])
	assert.EqualValues(t, 1, report.Deleted[domain.EntityStory])
	assert.EqualValues(t, 2, report.Deleted[domain.EntityAcceptanceCriterion])
	assert.EqualValues(t, 2, report.Deleted[domain.EntityTestCase])
	assert.EqualValues(t, 2, report.Deleted[domain.EntityTestRun])
	assert.EqualValues(t, 8, report.Total())

	_, err = env.Engine.GetEpic(env.Ctx, tr.Epic.ID)
	assert.True(t, errors.Is(err, engine.ErrNotFound))
	for _, et := range []domain.EntityType{domain.EntityEpic, domain.EntityStory, domain.EntityAcceptanceCriterion, domain.EntityTestCase, domain.EntityTestRun} {
		assert.Zero(t, env.count(t, et), et)
	}
	assert.Equal(t, 1, env.count(t, domain.EntityTestSet))
	assert.Equal(t, 1, env.count(t, domain.EntityActor))
}

func TestLockedEpicRejectsEditsAndDelete(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)

	locked, err := e.UpdateEpic(ctx, tr.Epic.ID, engine.EpicUpdate{Status: ptr("Locked")})
	require.NoError(t, err)
	assert.Equal(t, "Locked", locked.Status)

	_, err = e.UpdateEpic(ctx, tr.Epic.ID, engine.EpicUpdate{Title: ptr("Renamed")})
	var le engine.LockedError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "cannot modify locked epic", err.Error())

	err = e.DeleteEpic(ctx, tr.Epic.ID)
	var nd engine.StatusNotDeletableError
	require.ErrorAs(t, err, &nd)
	assert.Equal(t, "epic in status 'Locked' cannot be deleted", err.Error())

	after, err := e.GetEpic(ctx, tr.Epic.ID)
	require.NoError(t, err)
	assert.Equal(t, locked.Title, after.Title)
	assert.Equal(t, locked.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, 1, env.count(t, domain.EntityStory))

	_, err = e.UpdateEpic(ctx, tr.Epic.ID, engine.EpicUpdate{Status: ptr("Locked"), UpdatedBy: "mallory"})
	require.ErrorAs(t, err, &le)
	_, err = e.UpdateEpic(ctx, tr.Epic.ID, engine.EpicUpdate{Status: ptr("Bogus")})
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)
	after, err = e.GetEpic(ctx, tr.Epic.ID)
	require.NoError(t, err)
	assert.Equal(t, locked.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, locked.UpdatedBy, after.UpdatedBy)

	unlocked, err := e.UpdateEpic(ctx, tr.Epic.ID, engine.EpicUpdate{Status: ptr("EPIC_DRAFTED"), UpdatedBy: "carol"})
	require.NoError(t, err)
	assert.Equal(t, "Drafted", unlocked.Status)
	assert.Equal(t, "carol", unlocked.UpdatedBy)
	require.NoError(t, e.DeleteEpic(ctx, tr.Epic.ID))
}

func TestLockedDescendantBlocksCascade(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)

	_, err := e.UpdateAcceptanceCriterion(ctx, tr.ACs[1].ID, engine.AcceptanceCriterionUpdate{Status: ptr("Locked")})
	require.NoError(t, err)

	err = e.DeleteEpic(ctx, tr.Epic.ID)
	var nd engine.StatusNotDeletableError
	require.ErrorAs(t, err, &nd)
	assert.Equal(t, domain.EntityAcceptanceCriterion, nd.Entity)
	assert.Equal(t, tr.ACs[1].ID, nd.ID)

	assert.Equal(t, 1, env.count(t, domain.EntityEpic))
	assert.Equal(t, 2, env.count(t, domain.EntityAcceptanceCriterion))
	assert.Equal(t, 2, env.count(t, domain.EntityTestRun))
}

func TestArchivedProjectCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreate{Name: "Old", Status: "Archived"})
	require.NoError(t, err)
	var nd engine.StatusNotDeletableError
	require.ErrorAs(t, env.Engine.DeleteProject(env.Ctx, p.ID), &nd)
}

func TestProjectDeleteDetachesEpicsAndRemovesActors(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)

	report, err := e.Delete(ctx, domain.EntityProject, tr.Project.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Deleted[domain.EntityActor])
	assert.EqualValues(t, 1, report.Detached[domain.EntityEpic])
	assert.EqualValues(t, 1, report.Detached[domain.EntityStory])

	ep, err := e.GetEpic(ctx, tr.Epic.ID)
	require.NoError(t, err)
	assert.Nil(t, ep.ProjectID)
	s, err := e.GetStory(ctx, tr.Story.ID)
	require.NoError(t, err)
	assert.Nil(t, s.ActorID)
	assert.Equal(t, "Shopper", s.Actor)
	assert.Zero(t, env.count(t, domain.EntityActor))
}

func TestActorRenameRefreshesStories(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)

	_, err := e.UpdateActor(ctx, tr.Actor.ID, engine.ActorUpdate{Name: ptr("Buyer")})
	require.NoError(t, err)
	s, err := e.GetStory(ctx, tr.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buyer", s.Actor)

	require.NoError(t, e.DeleteActor(ctx, tr.Actor.ID))
	s, err = e.GetStory(ctx, tr.Story.ID)
	require.NoError(t, err)
	assert.Nil(t, s.ActorID)
	assert.Equal(t, "Buyer", s.Actor)
}

func TestBulkTestRunsAreAtomic(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)
	set, err := e.CreateTestSet(ctx, engine.TestSetCreate{Title: "Smoke"})
	require.NoError(t, err)
	before := env.count(t, domain.EntityTestRun)

	ids := []string{tr.Cases[0].ID, tr.Cases[1].ID, tr.Cases[0].ID, "missing", tr.Cases[1].ID}
	_, err = e.CreateTestRuns(ctx, set.ID, ids, "bob")
	var re engine.ReferenceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.EntityTestCase, re.Entity)
	assert.Equal(t, before, env.count(t, domain.EntityTestRun))

	_, err = e.CreateTestRuns(ctx, "missing", []string{tr.Cases[0].ID}, "bob")
	var tnf engine.TargetNotFoundError
	require.ErrorAs(t, err, &tnf)
	assert.True(t, errors.Is(err, engine.ErrNotFound))

	_, err = e.CreateTestRuns(ctx, set.ID, nil, "bob")
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)

	runs, err := e.CreateTestRuns(ctx, set.ID, ids[:3], "bob")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.Equal(t, "Not Run", r.Status)
		assert.Equal(t, "bob", r.CreatedBy)
	}
	listed, err := e.ListTestRunsByTestSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestTestRunExecutionStamp(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)
	run := tr.Runs[0]

	passed, err := e.UpdateTestRun(ctx, run.ID, engine.TestRunUpdate{Status: ptr("Pass"), UpdatedBy: "dana"})
	require.NoError(t, err)
	assert.Equal(t, "Pass", passed.Status)
	require.NotNil(t, passed.ExecutedAt)
	require.NotNil(t, passed.ExecutedBy)
	assert.Equal(t, "dana", *passed.ExecutedBy)

	failed, err := e.UpdateTestRun(ctx, run.ID, engine.TestRunUpdate{
		Status: ptr("Fail"), ExecutedBy: ptr("erin"), ActualResult: ptr("timeout"),
	})
	require.NoError(t, err)
	assert.Equal(t, "erin", *failed.ExecutedBy)
	assert.Equal(t, "timeout", failed.ActualResult)

	summary, err := e.RunSummary(ctx, tr.Set.ID)
	require.NoError(t, err)
	assert.Equal(t, []engine.StatusCount{
		{Status: "Not Run", Count: 1},
		{Status: "Pass", Count: 0},
		{Status: "Fail", Count: 1},
		{Status: "Blocked", Count: 0},
	}, summary)
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)
	_, err := e.UpdateStory(ctx, tr.Story.ID, engine.StoryUpdate{Status: ptr("Reviewed")})
	require.NoError(t, err)

	doc, err := e.ExportStory(ctx, tr.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StoryFormat, doc.Format)
	assert.Equal(t, tr.Story.Key, doc.Key)
	assert.Equal(t, "Reviewed", doc.Status)
	require.Len(t, doc.AcceptanceCriteria, 2)
	require.Len(t, doc.AcceptanceCriteria[0].TestCases, 1)

	target, err := e.CreateEpic(ctx, engine.EpicCreate{ProjectID: tr.Project.ID, Title: "Refunds"})
	require.NoError(t, err)
	imported, err := e.ImportStory(ctx, target.ID, doc, "frank")
	require.NoError(t, err)
	assert.NotEqual(t, tr.Story.Key, imported.Key)
	assert.Equal(t, "Drafted", imported.Status)
	assert.Equal(t, tr.Actor.ID, *imported.ActorID)
	assert.Equal(t, "frank", imported.CreatedBy)

	again, err := e.ExportStory(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Action, again.Action)
	assert.Equal(t, doc.Outcome, again.Outcome)
	require.Len(t, again.AcceptanceCriteria, 2)
	for i, ac := range again.AcceptanceCriteria {
		src := doc.AcceptanceCriteria[i]
		assert.NotEqual(t, src.Key, ac.Key)
		assert.Equal(t, src.Given, ac.Given)
		assert.Equal(t, src.Risk, ac.Risk)
		assert.Equal(t, "Drafted", ac.Status)
		require.Len(t, ac.TestCases, 1)
		assert.Equal(t, src.TestCases[0].Steps, ac.TestCases[0].Steps)
		assert.Equal(t, "Not Run", ac.TestCases[0].TestStatus)
	}
	assert.Equal(t, 4, env.count(t, domain.EntityAcceptanceCriterion))
	assert.Equal(t, 1, env.count(t, domain.EntityActor))
}

func TestImportResolvesActors(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	p, err := e.CreateProject(ctx, engine.ProjectCreate{Name: "P"})
	require.NoError(t, err)
	inProject, err := e.CreateEpic(ctx, engine.EpicCreate{ProjectID: p.ID, Title: "A"})
	require.NoError(t, err)
	loose, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "B"})
	require.NoError(t, err)

	doc := engine.StoryDocument{Actor: "Auditor", Action: "review", ActorID: "unknown-id"}
	s, err := e.ImportStory(ctx, inProject.ID, doc, "")
	require.NoError(t, err)
	require.NotNil(t, s.ActorID)
	placeholder, err := e.GetActor(ctx, *s.ActorID)
	require.NoError(t, err)
	assert.Equal(t, "Auditor", placeholder.Name)
	assert.Equal(t, p.ID, placeholder.ProjectID)

	doc.Actor = "auditor"
	s2, err := e.ImportStory(ctx, inProject.ID, doc, "")
	require.NoError(t, err)
	assert.Equal(t, placeholder.ID, *s2.ActorID)

	s3, err := e.ImportStory(ctx, loose.ID, doc, "")
	require.NoError(t, err)
	assert.Nil(t, s3.ActorID)
	assert.Equal(t, "auditor", s3.Actor)
	assert.Equal(t, 1, env.count(t, domain.EntityActor))

	_, err = e.ImportStory(ctx, "missing", doc, "")
	var tnf engine.TargetNotFoundError
	require.ErrorAs(t, err, &tnf)
	assert.Equal(t, domain.EntityEpic, tnf.Entity)
}

func TestStoryActorMustShareEpicProject(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	tr := env.seedTree(t)

	other, err := e.CreateProject(ctx, engine.ProjectCreate{Name: "Warehouse"})
	require.NoError(t, err)
	foreign, err := e.CreateEpic(ctx, engine.EpicCreate{ProjectID: other.ID, Title: "Stock"})
	require.NoError(t, err)
	loose, err := e.CreateEpic(ctx, engine.EpicCreate{Title: "Unassigned"})
	require.NoError(t, err)

	var ve engine.ValidationError
	for _, epicID := range []string{foreign.ID, loose.ID} {
		_, err = e.CreateStory(ctx, engine.StoryCreate{EpicID: epicID, ActorID: tr.Actor.ID, Action: "count"})
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "actor_id", ve.Fields[0].Field)
	}

	_, err = e.UpdateStory(ctx, tr.Story.ID, engine.StoryUpdate{EpicID: ptr(foreign.ID)})
	require.ErrorAs(t, err, &ve)
	moved, err := e.UpdateStory(ctx, tr.Story.ID, engine.StoryUpdate{EpicID: ptr(foreign.ID), ActorID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, moved.ActorID)
	_, err = e.UpdateStory(ctx, tr.Story.ID, engine.StoryUpdate{ActorID: ptr(tr.Actor.ID)})
	require.ErrorAs(t, err, &ve)

	doc, err := e.ExportStory(ctx, moved.ID)
	require.NoError(t, err)
	doc.ActorID, doc.Actor = tr.Actor.ID, tr.Actor.Name
	imported, err := e.ImportStory(ctx, foreign.ID, doc, "")
	require.NoError(t, err)
	require.NotNil(t, imported.ActorID)
	assert.NotEqual(t, tr.Actor.ID, *imported.ActorID)
	local, err := e.GetActor(ctx, *imported.ActorID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, local.ProjectID)
	assert.Equal(t, tr.Actor.Name, local.Name)

	unassigned, err := e.ImportStory(ctx, loose.ID, doc, "")
	require.NoError(t, err)
	assert.Nil(t, unassigned.ActorID)
}

func TestIsArchiveOf(t *testing.T) {
	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	key := engine.ArchiveKey("A", at)
	assert.Equal(t, "exports/stories/A-20240304T050607Z.json", key)
	assert.True(t, engine.IsArchiveOf("A", key))
	assert.False(t, engine.IsArchiveOf("A", engine.ArchiveKey("A-B", at)))
	assert.True(t, engine.IsArchiveOf("A-B", engine.ArchiveKey("A-B", at)))
	assert.False(t, engine.IsArchiveOf("A", "exports/stories/A-notes.json"))
}
